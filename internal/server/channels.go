package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gowebpki/jcs"

	"autocomplete/internal/channel"
	"autocomplete/internal/models"
	"autocomplete/internal/render"
)

const maxBody = 1 << 20

// lookup resolves the {name} path value, writing a 404 when absent.
func (a *API) lookup(w http.ResponseWriter, r *http.Request) (*channel.Channel, bool) {
	name := r.PathValue("name")
	ch, ok := a.channels.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown channel "+strconv.Quote(name))
		return nil, false
	}
	return ch, true
}

func (a *API) channelError(w http.ResponseWriter, ch *channel.Channel, err error) {
	a.lg.Error("channel.error", "channel", ch.Name(), "err", err)
	switch {
	case errors.Is(err, render.ErrTemplateNotFound):
		writeError(w, http.StatusInternalServerError, "template_not_found", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "canceled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "channel "+ch.Name()+" failed")
	}
}

// writeResults renders each record with the channel frontend, in order.
// JSON channels answer with one array.
func (a *API) writeResults(w http.ResponseWriter, ch *channel.Channel, results []models.Record) {
	if jf, ok := ch.Frontend().(*channel.JSONFrontend); ok {
		out := make([]map[string]string, 0, len(results))
		for _, rec := range results {
			out = append(out, jf.ResultValue(rec))
		}
		a.metrics.served(ch.Name(), len(results))
		w.Header().Set("X-Result-Count", strconv.Itoa(len(results)))
		writeJSON(w, http.StatusOK, out)
		return
	}
	var b strings.Builder
	for _, rec := range results {
		html, err := ch.ResultAsHTML(rec)
		if err != nil {
			a.channelError(w, ch, err)
			return
		}
		b.WriteString(string(html))
	}
	a.metrics.served(ch.Name(), len(results))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Result-Count", strconv.Itoa(len(results)))
	_, _ = w.Write([]byte(b.String()))
}

func (a *API) handleChannelQuery(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.lookup(w, r)
	if !ok {
		return
	}
	bound := ch.InitForRequest(channel.FromHTTP(r, ch.Name()))
	results, err := bound.GetResults(r.Context(), nil)
	if err != nil {
		a.channelError(w, ch, err)
		return
	}
	a.lg.Debug("channel.results", "channel", ch.Name(), "q", bound.Request().Query(), "count", len(results))
	a.writeResults(w, ch, results)
}

// handleChannelValues renders the records named by repeated v parameters.
// No v selects nothing.
func (a *API) handleChannelValues(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.lookup(w, r)
	if !ok {
		return
	}
	values := r.URL.Query()["v"]
	if values == nil {
		values = []string{}
	}
	results, err := ch.GetResults(r.Context(), channel.FromHTTP(r, ch.Name()), values)
	if err != nil {
		a.channelError(w, ch, err)
		return
	}
	a.writeResults(w, ch, results)
}

type validateRequest struct {
	Values []string `json:"values"`
}

func (a *API) handleChannelValidate(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var req validateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be {\"values\": [...]}")
		return
	}
	if req.Values == nil {
		req.Values = []string{}
	}
	valid, err := ch.AreValid(r.Context(), req.Values)
	if err != nil {
		a.channelError(w, ch, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (a *API) handleChannelBox(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.lookup(w, r)
	if !ok {
		return
	}
	html, err := ch.RenderAutocomplete()
	if err != nil {
		a.channelError(w, ch, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (a *API) handleChannelWidget(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.lookup(w, r)
	if !ok {
		return
	}
	widget, err := ch.Describe()
	if err != nil {
		a.channelError(w, ch, err)
		return
	}
	writeJSON(w, http.StatusOK, widget)
}

// handleChannels lists every channel's description. The body is canonical
// JSON and its digest is the ETag.
func (a *API) handleChannels(w http.ResponseWriter, r *http.Request) {
	infos, err := a.channels.Infos()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	raw, err := json.Marshal(map[string]any{"channels": infos})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	sum := sha256.Sum256(canonical)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(canonical)
}
