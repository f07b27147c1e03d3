package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"autocomplete/internal/models"
	"autocomplete/internal/store"
)

// handleImport upserts a JSON array of records.
func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r) {
		return
	}
	var recs []models.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*maxBody)).Decode(&recs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON array of records")
		return
	}
	n, err := store.Import(r.Context(), a.records, recs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_record", err.Error())
		return
	}
	a.lg.Info("records.import", "count", n)
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r) {
		return
	}
	id := r.PathValue("id")
	if err := a.records.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no record "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := a.records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.lg.Error("records.get", "id", r.PathValue("id"), "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "record lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no record "+r.PathValue("id"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.records.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}
