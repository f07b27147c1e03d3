package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"autocomplete/internal/models"
	"autocomplete/internal/registry"
	"autocomplete/internal/render"
	"autocomplete/internal/store"
	"autocomplete/internal/urls"
)

// newTestAPI serves a FruitChannel over a memory store plus the default
// channel. Rate limits and the API token are cleared unless set after.
func newTestAPI(t *testing.T) (*API, *store.Store) {
	t.Helper()
	for _, k := range []string{"AUTOCOMPLETE_RATE_LIMIT_RPS", "AUTOCOMPLETE_RATE_LIMIT_GLOBAL_RPS", "AUTOCOMPLETE_RATE_LIMIT_PATH_RPS", "AUTOCOMPLETE_RATE_LIMIT_IP_RPS", "AUTOCOMPLETE_API_TOKEN"} {
		t.Setenv(k, "")
	}
	t.Setenv("AUTOCOMPLETE_LOG_LEVEL", "error")
	st := store.New()
	for _, r := range []models.Record{
		{ID: "1", Kind: "fruit", Name: "Apple"},
		{ID: "2", Kind: "fruit", Name: "Banana"},
		{ID: "3", Kind: "fruit", Name: "Grape"},
		{ID: "10", Kind: "city", Name: "Naples"},
	} {
		if _, err := st.Upsert(context.Background(), r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	eng, err := render.New(0, fstest.MapFS{
		"autocomplete_light/fruitchannel/result.html": {Data: []byte(`<li data-value="{{.Result.ID}}">{{.Result.Name}}</li>`)},
	})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	reg := registry.New()
	deps := registry.Deps{Source: st, Renderer: eng, URLs: urls.New("")}
	f, err := registry.Parse([]byte("channels:\n  - name: FruitChannel\n    kind: fruit\n  - name: Broken\n    kind: fruit\n    result_template: [missing.html]\n  - name: FruitJSON\n    kind: fruit\n    format: json\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := reg.Load(f, deps); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := reg.RegisterDefault(deps); err != nil {
		t.Fatalf("RegisterDefault: %v", err)
	}
	return NewAPI(reg, st), st
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
