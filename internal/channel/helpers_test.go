package channel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"autocomplete/internal/models"
	"autocomplete/internal/render"
	"autocomplete/internal/store"
)

var fruit = []models.Record{
	{ID: "1", Kind: "fruit", Name: "Apple"},
	{ID: "2", Kind: "fruit", Name: "Banana"},
	{ID: "3", Kind: "fruit", Name: "Grape"},
	{ID: "10", Kind: "city", Name: "Naples"},
}

type namedSource struct {
	name string
	src  store.Source
}

// sources returns the in-memory store and, when the driver is usable, a
// SQLite store, both holding recs.
func sources(t *testing.T, recs []models.Record) []namedSource {
	t.Helper()
	ctx := context.Background()
	mem := store.New()
	for _, r := range recs {
		if _, err := mem.Upsert(ctx, r); err != nil {
			t.Fatalf("mem upsert: %v", err)
		}
	}
	out := []namedSource{{"memory", mem}}
	sq, err := store.NewSQLite(filepath.Join(t.TempDir(), "channel.db"))
	if err != nil {
		t.Logf("sqlite not available: %v", err)
		return out
	}
	t.Cleanup(func() { _ = sq.Close() })
	if _, err := sq.UpsertMany(ctx, recs); err != nil {
		t.Fatalf("sqlite upsert: %v", err)
	}
	return append(out, namedSource{"sqlite", sq})
}

func testRenderer(t *testing.T) *render.Engine {
	t.Helper()
	e, err := render.New(0, fstest.MapFS{
		"autocomplete_light/fruitchannel/result.html": {Data: []byte(`<li data-id="{{.Result.ID}}">{{.Result.Name}} ({{.Channel.Name}})</li>`)},
	})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	return e
}

func fruitChannel(t *testing.T, src store.Source, opts Options) *Channel {
	t.Helper()
	ch, err := NewModelTemplate("FruitChannel", src, "fruit", "", testRenderer(t), nil, opts)
	if err != nil {
		t.Fatalf("NewModelTemplate: %v", err)
	}
	return ch
}

func names(recs []models.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var errUnreachable = errors.New("data source unreachable")

type brokenExec struct{}

func (brokenExec) Fetch(context.Context, store.Query) ([]models.Record, error) {
	return nil, errUnreachable
}

func (brokenExec) Count(context.Context, store.Query) (int, error) { return 0, errUnreachable }

type brokenSource struct{}

func (brokenSource) All() store.Set { return store.NewSet(brokenExec{}) }
