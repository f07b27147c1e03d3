package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mylog "autocomplete/internal/log"
	"autocomplete/internal/registry"
	"autocomplete/internal/render"
	"autocomplete/internal/store"
	"autocomplete/internal/urls"
	"autocomplete/internal/version"
)

type API struct {
	channels *registry.Registry
	records  store.RecordRepo
	lg       *mylog.Logger
	metrics  *metricsCollector
	limits   []limitScope
}

func NewAPI(reg *registry.Registry, st store.RecordRepo) *API {
	return &API{
		channels: reg,
		records:  st,
		lg:       mylog.New().With(map[string]string{"component": "server"}),
		metrics:  newMetrics(),
		limits:   limitsFromEnv(),
	}
}

func (a *API) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version.Version, "commit": version.Commit})
	})
	mux.HandleFunc("GET /metrics", a.handleMetrics)
	mux.HandleFunc("GET /stats", a.handleStats)
	mux.HandleFunc("GET /channels", a.handleChannels)
	mux.HandleFunc("GET /channel/{name}/{$}", a.handleChannelQuery)
	mux.HandleFunc("GET /channel/{name}/values", a.handleChannelValues)
	mux.HandleFunc("POST /channel/{name}/validate", a.handleChannelValidate)
	mux.HandleFunc("GET /channel/{name}/box", a.handleChannelBox)
	mux.HandleFunc("GET /channel/{name}/widget", a.handleChannelWidget)
	mux.HandleFunc("POST /records", a.handleImport)
	mux.HandleFunc("GET /records/{id}", a.handleRecord)
	mux.HandleFunc("DELETE /records/{id}", a.handleDelete)
	return mux
}

// Handler is the full middleware stack around the routes.
func (a *API) Handler() http.Handler {
	return a.logMiddleware(a.rateLimitMiddleware(a.mux()))
}

// Env is the wiring shared by the server and the CLI.
type Env struct {
	Store    store.RecordRepo
	Registry *registry.Registry
	Renderer *render.Engine
	URLs     *urls.Router
	close    func() error
}

// ErrNoDatabase is returned by OpenDurableEnv when AUTOCOMPLETE_SQLITE_PATH
// is unset.
var ErrNoDatabase = errors.New("AUTOCOMPLETE_SQLITE_PATH not set")

// OpenEnv builds the store, renderer and channel registry from the
// environment. AUTOCOMPLETE_SQLITE_PATH selects SQLite over memory and
// AUTOCOMPLETE_CHANNELS_FILE supplies channel definitions and seed records.
// The catch-all channel is always registered. A database that fails to open
// is logged and replaced by a memory store.
func OpenEnv(ctx context.Context, lg *mylog.Logger) (*Env, error) {
	return openEnv(ctx, lg, false)
}

// OpenDurableEnv is OpenEnv for callers whose writes must outlive the
// process: SQLite is required and open failures are returned.
func OpenDurableEnv(ctx context.Context, lg *mylog.Logger) (*Env, error) {
	return openEnv(ctx, lg, true)
}

func openEnv(ctx context.Context, lg *mylog.Logger, durable bool) (*Env, error) {
	env := &Env{close: func() error { return nil }}
	path := os.Getenv("AUTOCOMPLETE_SQLITE_PATH")
	switch {
	case path == "" && durable:
		return nil, ErrNoDatabase
	case path == "":
		env.Store = store.New()
	default:
		sdb, err := store.NewSQLite(path)
		switch {
		case err != nil && durable:
			return nil, fmt.Errorf("open %s: %w", path, err)
		case err != nil:
			lg.Warn("sqlite.init_failed", "path", path, "err", err)
			env.Store = store.New()
		default:
			env.Store = sdb
			env.close = sdb.Close
		}
	}
	eng, err := render.NewFromEnv()
	if err != nil {
		_ = env.close()
		return nil, fmt.Errorf("templates: %w", err)
	}
	env.Renderer = eng
	env.URLs = urls.New("")
	env.Registry = registry.New()
	deps := registry.Deps{Source: env.Store, Renderer: eng, URLs: env.URLs}
	if path := os.Getenv("AUTOCOMPLETE_CHANNELS_FILE"); path != "" {
		f, err := registry.ParseFile(path)
		if err != nil {
			_ = env.close()
			return nil, err
		}
		if len(f.Records) > 0 {
			n, err := store.Import(ctx, env.Store, f.Records)
			if err != nil {
				_ = env.close()
				return nil, fmt.Errorf("import records: %w", err)
			}
			lg.Info("records.import", "file", path, "count", n)
		}
		if err := env.Registry.Load(f, deps); err != nil {
			_ = env.close()
			return nil, err
		}
	}
	if err := env.Registry.RegisterDefault(deps); err != nil {
		_ = env.close()
		return nil, err
	}
	lg.Debug("channels.loaded", "count", env.Registry.Len())
	return env, nil
}

func (e *Env) Close() error { return e.close() }

// Run serves the channel API until SIGINT or SIGTERM.
func Run(addr string) error {
	lg := mylog.New()
	env, err := OpenEnv(context.Background(), lg)
	if err != nil {
		return err
	}
	defer env.Close()

	api := NewAPI(env.Registry, env.Store)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	lg.Info("server.start", "addr", addr, "channels", env.Registry.Len(), "version", version.String())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case sig := <-sigc:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		return fmt.Errorf("shutdown by signal: %v", sig)
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
