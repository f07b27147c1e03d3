package server

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"autocomplete/internal/version"
)

type metricsCollector struct {
	mu sync.Mutex
	// counters keyed by method|path|status
	reqTotal map[string]int
	// duration sum/count keyed by method|path
	durSum   map[string]float64
	durCount map[string]int
	// records served keyed by channel
	results map[string]int
}

func newMetrics() *metricsCollector {
	return &metricsCollector{
		reqTotal: make(map[string]int),
		durSum:   make(map[string]float64),
		durCount: make(map[string]int),
		results:  make(map[string]int),
	}
}

func (m *metricsCollector) observe(method, path string, status int, dur time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqTotal[fmt.Sprintf("%s|%s|%d", method, path, status)]++
	m.durSum[method+"|"+path] += dur.Seconds()
	m.durCount[method+"|"+path]++
}

func (m *metricsCollector) served(channel string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[channel] += n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	st, err := a.records.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	st["channels"] = a.channels.Len()
	// Prometheus text by default, JSON on request.
	if strings.ToLower(r.URL.Query().Get("format")) == "json" || strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, st)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	for _, g := range []struct{ name, help, key string }{
		{"autocomplete_records", "Number of stored records.", "records"},
		{"autocomplete_kinds", "Number of distinct record kinds.", "kinds"},
		{"autocomplete_channels", "Number of registered channels.", "channels"},
	} {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", g.name, g.help, g.name, g.name, st[g.key])
	}

	a.metrics.mu.Lock()
	io.WriteString(w, "# TYPE autocomplete_http_requests_total counter\n")
	for _, key := range sortedKeys(a.metrics.reqTotal) {
		if parts := strings.Split(key, "|"); len(parts) == 3 {
			fmt.Fprintf(w, "autocomplete_http_requests_total{method=%q,path=%q,status=%q} %d\n", parts[0], parts[1], parts[2], a.metrics.reqTotal[key])
		}
	}
	io.WriteString(w, "# TYPE autocomplete_http_request_duration_seconds summary\n")
	for _, key := range sortedKeys(a.metrics.durSum) {
		if parts := strings.Split(key, "|"); len(parts) == 2 {
			fmt.Fprintf(w, "autocomplete_http_request_duration_seconds_sum{method=%q,path=%q} %f\n", parts[0], parts[1], a.metrics.durSum[key])
			fmt.Fprintf(w, "autocomplete_http_request_duration_seconds_count{method=%q,path=%q} %d\n", parts[0], parts[1], a.metrics.durCount[key])
		}
	}
	io.WriteString(w, "# HELP autocomplete_results_total Records returned per channel.\n# TYPE autocomplete_results_total counter\n")
	for _, name := range sortedKeys(a.metrics.results) {
		fmt.Fprintf(w, "autocomplete_results_total{channel=%q} %d\n", name, a.metrics.results[name])
	}
	a.metrics.mu.Unlock()

	io.WriteString(w, "# HELP autocomplete_build_info Build information.\n# TYPE autocomplete_build_info gauge\n")
	fmt.Fprintf(w, "autocomplete_build_info{version=%q,commit=%q} 1\n", version.Version, version.Commit)
}
