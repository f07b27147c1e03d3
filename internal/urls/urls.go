package urls

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ChannelRoute is the route a channel uses to address itself.
const ChannelRoute = "autocomplete_light_channel"

var (
	ErrNoRoute = errors.New("no such route")
	ErrArgs    = errors.New("wrong number of route arguments")
)

// Router maps route names to path patterns. Each "{}" in a pattern takes
// one positional argument, path-escaped.
type Router struct {
	prefix string
	mu     sync.RWMutex
	routes map[string]string
}

// New returns a router with the channel route registered under prefix.
func New(prefix string) *Router {
	r := &Router{prefix: strings.TrimSuffix(prefix, "/"), routes: make(map[string]string)}
	r.Handle(ChannelRoute, "/channel/{}/")
	return r
}

// Handle registers or replaces a named pattern.
func (r *Router) Handle(name, pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[name] = pattern
}

// Reverse builds the path for a named route.
func (r *Router) Reverse(name string, args ...string) (string, error) {
	r.mu.RLock()
	pattern, ok := r.routes[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoRoute, name)
	}
	parts := strings.Split(pattern, "{}")
	if len(parts)-1 != len(args) {
		return "", fmt.Errorf("%w: %s wants %d, got %d", ErrArgs, name, len(parts)-1, len(args))
	}
	var b strings.Builder
	b.WriteString(r.prefix)
	for i, p := range parts {
		b.WriteString(p)
		if i < len(args) {
			b.WriteString(url.PathEscape(args[i]))
		}
	}
	return b.String(), nil
}
