// Package registry keeps the named channels a process serves.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"autocomplete/internal/channel"
)

// DefaultName is the name of the catch-all channel over every record kind.
const DefaultName = "DefaultChannel"

var (
	ErrAlreadyExists = errors.New("channel already registered")
	ErrNotFound      = errors.New("channel not registered")
	ErrNilChannel    = errors.New("nil channel")
)

type Registry struct {
	mu       sync.RWMutex
	channels map[string]*channel.Channel
}

func New() *Registry {
	return &Registry{channels: make(map[string]*channel.Channel)}
}

// Register adds ch under its name. Use Replace to swap a registered channel.
func (r *Registry) Register(ch *channel.Channel) error {
	if ch == nil {
		return ErrNilChannel
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[ch.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, ch.Name())
	}
	r.channels[ch.Name()] = ch
	return nil
}

func (r *Registry) Replace(ch *channel.Channel) error {
	if ch == nil {
		return ErrNilChannel
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[ch.Name()]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ch.Name())
	}
	r.channels[ch.Name()] = ch
	return nil
}

func (r *Registry) Get(name string) (*channel.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// Lookup is Get with an error naming the missing channel.
func (r *Registry) Lookup(name string) (*channel.Channel, error) {
	if ch, ok := r.Get(name); ok {
		return ch, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List returns the registered channels sorted by name.
func (r *Registry) List() []*channel.Channel {
	r.mu.RLock()
	out := make([]*channel.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Infos describes every channel for client code, in name order.
func (r *Registry) Infos() ([]channel.Info, error) {
	chans := r.List()
	out := make([]channel.Info, 0, len(chans))
	for _, ch := range chans {
		info, err := ch.AsDict()
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name(), err)
		}
		out = append(out, info)
	}
	return out, nil
}

// RegisterDefault adds the catch-all channel unless one is already
// registered under DefaultName.
func (r *Registry) RegisterDefault(deps Deps) error {
	if _, ok := r.Get(DefaultName); ok {
		return nil
	}
	ch, err := channel.NewGenericTemplate(DefaultName, deps.Source, nil, "", deps.Renderer, deps.URLs, channel.Options{})
	if err != nil {
		return err
	}
	return r.Register(ch)
}
