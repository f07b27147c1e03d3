package channel

import (
	"context"
	"html/template"

	"autocomplete/internal/models"
	"autocomplete/internal/store"
	"autocomplete/internal/urls"
)

const (
	DefaultLimit       = 20
	DefaultBootstrap   = "normal"
	DefaultPlaceholder = "type some text to search in this autocomplete"
)

// URLResolver builds paths for named routes.
type URLResolver interface {
	Reverse(route string, args ...string) (string, error)
}

// Options configures a channel. Zero fields take the package defaults.
type Options struct {
	// LimitResults caps every result list.
	LimitResults int
	// Bootstrap names the client-side initialisation kind; widgets only
	// auto-initialise "normal" channels.
	Bootstrap   string
	Placeholder string
	// StaticList holds the static files the widget needs.
	StaticList []string
}

func (o Options) withDefaults() Options {
	if o.LimitResults <= 0 {
		o.LimitResults = DefaultLimit
	}
	if o.Bootstrap == "" {
		o.Bootstrap = DefaultBootstrap
	}
	if o.Placeholder == "" {
		o.Placeholder = DefaultPlaceholder
	}
	o.StaticList = append([]string{}, o.StaticList...)
	return o
}

// Channel pairs a Backend with a Frontend under a name. It holds no request
// state and is safe for concurrent use once built.
type Channel struct {
	name     string
	opts     Options
	backend  Backend
	frontend Frontend
	urls     URLResolver
}

// New builds a channel. A *TemplateFrontend gets its default template
// candidates derived from name.
func New(name string, b Backend, f Frontend, resolver URLResolver, opts Options) (*Channel, error) {
	if name == "" {
		return nil, ErrNoName
	}
	if b == nil {
		return nil, ErrNoBackend
	}
	if f == nil {
		return nil, ErrNoFrontend
	}
	if tf, ok := f.(*TemplateFrontend); ok {
		if tf.Renderer == nil {
			return nil, ErrNoRenderer
		}
		f = tf.forChannel(name)
	}
	if resolver == nil {
		resolver = urls.New("")
	}
	return &Channel{name: name, opts: opts.withDefaults(), backend: b, frontend: f, urls: resolver}, nil
}

func (c *Channel) Name() string         { return c.name }
func (c *Channel) LimitResults() int    { return c.opts.LimitResults }
func (c *Channel) Bootstrap() string    { return c.opts.Bootstrap }
func (c *Channel) Placeholder() string  { return c.opts.Placeholder }
func (c *Channel) StaticList() []string { return append([]string(nil), c.opts.StaticList...) }
func (c *Channel) Backend() Backend     { return c.backend }
func (c *Channel) Frontend() Frontend   { return c.frontend }

// GetAbsoluteURL returns the path client code queries this channel at.
func (c *Channel) GetAbsoluteURL() (string, error) {
	return c.urls.Reverse(urls.ChannelRoute, c.name)
}

// Info is the channel description handed to client code.
type Info struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (c *Channel) AsDict() (Info, error) {
	u, err := c.GetAbsoluteURL()
	if err != nil {
		return Info{}, err
	}
	return Info{URL: u, Name: c.name}, nil
}

// Widget extends Info with the settings a widget needs to initialise.
type Widget struct {
	Info
	Bootstrap   string   `json:"bootstrap"`
	Placeholder string   `json:"placeholder"`
	Static      []string `json:"static"`
	Limit       int      `json:"limit"`
}

func (c *Channel) Describe() (Widget, error) {
	info, err := c.AsDict()
	if err != nil {
		return Widget{}, err
	}
	return Widget{Info: info, Bootstrap: c.opts.Bootstrap, Placeholder: c.opts.Placeholder, Static: c.StaticList(), Limit: c.opts.LimitResults}, nil
}

// GetResults returns at most LimitResults ordered records.
//
// A non-nil values selects records by ID and ignores req, even when values
// is empty. Otherwise a non-nil req filters by its search text. With
// neither, the whole queryset is returned, ordered and capped.
func (c *Channel) GetResults(ctx context.Context, req *Request, values []string) ([]models.Record, error) {
	results := c.backend.Queryset()
	if values != nil {
		results = c.backend.ValuesFilter(results, values)
	} else if req != nil {
		results = c.backend.QueryFilter(results, req)
	}
	return c.backend.OrderResults(results).Limit(c.opts.LimitResults).Records(ctx)
}

// ValuesFilter narrows results to the given IDs through the backend.
func (c *Channel) ValuesFilter(results store.Set, values []string) store.Set {
	return c.backend.ValuesFilter(results, values)
}

// AreValid reports whether every ID in values names a distinct record of
// the queryset. A false result is not an error.
func (c *Channel) AreValid(ctx context.Context, values []string) (bool, error) {
	n, err := c.backend.Queryset().In(values).Count(ctx)
	if err != nil {
		return false, err
	}
	return n == len(values), nil
}

func (c *Channel) ResultAsHTML(result models.Record) (template.HTML, error) {
	return c.frontend.ResultAsHTML(c, result)
}

func (c *Channel) RenderAutocomplete() (template.HTML, error) {
	return c.frontend.RenderAutocomplete(c)
}

// Bound is a channel paired with one request. Binding never changes the
// channel, so each call to InitForRequest is independent of the last.
type Bound struct {
	ch  *Channel
	req *Request
}

func (c *Channel) InitForRequest(req *Request) Bound {
	return Bound{ch: c, req: req}
}

func (b Bound) Channel() *Channel { return b.ch }
func (b Bound) Request() *Request { return b.req }

func (b Bound) GetResults(ctx context.Context, values []string) ([]models.Record, error) {
	return b.ch.GetResults(ctx, b.req, values)
}

func (b Bound) QueryFilter(results store.Set) store.Set {
	return b.ch.backend.QueryFilter(results, b.req)
}
