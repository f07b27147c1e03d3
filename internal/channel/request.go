package channel

import (
	"net/http"
	"net/url"
)

// QueryParam is the request parameter carrying the search text.
const QueryParam = "q"

// Request is the per-request context a channel filters with. It is passed
// explicitly to every operation that needs it; a nil *Request means no
// request is attached.
type Request struct {
	Params url.Values
	Args   []string
	Kwargs map[string]string
}

// NewRequest builds a request context from query parameters and optional
// positional arguments.
func NewRequest(params url.Values, args ...string) *Request {
	if params == nil {
		params = url.Values{}
	}
	return &Request{Params: params, Args: args, Kwargs: map[string]string{}}
}

// FromHTTP captures the query string of r.
func FromHTTP(r *http.Request, args ...string) *Request {
	return NewRequest(r.URL.Query(), args...)
}

// Query returns the raw search text. It is not trimmed.
func (r *Request) Query() string {
	if r == nil || r.Params == nil {
		return ""
	}
	return r.Params.Get(QueryParam)
}

// With returns a copy of r with an extra keyword argument.
func (r *Request) With(key, value string) *Request {
	c := &Request{Kwargs: make(map[string]string, len(r.Kwargs)+1)}
	if r != nil {
		c.Params, c.Args = r.Params, r.Args
		for k, v := range r.Kwargs {
			c.Kwargs[k] = v
		}
	}
	c.Kwargs[key] = value
	return c
}
