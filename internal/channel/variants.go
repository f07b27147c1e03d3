package channel

import "autocomplete/internal/store"

// NewModelTemplate builds a template-rendered channel over one record kind.
func NewModelTemplate(name string, src store.Source, kind, searchField string, r Renderer, resolver URLResolver, opts Options) (*Channel, error) {
	b, err := NewModelBackend(src, kind, searchField)
	if err != nil {
		return nil, err
	}
	return New(name, b, NewTemplateFrontend(r), resolver, opts)
}

// NewGenericTemplate builds a template-rendered channel over several kinds,
// or every kind when kinds is empty.
func NewGenericTemplate(name string, src store.Source, kinds []string, searchField string, r Renderer, resolver URLResolver, opts Options) (*Channel, error) {
	b, err := NewGenericBackend(src, kinds, searchField)
	if err != nil {
		return nil, err
	}
	return New(name, b, NewTemplateFrontend(r), resolver, opts)
}

// NewModelJSON builds a JSON-rendered channel over one record kind. Empty
// fields select DefaultJSONFields.
func NewModelJSON(name string, src store.Source, kind, searchField string, fields []string, resolver URLResolver, opts Options) (*Channel, error) {
	b, err := NewModelBackend(src, kind, searchField)
	if err != nil {
		return nil, err
	}
	f, err := NewJSONFrontend(fields...)
	if err != nil {
		return nil, err
	}
	return New(name, b, f, resolver, opts)
}

// NewGenericJSON is NewModelJSON over several kinds, or every kind when
// kinds is empty.
func NewGenericJSON(name string, src store.Source, kinds []string, searchField string, fields []string, resolver URLResolver, opts Options) (*Channel, error) {
	b, err := NewGenericBackend(src, kinds, searchField)
	if err != nil {
		return nil, err
	}
	f, err := NewJSONFrontend(fields...)
	if err != nil {
		return nil, err
	}
	return New(name, b, f, resolver, opts)
}
