package channel

import (
	"fmt"

	"autocomplete/internal/models"
	"autocomplete/internal/store"
)

// DefaultSearchField is the record column searched when none is configured.
const DefaultSearchField = "name"

// Backend is the data-access half of a channel.
type Backend interface {
	// Queryset returns every record the channel serves, unordered.
	Queryset() store.Set
	// QueryFilter narrows results with the search text of req. A nil req or
	// an empty query leaves results unchanged.
	QueryFilter(results store.Set, req *Request) store.Set
	// ValuesFilter narrows results to the records whose ID is in values.
	ValuesFilter(results store.Set, values []string) store.Set
	// OrderResults sorts results and removes duplicate IDs.
	OrderResults(results store.Set) store.Set
}

// Searchable implements the filtering and ordering shared by the built-in
// backends.
type Searchable struct {
	SearchField string
}

func newSearchable(field string) (Searchable, error) {
	if field == "" {
		field = DefaultSearchField
	}
	if !models.IsSearchField(field) {
		return Searchable{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return Searchable{SearchField: field}, nil
}

func (s Searchable) field() string {
	if s.SearchField == "" {
		return DefaultSearchField
	}
	return s.SearchField
}

func (s Searchable) QueryFilter(results store.Set, req *Request) store.Set {
	if q := req.Query(); q != "" {
		return results.Contains(s.field(), q)
	}
	return results
}

func (s Searchable) ValuesFilter(results store.Set, values []string) store.Set {
	return results.In(values)
}

func (s Searchable) OrderResults(results store.Set) store.Set {
	return results.OrderBy(s.field()).Distinct()
}

// ModelBackend serves the records of a single kind.
type ModelBackend struct {
	Searchable
	Source store.Source
	Kind   string
}

// NewModelBackend checks the configuration; an empty searchField selects
// DefaultSearchField.
func NewModelBackend(src store.Source, kind, searchField string) (*ModelBackend, error) {
	if kind == "" {
		return nil, ErrNoKind
	}
	s, err := newSearchable(searchField)
	if err != nil {
		return nil, err
	}
	return &ModelBackend{Searchable: s, Source: src, Kind: kind}, nil
}

func (b *ModelBackend) Queryset() store.Set {
	return b.Source.All().Kinds(b.Kind)
}

// GenericBackend serves records across several kinds, or all kinds when
// Kinds is empty.
type GenericBackend struct {
	Searchable
	Source store.Source
	Kinds  []string
}

func NewGenericBackend(src store.Source, kinds []string, searchField string) (*GenericBackend, error) {
	s, err := newSearchable(searchField)
	if err != nil {
		return nil, err
	}
	return &GenericBackend{Searchable: s, Source: src, Kinds: append([]string(nil), kinds...)}, nil
}

func (b *GenericBackend) Queryset() store.Set {
	if len(b.Kinds) == 0 {
		return b.Source.All()
	}
	return b.Source.All().Kinds(b.Kinds...)
}
