package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"autocomplete/internal/models"
)

var (
	// ErrUnknownField is returned when a filter or ordering names a column
	// records do not have.
	ErrUnknownField = errors.New("unknown record field")
	// ErrSliced is returned when a limited set is narrowed further.
	ErrSliced = errors.New("cannot filter a limited set")
)

// Match narrows a selection to records whose Field contains Substr,
// compared case-insensitively.
type Match struct {
	Field  string
	Substr string
}

// Query describes a record selection. The zero value selects every record
// in no particular order.
type Query struct {
	Kinds    []string
	Matches  []Match
	IDs      []string
	ByID     bool // IDs applies, even when empty
	OrderBy  string
	Distinct bool
	Limit    int
	Limited  bool // Limit applies, even when zero
}

// Executor evaluates queries against a concrete data store.
type Executor interface {
	Fetch(ctx context.Context, q Query) ([]models.Record, error)
	Count(ctx context.Context, q Query) (int, error)
}

// Set is a lazy, immutable record selection. Every narrowing method returns
// a new Set; nothing touches the executor until Records or Count is called.
// Configuration errors are sticky and reported on evaluation.
type Set struct {
	ex  Executor
	q   Query
	err error
}

// NewSet returns the selection of every record served by ex.
func NewSet(ex Executor) Set { return Set{ex: ex} }

// Query returns a copy of the accumulated query.
func (s Set) Query() Query { return s.q.clone() }

// Err reports the first configuration error recorded on the set.
func (s Set) Err() error { return s.err }

func (s Set) derive(fn func(q *Query) error) Set {
	if s.err != nil {
		return s
	}
	q := s.q.clone()
	if err := fn(&q); err != nil {
		return Set{ex: s.ex, q: s.q, err: err}
	}
	return Set{ex: s.ex, q: q}
}

// Kinds narrows the set to records of the given kinds. Repeated calls
// intersect.
func (s Set) Kinds(kinds ...string) Set {
	return s.derive(func(q *Query) error {
		if q.Limited {
			return ErrSliced
		}
		if q.Kinds == nil {
			q.Kinds = append([]string{}, kinds...)
			return nil
		}
		q.Kinds = intersect(q.Kinds, kinds)
		return nil
	})
}

// Contains narrows the set to records whose field contains substr,
// ignoring case.
func (s Set) Contains(field, substr string) Set {
	return s.derive(func(q *Query) error {
		if !models.IsSearchField(field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		if q.Limited {
			return ErrSliced
		}
		q.Matches = append(q.Matches, Match{Field: field, Substr: substr})
		return nil
	})
}

// In narrows the set to records whose ID is in ids. An empty ids selects
// nothing. Repeated calls intersect.
func (s Set) In(ids []string) Set {
	return s.derive(func(q *Query) error {
		if q.Limited {
			return ErrSliced
		}
		if !q.ByID {
			q.ByID = true
			q.IDs = append([]string{}, ids...)
			return nil
		}
		q.IDs = intersect(q.IDs, ids)
		return nil
	})
}

// OrderBy sorts ascending by field, breaking ties by ID.
func (s Set) OrderBy(field string) Set {
	return s.derive(func(q *Query) error {
		if !models.IsSearchField(field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		q.OrderBy = field
		return nil
	})
}

// Distinct drops records whose ID was already seen.
func (s Set) Distinct() Set {
	return s.derive(func(q *Query) error {
		q.Distinct = true
		return nil
	})
}

// Limit keeps at most n records. Limiting an already limited set keeps the
// smaller bound.
func (s Set) Limit(n int) Set {
	return s.derive(func(q *Query) error {
		if n < 0 {
			n = 0
		}
		if !q.Limited || n < q.Limit {
			q.Limit = n
		}
		q.Limited = true
		return nil
	})
}

// Records evaluates the selection.
func (s Set) Records(ctx context.Context) ([]models.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ex.Fetch(ctx, s.q)
}

// Count evaluates the number of records in the selection.
func (s Set) Count(ctx context.Context) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.ex.Count(ctx, s.q)
}

func (q Query) clone() Query {
	c := q
	if q.Kinds != nil {
		c.Kinds = append([]string{}, q.Kinds...)
	}
	if q.Matches != nil {
		c.Matches = append([]Match{}, q.Matches...)
	}
	if q.IDs != nil {
		c.IDs = append([]string{}, q.IDs...)
	}
	return c
}

func intersect(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, v := range b {
		in[v] = struct{}{}
	}
	out := []string{}
	for _, v := range a {
		if _, ok := in[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Apply evaluates q over an in-memory slice. Input order is kept unless q
// orders the result.
func Apply(records []models.Record, q Query) ([]models.Record, error) {
	if q.OrderBy != "" && !models.IsSearchField(q.OrderBy) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, q.OrderBy)
	}
	var kinds, ids map[string]struct{}
	if q.Kinds != nil {
		kinds = toSet(q.Kinds)
	}
	if q.ByID {
		ids = toSet(q.IDs)
	}
	needles := make([]string, len(q.Matches))
	for i, m := range q.Matches {
		if !models.IsSearchField(m.Field) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, m.Field)
		}
		needles[i] = strings.ToLower(m.Substr)
	}

	out := make([]models.Record, 0, len(records))
	seen := make(map[string]struct{})
next:
	for _, r := range records {
		if kinds != nil {
			if _, ok := kinds[r.Kind]; !ok {
				continue
			}
		}
		if ids != nil {
			if _, ok := ids[r.ID]; !ok {
				continue
			}
		}
		for i, m := range q.Matches {
			v, _ := r.Field(m.Field)
			if !strings.Contains(strings.ToLower(v), needles[i]) {
				continue next
			}
		}
		if q.Distinct {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
		}
		out = append(out, r)
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i].Field(q.OrderBy)
			b, _ := out[j].Field(q.OrderBy)
			if a == b {
				return out[i].ID < out[j].ID
			}
			return a < b
		})
	}
	if q.Limited && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}
