package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"autocomplete/internal/models"
)

var ErrNotFound = errors.New("record not found")

// Store keeps records in memory in insertion order.
type Store struct {
	mu      sync.RWMutex
	records []models.Record
	byID    map[string]int // id -> index into records
}

func New() *Store {
	return &Store{byID: make(map[string]int)}
}

// All returns the selection of every stored record.
func (s *Store) All() Set { return NewSet(s) }

// Upsert inserts rec or replaces the record with the same ID. A missing ID
// is assigned.
func (s *Store) Upsert(_ context.Context, rec models.Record) (models.Record, error) {
	if rec.Kind == "" || rec.Name == "" {
		return models.Record{}, errors.New("record kind and name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if i, ok := s.byID[rec.ID]; ok {
		if rec.Created.IsZero() {
			rec.Created = s.records[i].Created
		}
		s.records[i] = rec
		return rec, nil
	}
	if rec.Created.IsZero() {
		rec.Created = time.Now()
	}
	s.byID[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return models.Record{}, false, nil
	}
	return s.records[i], true, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.byID, id)
	for j := i; j < len(s.records); j++ {
		s.byID[s.records[j].ID] = j
	}
	return nil
}

func (s *Store) Stats(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make(map[string]struct{})
	for _, r := range s.records {
		kinds[r.Kind] = struct{}{}
	}
	return map[string]int{
		"records": len(s.records),
		"kinds":   len(kinds),
	}, nil
}

// Fetch evaluates q over a snapshot of the stored records.
func (s *Store) Fetch(ctx context.Context, q Query) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	snap := append([]models.Record(nil), s.records...)
	s.mu.RUnlock()
	return Apply(snap, q)
}

func (s *Store) Count(ctx context.Context, q Query) (int, error) {
	out, err := s.Fetch(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}
