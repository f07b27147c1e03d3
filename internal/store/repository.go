package store

import (
	"context"
	"database/sql"
	"fmt"

	"autocomplete/internal/models"
)

// TxRunner provides a transaction wrapper for repository operations.
type TxRunner interface {
	WithTx(fn func(*sql.Tx) error) error
}

// Source is the data source a channel backend queries.
type Source interface {
	All() Set
}

// RecordRepo defines minimal record CRUD on top of a Source.
type RecordRepo interface {
	Source
	Upsert(ctx context.Context, rec models.Record) (models.Record, error)
	// Get reports ok=false for a missing record; err is reserved for
	// storage failures.
	Get(ctx context.Context, id string) (models.Record, bool, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (map[string]int, error)
}

var (
	_ RecordRepo = (*Store)(nil)
	_ RecordRepo = (*SQLiteStore)(nil)
	_ TxRunner   = (*SQLiteStore)(nil)
)

type bulkUpserter interface {
	UpsertMany(ctx context.Context, recs []models.Record) ([]models.Record, error)
}

// Import upserts recs, in one transaction when the repository supports it.
// Otherwise records before the first failure stay written.
func Import(ctx context.Context, repo RecordRepo, recs []models.Record) (int, error) {
	if b, ok := repo.(bulkUpserter); ok {
		out, err := b.UpsertMany(ctx, recs)
		return len(out), err
	}
	for i, r := range recs {
		if _, err := repo.Upsert(ctx, r); err != nil {
			return i, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return len(recs), nil
}
