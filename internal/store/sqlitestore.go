package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"

	"autocomplete/internal/models"
	sqlm "autocomplete/internal/storage/sqlite"
)

func init() {
	// SQLite's lower() only folds ASCII; match the in-memory store instead.
	sqlite.MustRegisterDeterministicScalarFunction("casefold", 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		case nil:
			return nil, nil
		default:
			return strings.ToLower(fmt.Sprint(v)), nil
		}
	})
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	// migration manager with versioning
	if err := (sqlm.Manager{}).UpToLatest(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	// optional seed data
	_ = (sqlm.Manager{}).Seed(context.Background(), db)
	return &SQLiteStore{db: db}, nil
}

// DB exposes underlying *sql.DB for internal helpers (e.g., migrations from the CLI).
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// WithTx provides a simple transaction wrapper that commits on nil error
// and rolls back on error. The callback must not hold the tx beyond return.
func (s *SQLiteStore) WithTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) All() Set { return NewSet(s) }

const upsertRecord = `INSERT INTO records(id,kind,name,description,created_at) VALUES(?,?,?,?,?)
    ON CONFLICT(id) DO UPDATE SET kind=excluded.kind, name=excluded.name, description=excluded.description`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, ex execer, rec models.Record) (models.Record, error) {
	if rec.Kind == "" || rec.Name == "" {
		return models.Record{}, errors.New("record kind and name required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Created.IsZero() {
		rec.Created = time.Now()
	}
	_, err := ex.ExecContext(ctx, upsertRecord, rec.ID, rec.Kind, rec.Name, rec.Description, rec.Created.UTC().Format(time.RFC3339))
	if err != nil {
		return models.Record{}, fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec models.Record) (models.Record, error) {
	return upsert(ctx, s.db, rec)
}

// UpsertMany writes all records in one transaction.
func (s *SQLiteStore) UpsertMany(ctx context.Context, recs []models.Record) ([]models.Record, error) {
	out := make([]models.Record, 0, len(recs))
	err := s.WithTx(func(tx *sql.Tx) error {
		for _, r := range recs {
			saved, err := upsert(ctx, tx, r)
			if err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Record, bool, error) {
	recs, err := s.Fetch(ctx, Query{IDs: []string{id}, ByID: true})
	if err != nil {
		return models.Record{}, false, err
	}
	if len(recs) == 0 {
		return models.Record{}, false, nil
	}
	return recs[0], true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (map[string]int, error) {
	var records, kinds int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COUNT(DISTINCT kind) FROM records`)
	if err := row.Scan(&records, &kinds); err != nil {
		return nil, err
	}
	return map[string]int{"records": records, "kinds": kinds}, nil
}

func (s *SQLiteStore) Fetch(ctx context.Context, q Query) ([]models.Record, error) {
	stmt, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	var out []models.Record
	for rows.Next() {
		var r models.Record
		var created string
		if err := rows.Scan(&r.ID, &r.Kind, &r.Name, &r.Description, &created); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if t, _ := time.Parse(time.RFC3339, created); !t.IsZero() {
			r.Created = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, q Query) (int, error) {
	stmt, args, err := buildSelect(q)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM (`+stmt+`)`, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// buildSelect renders q as a single SELECT. Field names are checked against
// the record columns before they reach the statement text.
func buildSelect(q Query) (string, []any, error) {
	var where []string
	var args []any
	if q.Kinds != nil {
		arg, err := jsonList(q.Kinds)
		if err != nil {
			return "", nil, err
		}
		where = append(where, "kind IN (SELECT value FROM json_each(?))")
		args = append(args, arg)
	}
	if q.ByID {
		arg, err := jsonList(q.IDs)
		if err != nil {
			return "", nil, err
		}
		where = append(where, "id IN (SELECT value FROM json_each(?))")
		args = append(args, arg)
	}
	for _, m := range q.Matches {
		if !models.IsSearchField(m.Field) {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownField, m.Field)
		}
		where = append(where, "instr(casefold("+m.Field+"), casefold(?)) > 0")
		args = append(args, m.Substr)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString("id, kind, name, COALESCE(description,''), created_at FROM records")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.OrderBy != "" {
		if !models.IsSearchField(q.OrderBy) {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownField, q.OrderBy)
		}
		if q.OrderBy == "id" {
			b.WriteString(" ORDER BY id")
		} else {
			b.WriteString(" ORDER BY " + q.OrderBy + ", id")
		}
	} else {
		// insertion order, like the in-memory store
		b.WriteString(" ORDER BY rowid")
	}
	if q.Limited {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

// jsonList binds a whole list as one parameter, so list length is not
// bounded by SQLite's host parameter limit.
func jsonList(xs []string) (string, error) {
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
