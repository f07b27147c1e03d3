package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Manager handles schema versioning and basic seeding.
type Manager struct{}

const latestVersion = 3

func (m Manager) ensureTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL);`)
	if err != nil {
		return err
	}
	// initialize row if empty
	var cnt int
	_ = db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&cnt)
	if cnt == 0 {
		_, err = db.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES(0)`)
	}
	return err
}

// Version reports the applied schema version.
func (m Manager) Version(ctx context.Context, db *sql.DB) (int, error) {
	if err := m.ensureTable(ctx, db); err != nil {
		return 0, err
	}
	var v int
	if err := db.QueryRowContext(ctx, `SELECT version FROM schema_migrations`).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (m Manager) setVersion(ctx context.Context, db *sql.DB, v int) error {
	_, err := db.ExecContext(ctx, `UPDATE schema_migrations SET version=?`, v)
	return err
}

// UpToLatest applies migrations to reach latestVersion.
func (m Manager) UpToLatest(ctx context.Context, db *sql.DB) error {
	cur, err := m.Version(ctx, db)
	if err != nil {
		return err
	}
	for v := cur + 1; v <= latestVersion; v++ {
		if err := m.up(ctx, db, v); err != nil {
			return fmt.Errorf("migrate up to v%d: %w", v, err)
		}
		if err := m.setVersion(ctx, db, v); err != nil {
			return err
		}
	}
	return nil
}

// DownOne attempts to roll back the last migration if supported.
func (m Manager) DownOne(ctx context.Context, db *sql.DB) error {
	cur, err := m.Version(ctx, db)
	if err != nil {
		return err
	}
	if cur <= 0 {
		return nil
	}
	if err := m.down(ctx, db, cur); err != nil {
		return err
	}
	return m.setVersion(ctx, db, cur-1)
}

func (m Manager) up(ctx context.Context, db *sql.DB, v int) error {
	switch v {
	case 1:
		return (Migrator{}).Up(ctx, db)
	case 2:
		// a v2 that failed after the ALTER committed left the column behind
		ok, err := hasColumn(ctx, db, "records", "description")
		if err != nil || ok {
			return err
		}
		_, err = db.ExecContext(ctx, `ALTER TABLE records ADD COLUMN description TEXT`)
		return err
	case 3:
		// ordering index for the channel search path
		stmts := []string{
			`CREATE INDEX IF NOT EXISTS idx_records_kind_name ON records(kind, name, id);`,
			`CREATE INDEX IF NOT EXISTS idx_records_name ON records(name, id);`,
		}
		for i, s := range stmts {
			if _, err := db.ExecContext(ctx, s); err != nil {
				return fmt.Errorf("v3 step %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown migration version %d", v)
	}
}

func (m Manager) down(ctx context.Context, db *sql.DB, v int) error {
	switch v {
	case 3:
		stmts := []string{
			`DROP INDEX IF EXISTS idx_records_name;`,
			`DROP INDEX IF EXISTS idx_records_kind_name;`,
		}
		for _, s := range stmts {
			_, _ = db.ExecContext(ctx, s)
		}
		return nil
	case 2:
		// dropping columns in SQLite requires table rebuild; not supported here
		return errors.New("down from v2 not supported")
	case 1:
		return errors.New("down from v1 not supported")
	default:
		return fmt.Errorf("unknown migration version %d", v)
	}
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var seedRecords = []struct{ id, kind, name string }{
	{"seed-city-1", "city", "Paris"},
	{"seed-city-2", "city", "Lisbon"},
	{"seed-city-3", "city", "Porto"},
	{"seed-fruit-1", "fruit", "Apple"},
	{"seed-fruit-2", "fruit", "Banana"},
	{"seed-fruit-3", "fruit", "Grape"},
}

// Seed inserts demo records when enabled via env (AUTOCOMPLETE_DB_SEED=true/1)
func (m Manager) Seed(ctx context.Context, db *sql.DB) error {
	v := strings.ToLower(os.Getenv("AUTOCOMPLETE_DB_SEED"))
	if v == "" || v == "0" || v == "false" {
		return nil
	}
	// only seed an empty table
	var cnt int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records`).Scan(&cnt); err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range seedRecords {
		if _, err := db.ExecContext(ctx, `INSERT INTO records(id,kind,name,description,created_at) VALUES(?,?,?,?,?)`, r.id, r.kind, r.name, "", now); err != nil {
			return err
		}
	}
	return nil
}
