package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dataqa/internal/drift"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	profiles   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, name string, tables []drift.TableProfile) (*Snapshot, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	profilesJSON, err := json.Marshal(tables)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal profiles")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, name, profiles, created_at) VALUES (?, ?, ?, ?)`,
		id, name, string(profilesJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}

	return &Snapshot{ID: id, Name: name, CreatedAt: now, Tables: tables}, nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, name string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, profiles, created_at FROM snapshots WHERE name = ? ORDER BY created_at DESC LIMIT 1`,
		name,
	)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: snapshot not found: %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", name)
	}
	return snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, profiles, created_at FROM snapshots ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: iterate snapshots")
}

func (s *SQLiteStore) DeleteSnapshots(ctx context.Context, name string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete snapshots %s", name)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*Snapshot, error) {
	var snap Snapshot
	var profilesJSON string

	if err := row.Scan(&snap.ID, &snap.Name, &profilesJSON, &snap.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(profilesJSON), &snap.Tables); err != nil {
		return nil, eris.Wrap(err, "unmarshal profiles")
	}
	return &snap, nil
}
