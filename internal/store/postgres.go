package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dataqa/internal/drift"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools
// satisfy it too, which is what the unit tests inject.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_snapshot":  `INSERT INTO snapshots (id, name, profiles, created_at) VALUES ($1, $2, $3, $4)`,
	"get_snapshot":     `SELECT id, name, profiles, created_at FROM snapshots WHERE name = $1 ORDER BY created_at DESC LIMIT 1`,
	"list_snapshots":   `SELECT id, name, profiles, created_at FROM snapshots ORDER BY created_at DESC`,
	"delete_snapshots": `DELETE FROM snapshots WHERE name = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	profiles   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, name string, tables []drift.TableProfile) (*Snapshot, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	profilesJSON, err := json.Marshal(tables)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal profiles")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, name, profiles, created_at) VALUES ($1, $2, $3, $4)`,
		id, name, profilesJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}

	return &Snapshot{ID: id, Name: name, CreatedAt: now, Tables: tables}, nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, name string) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, profiles, created_at FROM snapshots WHERE name = $1 ORDER BY created_at DESC LIMIT 1`,
		name,
	)

	var snap Snapshot
	var profilesJSON []byte
	err := row.Scan(&snap.ID, &snap.Name, &profilesJSON, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: snapshot not found: %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", name)
	}
	if err := json.Unmarshal(profilesJSON, &snap.Tables); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profiles")
	}
	return &snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, profiles, created_at FROM snapshots ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var profilesJSON []byte
		if err := rows.Scan(&snap.ID, &snap.Name, &profilesJSON, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		if err := json.Unmarshal(profilesJSON, &snap.Tables); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal profiles")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: iterate snapshots")
}

func (s *PostgresStore) DeleteSnapshots(ctx context.Context, name string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE name = $1`, name)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete snapshots %s", name)
	}
	return int(tag.RowsAffected()), nil
}
