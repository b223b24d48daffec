// Package store persists named profile snapshots so a later run can
// compare itself against a saved baseline. Two backends are provided:
// SQLite for single-user local work and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataqa/internal/drift"
)

// Snapshot is one saved baseline: the profile of every table in a run at
// a point in time, under a user-chosen name. Names are not unique;
// lookups resolve to the newest snapshot with that name.
type Snapshot struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	CreatedAt time.Time            `json:"created_at"`
	Tables    []drift.TableProfile `json:"tables"`
}

// Store defines the persistence interface for snapshots.
type Store interface {
	// SaveSnapshot stores a new snapshot under name.
	SaveSnapshot(ctx context.Context, name string, tables []drift.TableProfile) (*Snapshot, error)

	// GetSnapshot returns the newest snapshot with the given name, or an
	// error when none exists.
	GetSnapshot(ctx context.Context, name string) (*Snapshot, error)

	// ListSnapshots returns all snapshots, newest first.
	ListSnapshots(ctx context.Context) ([]Snapshot, error)

	// DeleteSnapshots removes every snapshot with the given name and
	// returns how many were deleted.
	DeleteSnapshots(ctx context.Context, name string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store for the configured driver and runs migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q (want sqlite or postgres)", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
