package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(pgxmock.AnyArg(), "march", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	snap, err := s.SaveSnapshot(context.Background(), "march", sampleProfiles())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "march", snap.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	profiles := []byte(`[{"table":"permits.csv","row_count":3,"columns":[{"name":"Permit Number","non_null":3}]}]`)
	mock.ExpectQuery(`SELECT id, name, profiles, created_at FROM snapshots WHERE name = \$1`).
		WithArgs("march").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "profiles", "created_at"}).
			AddRow("snap-1", "march", profiles, now))

	snap, err := s.GetSnapshot(context.Background(), "march")
	require.NoError(t, err)
	assert.Equal(t, "snap-1", snap.ID)
	require.Len(t, snap.Tables, 1)
	assert.Equal(t, "permits.csv", snap.Tables[0].Table)
	assert.Equal(t, 3, snap.Tables[0].RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, profiles, created_at FROM snapshots WHERE name = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSnapshot(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, profiles, created_at FROM snapshots ORDER BY created_at DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "profiles", "created_at"}).
			AddRow("snap-2", "april", []byte(`[]`), now).
			AddRow("snap-1", "march", []byte(`[]`), now.Add(-time.Hour)))

	snaps, err := s.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "april", snaps[0].Name)
	assert.Equal(t, "march", snaps[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM snapshots WHERE name = \$1`).
		WithArgs("march").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := s.DeleteSnapshots(context.Background(), "march")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS snapshots`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
