package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "ingest", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "ingest")
	require.NoError(t, err)
	assert.Equal(t, "ingest", run.Stage)
	assert.Equal(t, RunRunning, run.Status)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("completed", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing-run", RunCompleted, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadModel_NotFitted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM models WHERE id = 1`).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LoadModel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fitted model")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadLayer_NotStaged(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT kind FROM layers WHERE name = \$1`).
		WithArgs("tracts").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LoadLayer(context.Background(), "tracts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not staged")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveModel_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveModel(context.Background(), testModel())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadParcels_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM parcels`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	_, err := s.LoadParcels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no staged parcels")
	assert.NoError(t, mock.ExpectationsWereMet())
}
