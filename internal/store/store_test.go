package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/district-census/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var chicago = model.CityRef{State: "IL", City: "chicago", DistrictField: "DIST_NUM"}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, chicago)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	result := &model.RunResult{OutputPath: "public/results/IL/chicago.geojson", Districts: 22, Counties: 1, TotalPopulation: 2.7e6}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, chicago, got.City)
	require.NotNil(t, got.Result)
	assert.Equal(t, 22, got.Result.Districts)
	assert.Equal(t, 2.7e6, got.Result.TotalPopulation)
	require.NotNil(t, got.FinishedAt)
	assert.Empty(t, got.Error)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, chicago)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, errors.New("district: field not found")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "district: field not found", got.Error)
	assert.Nil(t, got.Result)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.True(t, eris.Is(err, ErrRunNotFound))

	err = st.CompleteRun(ctx, "missing", &model.RunResult{})
	assert.True(t, eris.Is(err, ErrRunNotFound))

	err = st.FailRun(ctx, "missing", nil)
	assert.True(t, eris.Is(err, ErrRunNotFound))
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, chicago)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	b, err := st.CreateRun(ctx, model.CityRef{State: "CA", City: "oakland", DistrictField: "beat"})
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, b.ID, &model.RunResult{}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest first")

	il, err := st.ListRuns(ctx, RunFilter{State: "IL"})
	require.NoError(t, err)
	require.Len(t, il, 1)
	assert.Equal(t, a.ID, il[0].ID)

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "oakland", done[0].City.City)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, a.ID, page[0].ID)
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_CreateAndComplete(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO district_runs`).
		WithArgs(pgxmock.AnyArg(), "IL", "chicago", "DIST_NUM", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	run, err := s.CreateRun(ctx, chicago)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE district_runs SET result`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), run.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.CompleteRun(ctx, run.ID, &model.RunResult{Districts: 3}))

	mock.ExpectExec(`UPDATE district_runs SET error`).
		WithArgs("boom", "failed", pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = s.FailRun(ctx, "nope", errors.New("boom"))
	assert.True(t, eris.Is(err, ErrRunNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "state", "city", "district_field", "status", "result", "error", "started_at", "finished_at"}).
		AddRow("r1", "IL", "chicago", "DIST_NUM", "complete", []byte(`{"districts":22}`), (*string)(nil), started, &started)
	mock.ExpectQuery(`SELECT id, state, city, district_field, status, result, error, started_at, finished_at FROM district_runs WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(rows)

	got, err := s.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 22, got.Result.Districts)
	assert.Equal(t, started, got.StartedAt)

	mock.ExpectQuery(`FROM district_runs WHERE id`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = s.GetRun(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrRunNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "state", "city", "district_field", "status", "result", "error", "started_at", "finished_at"}).
		AddRow("r2", "IL", "chicago", "DIST_NUM", "failed", []byte(nil), func() *string { s := "boom"; return &s }(), started, (*time.Time)(nil))
	mock.ExpectQuery(`FROM district_runs WHERE 1=1 AND state = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("IL", 50).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{State: "IL"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
