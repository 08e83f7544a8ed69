package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sauravvenkat/forkline/pkg/runmodel"
	"github.com/sauravvenkat/forkline/pkg/value"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := OpenDB(db)
	require.NoError(t, err)
	return s, mock
}

func TestStore_ListRuns_ScansSummaries(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"run_id", "schema_version", "status", "step_count"}).
		AddRow("run-a", "1.0.0", "success", 3).
		AddRow("run-b", "1.0.0", "pending", 1)
	mock.ExpectQuery("SELECT r.run_id").WillReturnRows(rows)

	summaries, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "run-a", summaries[0].RunID)
	assert.Equal(t, 3, summaries[0].StepCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadRun_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT schema_version").WillReturnError(sql.ErrNoRows)

	_, err := s.LoadRun(context.Background(), "missing")
	require.Error(t, err)
	var nf *ErrRunNotFound
	require.ErrorAs(t, err, &nf)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_EndRun_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE runs SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.EndRun(context.Background(), "missing", "success")
	require.Error(t, err)
	var nf *ErrRunNotFound
	require.ErrorAs(t, err, &nf)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateRun_InsertsRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.CreateRun(context.Background(), "run-x", "1.0.0", "cli", value.Null())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestStore_LoadRun_PreservesIntegerKind round-trips an event payload
// containing an integer field through a real sqlite file, guarding
// against payload JSON being decoded without json.Decoder.UseNumber
// (which would collapse the integer into KindFloat on reload).
func TestStore_LoadRun_PreservesIntegerKind(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "forkline.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	runID := "run-int"
	require.NoError(t, s.CreateRun(ctx, runID, "1.0.0", "test", value.Null()))
	require.NoError(t, s.AppendStep(ctx, runID, 0, "step"))

	payload := value.Map(map[string]value.Value{
		"retries":  value.Int(3),
		"fraction": value.Float(2.5),
	})
	require.NoError(t, s.AppendEvent(ctx, runID, 0, 0, "output", payload, "t0"))
	require.NoError(t, s.EndRun(ctx, runID, runmodel.StatusSuccess))

	run, err := s.LoadRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "test", run.Entrypoint)
	require.Len(t, run.Steps, 1)
	require.Len(t, run.Steps[0].Events, 1)

	loaded := run.Steps[0].Events[0].Payload.AsMap()
	assert.Equal(t, value.KindInt, loaded["retries"].Kind())
	assert.Equal(t, int64(3), loaded["retries"].AsInt())
	assert.Equal(t, value.KindFloat, loaded["fraction"].Kind())
	assert.Equal(t, 2.5, loaded["fraction"].AsFloat())
}
