package syncrun

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := database.NewDatabaseInstance(sqlx.NewDb(mockDB, "postgres"), testLogger())
	return NewRepository(db, testLogger()), mock
}

func sampleRun() models.SyncRun {
	return models.SyncRun{
		ID:        uuid.MustParse("5b0f7f0e-8d51-4b8e-9a51-0c5c1f3f3f10"),
		Shop:      "demo.myshopify.com",
		OwnerType: "PRODUCT",
		Status:    models.SyncStatusRunning,
		StartedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreate(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("INSERT INTO sync_runs").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), sampleRun()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Error(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("INSERT INTO sync_runs").WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), sampleRun())
	assert.ErrorContains(t, err, "connection reset")
}

func TestFinish(t *testing.T) {
	repo, mock := newMockRepository(t)
	run := sampleRun()
	finished := run.StartedAt.Add(3 * time.Second)
	run.Status = models.SyncStatusSuccess
	run.Count = 120
	run.ChunkSizes = []int{50, 50, 20}
	run.FinishedAt = &finished

	mock.ExpectExec(`UPDATE sync_runs SET .+ WHERE id = \$\d+`).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Finish(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("UPDATE sync_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finish(context.Background(), sampleRun())
	assert.ErrorContains(t, err, "not found")
}

func TestLatest(t *testing.T) {
	repo, mock := newMockRepository(t)
	run := sampleRun()
	finished := run.StartedAt.Add(time.Second)

	rows := sqlmock.NewRows([]string{"id", "shop", "owner_type", "status", "count", "chunk_sizes", "error", "started_at", "finished_at"}).
		AddRow(run.ID.String(), run.Shop, run.OwnerType, "failed", 50, []byte(`[50]`), "upsert failed at chunk 1", run.StartedAt, finished)

	mock.ExpectQuery(`SELECT .+ FROM sync_runs WHERE .+ ORDER BY started_at DESC LIMIT`).
		WillReturnRows(rows)

	got, err := repo.Latest(context.Background(), run.Shop, run.OwnerType)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, models.SyncStatusFailed, got.Status)
	assert.Equal(t, 50, got.Count)
	assert.Equal(t, []int{50}, got.ChunkSizes)
	require.NotNil(t, got.Error)
	assert.Equal(t, "upsert failed at chunk 1", *got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatest_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT .+ FROM sync_runs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Latest(context.Background(), "demo.myshopify.com", "PRODUCT")
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestFromSyncRun_EmptyChunkSizes(t *testing.T) {
	row := fromSyncRun(sampleRun())
	value, err := row.ChunkSizes.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), value)
	assert.False(t, row.FinishedTS.Valid)
	assert.False(t, row.Error.Valid)
}
