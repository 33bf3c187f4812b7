package syncrun

import (
	"database/sql"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/google/uuid"
)

const (
	syncRunTable = "sync_runs"
)

type SyncRunRow struct {
	ID         sql.NullString        `db:"id"`
	Shop       sql.NullString        `db:"shop"`
	OwnerType  sql.NullString        `db:"owner_type"`
	Status     sql.NullString        `db:"status"`
	Count      sql.NullInt64         `db:"count"`
	ChunkSizes database.JSONB[[]int] `db:"chunk_sizes"`
	Error      sql.NullString        `db:"error"`
	StartedTS  sql.NullTime          `db:"started_at"`
	FinishedTS sql.NullTime          `db:"finished_at"`
}

var syncRunStruct = database.NewStruct(new(SyncRunRow))

func fromSyncRun(run models.SyncRun) *SyncRunRow {
	row := &SyncRunRow{
		ID:         sql.NullString{String: run.ID.String(), Valid: run.ID != uuid.Nil},
		Shop:       sql.NullString{String: run.Shop, Valid: true},
		OwnerType:  sql.NullString{String: run.OwnerType, Valid: true},
		Status:     sql.NullString{String: string(run.Status), Valid: run.Status != ""},
		Count:      sql.NullInt64{Int64: int64(run.Count), Valid: true},
		ChunkSizes: database.JSONB[[]int]{Data: run.ChunkSizes},
		StartedTS:  sql.NullTime{Time: run.StartedAt, Valid: !run.StartedAt.IsZero()},
	}
	if row.ChunkSizes.Data == nil {
		row.ChunkSizes.Data = []int{}
	}
	if run.Error != nil {
		row.Error = sql.NullString{String: *run.Error, Valid: true}
	}
	if run.FinishedAt != nil {
		row.FinishedTS = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}
	return row
}

func toSyncRun(row *SyncRunRow) (models.SyncRun, error) {
	id, err := uuid.Parse(row.ID.String)
	if err != nil {
		return models.SyncRun{}, err
	}

	run := models.SyncRun{
		ID:         id,
		Shop:       row.Shop.String,
		OwnerType:  row.OwnerType.String,
		Status:     models.SyncStatus(row.Status.String),
		Count:      int(row.Count.Int64),
		ChunkSizes: row.ChunkSizes.Data,
		StartedAt:  row.StartedTS.Time,
	}
	if row.Error.Valid {
		msg := row.Error.String
		run.Error = &msg
	}
	if row.FinishedTS.Valid {
		finished := row.FinishedTS.Time
		run.FinishedAt = &finished
	}
	return run, nil
}
