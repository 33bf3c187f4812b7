package syncrun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type SyncRunRepository interface {
	Create(ctx context.Context, run models.SyncRun) error
	Finish(ctx context.Context, run models.SyncRun) error
	Latest(ctx context.Context, shop, ownerType string) (models.SyncRun, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the audit row for a run that has just started.
func (r *Repository) Create(ctx context.Context, run models.SyncRun) error {
	ctx, span := tracing.StartSpan(ctx, "SyncRunRepository.Create")
	defer span.End()

	ib := syncRunStruct.InsertInto(syncRunTable, fromSyncRun(run))
	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("sync_run_id", run.ID.String()).Error("error creating sync run")
		return fmt.Errorf("error creating sync run %s: %w", run.ID, err)
	}
	return nil
}

// Finish records the terminal status of a run.
func (r *Repository) Finish(ctx context.Context, run models.SyncRun) error {
	ctx, span := tracing.StartSpan(ctx, "SyncRunRepository.Finish")
	defer span.End()

	query, args := finishStatement(fromSyncRun(run))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("sync_run_id", run.ID.String()).Error("error finishing sync run")
		return fmt.Errorf("error finishing sync run %s: %w", run.ID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("sync run %s not found", run.ID)
	}
	return nil
}

// finishStatement rewrites the whole row; the run carries every column.
func finishStatement(row *SyncRunRow) (string, []any) {
	ub := syncRunStruct.Update(syncRunTable, row)
	ub.Where(ub.Equal("id", row.ID))
	return ub.Build()
}

// Latest returns the most recently started run for shop and owner type.
func (r *Repository) Latest(ctx context.Context, shop, ownerType string) (models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "SyncRunRepository.Latest")
	defer span.End()

	sb := syncRunStruct.SelectFrom(syncRunTable)
	sb.Where(
		sb.Equal("shop", shop),
		sb.Equal("owner_type", ownerType),
	)
	sb.OrderBy("started_at").Desc()
	sb.Limit(1)

	query, args := sb.Build()

	var row SyncRunRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncRun{}, httperror.NewHTTPError(http.StatusNotFound, "no sync run found")
		}
		r.logger.WithContext(ctx).WithError(err).WithField("shop", shop).Error("error getting latest sync run")
		return models.SyncRun{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting latest sync run")
	}

	run, err := toSyncRun(&row)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("shop", shop).Error("invalid sync run row")
		return models.SyncRun{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting latest sync run")
	}
	return run, nil
}
