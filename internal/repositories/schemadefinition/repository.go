package schemadefinition

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

type SchemaDefinitionRepository interface {
	UpsertChunk(ctx context.Context, cmds []models.UpsertCommand) error
	ListByShop(ctx context.Context, shop string) ([]models.SchemaDefinition, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

// NewRepository creates a new schema definition repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpsertChunk applies cmds in one transaction, one statement per command.
// An existing (shop, owner_type, key) row has name, type and description
// replaced and last_audited refreshed.
func (r *Repository) UpsertChunk(ctx context.Context, cmds []models.UpsertCommand) error {
	ctx, span := tracing.StartSpan(ctx, "SchemaDefinitionRepository.UpsertChunk")
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(cmds)))

	if len(cmds) == 0 {
		return nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := r.now()
	for _, cmd := range cmds {
		query, args := upsertStatement(cmd, now)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"shop":       cmd.Shop,
				"owner_type": cmd.OwnerType,
				"key":        cmd.Key,
			}).Error("error upserting schema definition")
			return fmt.Errorf("error upserting schema definition %s: %w", cmd.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	r.logger.WithContext(ctx).WithField("records", len(cmds)).Debug("Upserted schema definition chunk")
	return nil
}

func upsertStatement(cmd models.UpsertCommand, now time.Time) (string, []any) {
	ib := insertStruct.InsertInto(schemaDefinitionTable, fromUpsertCommand(cmd, now))
	ub := ib.OnConflict("shop", "owner_type", "\"key\"")
	ub.Set(
		ub.Assign("name", database.Excluded("name")),
		ub.Assign("type", database.Excluded("type")),
		ub.Assign("description", database.Excluded("description")),
		ub.Assign("last_audited", now),
		ub.Assign("updated_at", now),
	)
	return ib.Build()
}

// ListByShop returns every row for shop ordered by key.
func (r *Repository) ListByShop(ctx context.Context, shop string) ([]models.SchemaDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "SchemaDefinitionRepository.ListByShop")
	defer span.End()

	sb := schemaDefinitionStruct.SelectFrom(schemaDefinitionTable)
	sb.Where(sb.Equal("shop", shop))
	sb.OrderBy("\"key\"").Asc()

	query, args := sb.Build()

	var rows []SchemaDefinitionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("shop", shop).Error("error listing schema definitions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing schema definitions")
	}

	definitions := make([]models.SchemaDefinition, len(rows))
	for i := range rows {
		definitions[i] = toSchemaDefinition(&rows[i])
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"shop":  shop,
		"count": len(definitions),
	}).Debug("Listed schema definitions")

	return definitions, nil
}
