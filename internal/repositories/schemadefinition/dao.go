package schemadefinition

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	schemaDefinitionTable = "schema_definitions"
)

// SchemaDefinitionRow is a full schema_definitions row.
type SchemaDefinitionRow struct {
	ID          sql.NullInt64  `db:"id"`
	Shop        sql.NullString `db:"shop"`
	OwnerType   sql.NullString `db:"owner_type"`
	Key         sql.NullString `db:"key"`
	Name        sql.NullString `db:"name"`
	Type        sql.NullString `db:"type"`
	Description sql.NullString `db:"description"`
	LastAudited sql.NullTime   `db:"last_audited"`
	CreatedTS   sql.NullTime   `db:"created_at"`
	UpdatedTS   sql.NullTime   `db:"updated_at"`
}

// insertRow holds the columns written on insert. id is generated and
// last_audited stays NULL until the first update.
type insertRow struct {
	Shop        sql.NullString `db:"shop"`
	OwnerType   sql.NullString `db:"owner_type"`
	Key         sql.NullString `db:"key"`
	Name        sql.NullString `db:"name"`
	Type        sql.NullString `db:"type"`
	Description sql.NullString `db:"description"`
	CreatedTS   sql.NullTime   `db:"created_at"`
	UpdatedTS   sql.NullTime   `db:"updated_at"`
}

var (
	schemaDefinitionStruct = database.NewStruct(new(SchemaDefinitionRow))
	insertStruct           = database.NewStruct(new(insertRow))
)

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func fromUpsertCommand(cmd models.UpsertCommand, now time.Time) *insertRow {
	return &insertRow{
		Shop:        sql.NullString{String: cmd.Shop, Valid: true},
		OwnerType:   sql.NullString{String: cmd.OwnerType, Valid: true},
		Key:         sql.NullString{String: cmd.Key, Valid: true},
		Name:        sql.NullString{String: cmd.Name, Valid: true},
		Type:        nullString(cmd.Type),
		Description: nullString(cmd.Description),
		CreatedTS:   sql.NullTime{Time: now, Valid: true},
		UpdatedTS:   sql.NullTime{Time: now, Valid: true},
	}
}

func toSchemaDefinition(row *SchemaDefinitionRow) models.SchemaDefinition {
	definition := models.SchemaDefinition{
		ID:          row.ID.Int64,
		Shop:        row.Shop.String,
		OwnerType:   row.OwnerType.String,
		Key:         row.Key.String,
		Name:        row.Name.String,
		Type:        stringPtr(row.Type),
		Description: stringPtr(row.Description),
		CreatedAt:   row.CreatedTS.Time,
		UpdatedAt:   row.UpdatedTS.Time,
	}
	if row.LastAudited.Valid {
		audited := row.LastAudited.Time
		definition.LastAudited = &audited
	}
	return definition
}
