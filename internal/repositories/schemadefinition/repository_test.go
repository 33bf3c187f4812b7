package schemadefinition

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
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
	repo := NewRepository(db, testLogger())
	fixed := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	return repo, mock
}

func commands(keys ...string) []models.UpsertCommand {
	cmds := make([]models.UpsertCommand, len(keys))
	for i, key := range keys {
		cmds[i] = models.UpsertCommand{Shop: "demo.myshopify.com", OwnerType: "PRODUCT", Key: key, Name: key}
	}
	return cmds
}

func TestUpsertStatement(t *testing.T) {
	typ := "json"
	query, args := upsertStatement(models.UpsertCommand{
		Shop:      "demo.myshopify.com",
		OwnerType: "PRODUCT",
		Key:       "seo.title_override",
		Name:      "SEO title",
		Type:      &typ,
	}, time.Now())

	assert.True(t, strings.HasPrefix(query, "INSERT INTO schema_definitions"))
	assert.Contains(t, query, `ON CONFLICT (shop, owner_type, "key") DO UPDATE`)
	assert.Contains(t, query, "name = EXCLUDED.name")
	assert.Contains(t, query, "type = EXCLUDED.type")
	assert.Contains(t, query, "description = EXCLUDED.description")
	assert.Contains(t, query, "last_audited = $")
	assert.NotContains(t, query, "id,")
	// eight insert values plus the two timestamps of the update branch
	assert.Len(t, args, 10)
}

func TestUpsertChunk_CommitsOneTransaction(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO schema_definitions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO schema_definitions").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO schema_definitions").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	err := repo.UpsertChunk(context.Background(), commands("a.1", "a.2", "a.3"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertChunk_RollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	storeErr := errors.New("duplicate key value violates unique constraint")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO schema_definitions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO schema_definitions").WillReturnError(storeErr)
	mock.ExpectRollback()

	err := repo.UpsertChunk(context.Background(), commands("a.1", "a.2", "a.3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), "a.2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertChunk_BeginFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := repo.UpsertChunk(context.Background(), commands("a.1"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertChunk_Empty(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.UpsertChunk(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByShop(t *testing.T) {
	repo, mock := newMockRepository(t)
	audited := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "shop", "owner_type", "key", "name", "type", "description", "last_audited", "created_at", "updated_at"}).
		AddRow(1, "demo.myshopify.com", "PRODUCT", "custom.care", "Care", nil, nil, nil, created, created).
		AddRow(2, "demo.myshopify.com", "PRODUCT", "seo.title_override", "SEO title", "single_line_text_field", "Overrides", audited, created, audited)

	mock.ExpectQuery(`SELECT .+ FROM schema_definitions WHERE .*shop = \$1 ORDER BY "key" ASC`).
		WithArgs("demo.myshopify.com").
		WillReturnRows(rows)

	definitions, err := repo.ListByShop(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	require.Len(t, definitions, 2)

	assert.Equal(t, "custom.care", definitions[0].Key)
	assert.Nil(t, definitions[0].Type)
	assert.Nil(t, definitions[0].LastAudited)

	assert.Equal(t, "seo.title_override", definitions[1].Key)
	require.NotNil(t, definitions[1].Type)
	assert.Equal(t, "single_line_text_field", *definitions[1].Type)
	require.NotNil(t, definitions[1].LastAudited)
	assert.True(t, audited.Equal(*definitions[1].LastAudited))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByShop_Error(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT .+ FROM schema_definitions").WillReturnError(errors.New("relation does not exist"))

	_, err := repo.ListByShop(context.Background(), "demo.myshopify.com")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "relation")
}
