package schemadefinition_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/internal/repositories/schemadefinition"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getTestDB(t *testing.T) database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("DB_HOST not set, skipping integration test")
	}

	logger := getTestLogger()
	name := envOr("DB_NAME", "fern")
	db, err := database.Connect(context.Background(), database.ConnectionConfig{
		Driver:          "postgres",
		Host:            host,
		Port:            envOr("DB_PORT", "5432"),
		User:            envOr("DB_USER_NAME", "user"),
		Password:        envOr("DB_PASSWORD", "password"),
		Name:            name,
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: 0,
	}, logger)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { _ = db.SQLX().Close() })

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: "../../../db/pg",
	})
	require.NoError(t, migrations.Migrate(name, db))
	return db
}

func strPtr(s string) *string { return &s }

func TestRepository_ChunkedUpsertIsIdempotent(t *testing.T) {
	db := getTestDB(t)
	logger := getTestLogger()
	repo := schemadefinition.NewRepository(db, logger)
	upserter := schema.NewUpserter(repo, logger, schema.UpserterConfig{ChunkSize: 50})

	shop := fmt.Sprintf("it-%s.myshopify.com", uuid.NewString())
	t.Cleanup(func() {
		_, _ = db.SQLX().Exec(`DELETE FROM schema_definitions WHERE shop = $1`, shop)
	})

	cmds := make([]models.UpsertCommand, 0, 120)
	for i := range 120 {
		cmds = append(cmds, models.UpsertCommand{
			Shop:      shop,
			OwnerType: "PRODUCT",
			Key:       fmt.Sprintf("custom.field_%03d", i),
			Name:      fmt.Sprintf("Field %d", i),
			Type:      strPtr("single_line_text_field"),
		})
	}

	ctx := context.Background()
	count, err := upserter.Apply(ctx, cmds)
	require.NoError(t, err)
	assert.Equal(t, 120, count)

	// same keys again with a renamed field
	cmds[7].Name = "Renamed"
	cmds[7].Description = strPtr("now described")
	count, err = upserter.Apply(ctx, cmds)
	require.NoError(t, err)
	assert.Equal(t, 120, count)

	definitions, err := repo.ListByShop(ctx, shop)
	require.NoError(t, err)
	require.Len(t, definitions, 120)

	assert.Equal(t, "custom.field_000", definitions[0].Key)
	renamed := definitions[7]
	assert.Equal(t, "custom.field_007", renamed.Key)
	assert.Equal(t, "Renamed", renamed.Name)
	require.NotNil(t, renamed.Description)
	assert.Equal(t, "now described", *renamed.Description)
	for _, d := range definitions {
		assert.NotNil(t, d.LastAudited, "second pass refreshes last_audited")
	}
}
