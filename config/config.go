package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"fern" validate:"required"`
	Port                          int    `env:"PORT" env-default:"3000" validate:"gt=0,lt=65536"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"60"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"gt=0"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SQL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version, 0 migrates up to the latest
	DatabaseMigrationVersion uint `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis enabled; the sync status cache is skipped when false
	RedisEnabled bool `env:"REDIS_ENABLED" env-default:"true"`
	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`
	// How long the last sync run stays cached
	RedisStatusTTL time.Duration `env:"REDIS_STATUS_TTL" env-default:"168h"`

	// Kafka enabled; sync and webhook events are not published when false
	KafkaEnabled bool `env:"KAFKA_ENABLED" env-default:"false"`
	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic for sync and webhook events
	KafkaTopic string `env:"KAFKA_TOPIC" env-default:"fern-events"`

	// Shared secret for webhook signatures. Every delivery is rejected when unset.
	ShopifyWebhookSecret string `env:"SHOPIFY_WEBHOOK_SECRET" env-default:""`
	// Bearer credential for the admin routes. Every admin call is rejected when unset.
	MasterKey string `env:"DSI_MASTER_KEY" env-default:""`
	// Shop the sync runs against
	ShopDomain string `env:"SHOPIFY_SHOP_DOMAIN" env-default:""`
	// Offline access token for the shop
	AccessToken string `env:"SHOPIFY_ACCESS_TOKEN" env-default:""`
	// Admin API version
	APIVersion string `env:"SHOPIFY_API_VERSION" env-default:"2026-01"`
	// Overrides https://{shop} as the admin API base, for local mocks
	AdminBaseURL string `env:"SHOPIFY_ADMIN_BASE_URL" env-default:"" validate:"omitempty,url"`

	// Schema sync settings
	// Owner type of the synced definitions
	SchemaOwnerType string `env:"SCHEMA_OWNER_TYPE" env-default:"PRODUCT" validate:"required"`
	// Definitions requested per fetch
	SchemaPageSize int `env:"SCHEMA_PAGE_SIZE" env-default:"250" validate:"gt=0,lte=250"`
	// Records per upsert transaction
	SchemaChunkSize int `env:"SCHEMA_CHUNK_SIZE" env-default:"50" validate:"gt=0"`
	// Timeout for the remote fetch
	RemoteFetchTimeout time.Duration `env:"REMOTE_FETCH_TIMEOUT" env-default:"30s"`
	// Timeout for one chunk transaction
	ChunkTxTimeout time.Duration `env:"CHUNK_TX_TIMEOUT" env-default:"30s"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads an optional .env file, then the environment. Values already in
// the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", file)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read config from environment")
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &cfg, nil
}
