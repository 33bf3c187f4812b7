package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/audit"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/internal/repositories/schemadefinition"
	"github.com/Ramsey-B/fern/internal/repositories/syncrun"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/webhook"
)

const (
	depDatabase   = "database"
	depMigrations = "migrations"
	depRedis      = "redis"
	depKafka      = "kafka"
	depHTTP       = "http"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// application holds the handles opened by the startup graph
type application struct {
	cfg      *config.Config
	logger   ectologger.Logger
	checker  *health.Checker
	db       database.DB
	redis    *redis.Client
	producer *kafka.Producer
	server   *http.Server
}

func newApplication(cfg *config.Config, logger ectologger.Logger) *application {
	return &application{
		cfg:     cfg,
		logger:  logger,
		checker: health.NewChecker(version),
	}
}

func (a *application) register(s *startup.Startup) {
	s.AddDependency(startup.Func{
		Name:    depDatabase,
		OnStart: a.startDatabase,
		OnStop: func(context.Context) error {
			if a.db == nil {
				return nil
			}
			return a.db.SQLX().Close()
		},
	})
	s.AddDependency(startup.Func{
		Name:     depMigrations,
		Requires: []string{depDatabase},
		OnStart:  a.runMigrations,
	})

	httpRequires := []string{depMigrations}
	if a.cfg.RedisEnabled {
		s.AddDependency(startup.Func{
			Name:    depRedis,
			OnStart: a.startRedis,
			OnStop: func(context.Context) error {
				if a.redis == nil {
					return nil
				}
				return a.redis.Close()
			},
		})
		httpRequires = append(httpRequires, depRedis)
	}
	if a.cfg.KafkaEnabled {
		s.AddDependency(startup.Func{
			Name: depKafka,
			OnStart: func(context.Context) error {
				a.producer = kafka.NewProducer(kafka.ParseConfig(a.cfg.KafkaBrokers, a.cfg.KafkaTopic), a.logger)
				return nil
			},
			OnStop: func(context.Context) error {
				if a.producer == nil {
					return nil
				}
				return a.producer.Close()
			},
		})
		httpRequires = append(httpRequires, depKafka)
	}

	s.AddDependency(startup.Func{
		Name:     depHTTP,
		Requires: httpRequires,
		OnStart:  a.startServer,
		OnStop:   a.stopServer,
	})
}

func (a *application) startDatabase(ctx context.Context) error {
	db, err := database.Connect(ctx, database.ConnectionConfig{
		Driver:          a.cfg.DatabaseDriver,
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}
	a.db = db
	a.checker.AddCheck(depDatabase, func(ctx context.Context) error {
		return db.SQLX().PingContext(ctx)
	})
	return nil
}

func (a *application) runMigrations(context.Context) error {
	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             a.cfg.DatabaseMigrationVersion,
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
	return migrations.Migrate(a.cfg.DatabaseName, a.db)
}

func (a *application) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	a.checker.AddCheck(depRedis, client.Ping)
	return nil
}

func (a *application) startServer(context.Context) error {
	e := a.router()

	a.server = &http.Server{
		Addr:              ":" + strconv.Itoa(a.cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("http server stopped")
		}
	}()

	a.checker.SetReady(true)
	return nil
}

func (a *application) stopServer(ctx context.Context) error {
	a.checker.SetReady(false)
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *application) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	a.checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	definitions := schemadefinition.NewRepository(a.db, a.logger)
	runs := syncrun.NewRepository(a.db, a.logger)

	recorders := []schema.RunRecorder{audit.NewDatabaseRecorder(runs)}
	var statusReader handlers.StatusReader
	if a.redis != nil {
		statusStore := redis.NewSyncStatusStore(a.redis, a.cfg.RedisStatusTTL, a.logger)
		recorders = append(recorders, audit.NewStatusRecorder(statusStore))
		statusReader = statusStore
	}
	var reactor webhook.Reactor = webhook.NoopReactor{}
	if a.producer != nil {
		events := audit.NewEventRecorder(a.producer)
		recorders = append(recorders, events)
		reactor = events
	}

	client := httpclient.NewClient(httpclient.DefaultConfig(), a.logger)
	admin := httpclient.NewAdminClient(client, a.logger, a.cfg.APIVersion, a.cfg.AdminBaseURL)
	fetcher := schema.NewFetcher(admin, expressions.NewEvaluator(), a.logger, schema.FetcherConfig{
		OwnerType: a.cfg.SchemaOwnerType,
		PageSize:  a.cfg.SchemaPageSize,
		Timeout:   a.cfg.RemoteFetchTimeout,
	})
	upserter := schema.NewUpserter(definitions, a.logger, schema.UpserterConfig{
		ChunkSize:    a.cfg.SchemaChunkSize,
		ChunkTimeout: a.cfg.ChunkTxTimeout,
	})
	sessions := schema.NewStaticSessionProvider(a.cfg.ShopDomain, a.cfg.AccessToken)
	service := schema.NewService(sessions, fetcher, upserter, a.cfg.SchemaOwnerType, a.logger, recorders...)

	syncHandler := handlers.NewSyncHandler(service, definitions, runs, statusReader, a.cfg.ShopDomain, a.cfg.SchemaOwnerType, a.logger)
	webhookHandler := handlers.NewWebhookHandler(webhook.NewHandler(a.cfg.ShopifyWebhookSecret, reactor, a.logger), a.logger)
	handlers.RegisterRoutes(e, syncHandler, webhookHandler, a.cfg.MasterKey, a.logger)

	return e
}
