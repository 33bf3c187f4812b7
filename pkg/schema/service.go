package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNoSession is returned by session providers that have no credentials.
var ErrNoSession = errors.New("no authenticated session")

// SessionProvider resolves the authenticated session a sync runs under.
type SessionProvider interface {
	Session(ctx context.Context) (httpclient.Session, error)
}

// StaticSessionProvider always returns the configured session.
type StaticSessionProvider struct {
	session httpclient.Session
}

func NewStaticSessionProvider(shop, accessToken string) *StaticSessionProvider {
	return &StaticSessionProvider{session: httpclient.Session{Shop: shop, AccessToken: accessToken}}
}

func (p *StaticSessionProvider) Session(_ context.Context) (httpclient.Session, error) {
	if p.session.Shop == "" || p.session.AccessToken == "" {
		return httpclient.Session{}, ErrNoSession
	}
	return p.session, nil
}

type DefinitionFetcher interface {
	Fetch(ctx context.Context, session httpclient.Session) ([]models.RawRemoteDefinition, error)
}

type Applier interface {
	Apply(ctx context.Context, cmds []models.UpsertCommand) (int, error)
	ChunkSize() int
}

// RunRecorder receives the audit trail of a sync run. Failures are logged and
// never change the outcome of the run.
type RunRecorder interface {
	RunStarted(ctx context.Context, run models.SyncRun) error
	RunFinished(ctx context.Context, run models.SyncRun) error
}

// Service orchestrates one sync run: fetch, normalize, upsert.
type Service struct {
	sessions  SessionProvider
	fetcher   DefinitionFetcher
	applier   Applier
	ownerType string
	recorders []RunRecorder
	logger    ectologger.Logger
	now       func() time.Time
}

func NewService(sessions SessionProvider, fetcher DefinitionFetcher, applier Applier, ownerType string, logger ectologger.Logger, recorders ...RunRecorder) *Service {
	if ownerType == "" {
		ownerType = models.DefaultOwnerType
	}
	return &Service{
		sessions:  sessions,
		fetcher:   fetcher,
		applier:   applier,
		ownerType: ownerType,
		recorders: recorders,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) OwnerType() string {
	return s.ownerType
}

// Sync runs the pipeline once. Fetch and upsert errors are returned as they
// were produced. Concurrent calls for the same shop are not serialized.
func (s *Service) Sync(ctx context.Context) (models.SyncResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SchemaService.Sync")
	defer span.End()

	session, err := s.sessions.Session(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to resolve session for sync")
		span.SetStatus(codes.Error, "no session")
		return models.SyncResult{}, fmt.Errorf("failed to resolve session: %w", err)
	}

	run := models.SyncRun{
		ID:        uuid.New(),
		Shop:      session.Shop,
		OwnerType: s.ownerType,
		Status:    models.SyncStatusRunning,
		StartedAt: s.now(),
	}
	ctx = appctx.SetShopDomain(ctx, run.Shop)
	ctx = appctx.SetSyncRunID(ctx, run.ID.String())
	span.SetAttributes(
		attribute.String("shop", run.Shop),
		attribute.String("owner_type", run.OwnerType),
		attribute.String("sync_run_id", run.ID.String()),
	)

	logger := s.logger.WithContext(ctx).WithFields(map[string]any{
		"shop":        run.Shop,
		"owner_type":  run.OwnerType,
		"sync_run_id": run.ID.String(),
	})
	logger.Info("starting schema sync")
	s.started(ctx, run)

	raws, err := s.fetcher.Fetch(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.finish(ctx, run, models.SyncStatusFailed, 0, err)
		return models.SyncResult{}, err
	}

	if len(raws) == 0 {
		logger.Info("remote returned no definitions")
		s.finish(ctx, run, models.SyncStatusNoDefinitions, 0, nil)
		return models.SyncResult{Status: models.SyncStatusNoDefinitions, Count: 0}, nil
	}

	cmds := NormalizeAll(run.Shop, run.OwnerType, raws)

	count, err := s.applier.Apply(ctx, cmds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		s.finish(ctx, run, models.SyncStatusFailed, count, err)
		return models.SyncResult{}, err
	}

	logger.WithField("count", count).Info("schema sync completed")
	s.finish(ctx, run, models.SyncStatusSuccess, count, nil)
	return models.SyncResult{Status: models.SyncStatusSuccess, Count: count}, nil
}

func (s *Service) started(ctx context.Context, run models.SyncRun) {
	for _, recorder := range s.recorders {
		if err := recorder.RunStarted(ctx, run); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warnf("audit recorder %T failed on start", recorder)
		}
	}
}

func (s *Service) finish(ctx context.Context, run models.SyncRun, status models.SyncStatus, count int, runErr error) {
	finished := s.now()
	run.Status = status
	run.Count = count
	run.FinishedAt = &finished
	run.ChunkSizes = ChunkSizes(count, s.applier.ChunkSize())
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	metrics.RecordSyncRun(run.Shop, run.OwnerType, string(status), count, finished.Sub(run.StartedAt).Seconds())

	// audit writes outlive a cancelled request
	auditCtx := context.WithoutCancel(ctx)
	for _, recorder := range s.recorders {
		if err := recorder.RunFinished(auditCtx, run); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warnf("audit recorder %T failed on finish", recorder)
		}
	}
}
