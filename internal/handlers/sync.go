package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
)

const noDefinitionsMessage = "No metafield definitions found"

type Syncer interface {
	Sync(ctx context.Context) (models.SyncResult, error)
}

type DefinitionLister interface {
	ListByShop(ctx context.Context, shop string) ([]models.SchemaDefinition, error)
}

type LatestRunFinder interface {
	Latest(ctx context.Context, shop, ownerType string) (models.SyncRun, error)
}

type StatusReader interface {
	Last(ctx context.Context, shop, ownerType string) (models.SyncRun, bool, error)
}

// SyncHandler serves the admin sync routes
type SyncHandler struct {
	syncer      Syncer
	definitions DefinitionLister
	runs        LatestRunFinder
	status      StatusReader
	shop        string
	ownerType   string
	logger      ectologger.Logger
}

// NewSyncHandler creates a sync handler. status may be nil when redis is
// not configured.
func NewSyncHandler(
	syncer Syncer,
	definitions DefinitionLister,
	runs LatestRunFinder,
	status StatusReader,
	shop string,
	ownerType string,
	logger ectologger.Logger,
) *SyncHandler {
	return &SyncHandler{
		syncer:      syncer,
		definitions: definitions,
		runs:        runs,
		status:      status,
		shop:        shop,
		ownerType:   ownerType,
		logger:      logger,
	}
}

type SyncResponse struct {
	Status  models.SyncStatus `json:"status"`
	Message string            `json:"message,omitempty"`
	Count   int               `json:"count"`
}

type SchemaListResponse struct {
	Shop        string                    `json:"shop"`
	Count       int                       `json:"count"`
	Definitions []models.SchemaDefinition `json:"definitions"`
}

// SyncStatusResponse is the public view of a sync run. The run's error text
// stays in sync_runs and the logs.
type SyncStatusResponse struct {
	ID         uuid.UUID         `json:"id"`
	Shop       string            `json:"shop"`
	OwnerType  string            `json:"owner_type"`
	Status     models.SyncStatus `json:"status"`
	Count      int               `json:"count"`
	ChunkSizes []int             `json:"chunk_sizes"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

func toSyncStatusResponse(run models.SyncRun) SyncStatusResponse {
	return SyncStatusResponse{
		ID:         run.ID,
		Shop:       run.Shop,
		OwnerType:  run.OwnerType,
		Status:     run.Status,
		Count:      run.Count,
		ChunkSizes: run.ChunkSizes,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

// Sync runs one schema sync
// POST /admin/sync-schema
func (h *SyncHandler) Sync(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.syncer.Sync(ctx)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).WithField("failure", failureKind(err)).Error("schema sync failed")
		return InternalError("sync failed")
	}

	resp := SyncResponse{Status: result.Status, Count: result.Count}
	if result.Status == models.SyncStatusNoDefinitions {
		resp.Message = noDefinitionsMessage
	}
	return SuccessResponse(c, resp)
}

// Schema lists the local definitions of the configured shop
// GET /admin/schema
func (h *SyncHandler) Schema(c echo.Context) error {
	ctx := c.Request().Context()
	if h.shop == "" {
		return BadRequest("shop is not configured")
	}

	definitions, err := h.definitions.ListByShop(ctx, h.shop)
	if err != nil {
		return err
	}

	return SuccessResponse(c, SchemaListResponse{
		Shop:        h.shop,
		Count:       len(definitions),
		Definitions: definitions,
	})
}

// Status returns the latest sync run, from the status cache when possible
// GET /admin/sync-status
func (h *SyncHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	if h.shop == "" {
		return BadRequest("shop is not configured")
	}

	if h.status != nil {
		run, found, err := h.status.Last(ctx, h.shop, h.ownerType)
		if err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("status cache unavailable, reading sync_runs")
		} else if found {
			return SuccessResponse(c, toSyncStatusResponse(run))
		}
	}

	run, err := h.runs.Latest(ctx, h.shop, h.ownerType)
	if err != nil {
		return err
	}
	return SuccessResponse(c, toSyncStatusResponse(run))
}

func failureKind(err error) string {
	var (
		fetchErr  *schema.RemoteFetchError
		queryErr  *schema.RemoteQueryError
		upsertErr *schema.UpsertError
	)
	switch {
	case errors.As(err, &fetchErr):
		return "remote_fetch"
	case errors.As(err, &queryErr):
		return "remote_query"
	case errors.As(err, &upsertErr):
		return "upsert"
	case errors.Is(err, schema.ErrNoSession):
		return "session"
	default:
		return "unknown"
	}
}
