// Package audit connects sync runs and webhook deliveries to the audit
// sinks: the sync_runs table, the Kafka event topic and the Redis status cache.
package audit

import (
	"context"
	"encoding/json"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/webhook"
)

type runStore interface {
	Create(ctx context.Context, run models.SyncRun) error
	Finish(ctx context.Context, run models.SyncRun) error
}

// DatabaseRecorder writes the sync_runs row.
type DatabaseRecorder struct {
	runs runStore
}

func NewDatabaseRecorder(runs runStore) *DatabaseRecorder {
	return &DatabaseRecorder{runs: runs}
}

func (r *DatabaseRecorder) RunStarted(ctx context.Context, run models.SyncRun) error {
	return r.runs.Create(ctx, run)
}

func (r *DatabaseRecorder) RunFinished(ctx context.Context, run models.SyncRun) error {
	return r.runs.Finish(ctx, run)
}

type eventPublisher interface {
	PublishSyncEvent(ctx context.Context, evt *kafka.SyncEventMessage) error
	PublishWebhookEvent(ctx context.Context, evt *kafka.WebhookEventMessage) error
}

// EventRecorder publishes one event per finished run.
type EventRecorder struct {
	publisher eventPublisher
}

func NewEventRecorder(publisher eventPublisher) *EventRecorder {
	return &EventRecorder{publisher: publisher}
}

func (r *EventRecorder) RunStarted(context.Context, models.SyncRun) error {
	return nil
}

func (r *EventRecorder) RunFinished(ctx context.Context, run models.SyncRun) error {
	evt := &kafka.SyncEventMessage{
		Type:       kafka.EventSyncCompleted,
		SyncRunID:  run.ID.String(),
		Shop:       run.Shop,
		OwnerType:  run.OwnerType,
		Status:     string(run.Status),
		Count:      run.Count,
		ChunkSizes: run.ChunkSizes,
	}
	if run.Status == models.SyncStatusFailed {
		evt.Type = kafka.EventSyncFailed
	}
	if run.Error != nil {
		evt.Error = *run.Error
	}
	if run.FinishedAt != nil {
		evt.Timestamp = *run.FinishedAt
	}
	return r.publisher.PublishSyncEvent(ctx, evt)
}

// React forwards accepted webhook deliveries to the event topic. Bodies that
// are not JSON are published without a payload.
func (r *EventRecorder) React(ctx context.Context, event webhook.Event) error {
	msg := &kafka.WebhookEventMessage{
		Type: kafka.EventRulesUpdated,
		Shop: event.ShopDomain,
	}
	if json.Valid(event.RawBody) {
		msg.Payload = json.RawMessage(event.RawBody)
	}
	return r.publisher.PublishWebhookEvent(ctx, msg)
}

type statusStore interface {
	SaveLast(ctx context.Context, run models.SyncRun) error
}

// StatusRecorder keeps the latest run in the status cache, including the
// running state so a status poll sees a run in progress.
type StatusRecorder struct {
	store statusStore
}

func NewStatusRecorder(store statusStore) *StatusRecorder {
	return &StatusRecorder{store: store}
}

func (r *StatusRecorder) RunStarted(ctx context.Context, run models.SyncRun) error {
	return r.store.SaveLast(ctx, run)
}

func (r *StatusRecorder) RunFinished(ctx context.Context, run models.SyncRun) error {
	return r.store.SaveLast(ctx, run)
}
