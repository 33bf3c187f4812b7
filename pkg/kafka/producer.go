package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	EventSyncCompleted = "schema.sync.completed"
	EventSyncFailed    = "schema.sync.failed"
	EventRulesUpdated  = "webhook.rules_update"
)

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	var brokerList []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokerList = append(brokerList, broker)
		}
	}

	return Config{
		Brokers: brokerList,
		Topic:   topic,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes schema sync and webhook events
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// dev brokers may not have the topic yet
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// SyncEventMessage describes a finished sync run.
type SyncEventMessage struct {
	Type       string    `json:"type"`
	SyncRunID  string    `json:"sync_run_id"`
	Shop       string    `json:"shop"`
	OwnerType  string    `json:"owner_type"`
	Status     string    `json:"status"`
	Count      int       `json:"count"`
	ChunkSizes []int     `json:"chunk_sizes,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id,omitempty"`
}

// WebhookEventMessage describes an accepted webhook delivery.
type WebhookEventMessage struct {
	Type       string          `json:"type"`
	Shop       string          `json:"shop"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	TraceID    string          `json:"trace_id,omitempty"`
}

// PublishSyncEvent publishes a sync lifecycle event keyed by shop.
func (p *Producer) PublishSyncEvent(ctx context.Context, evt *SyncEventMessage) error {
	if evt == nil {
		return fmt.Errorf("sync event is nil")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)

	return p.publish(ctx, evt.Type, evt.Shop, evt, kafka.Header{Key: "sync_run_id", Value: []byte(evt.SyncRunID)})
}

// PublishWebhookEvent publishes an accepted webhook delivery keyed by shop.
func (p *Producer) PublishWebhookEvent(ctx context.Context, evt *WebhookEventMessage) error {
	if evt == nil {
		return fmt.Errorf("webhook event is nil")
	}
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)

	return p.publish(ctx, evt.Type, evt.Shop, evt)
}

func (p *Producer) publish(ctx context.Context, eventType, shop string, payload any, extra ...kafka.Header) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.Publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", eventType),
		attribute.String("shop", shop),
	)

	data, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := append([]kafka.Header{
		{Key: "type", Value: []byte(eventType)},
		{Key: "shop", Value: []byte(shop)},
	}, extra...)
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}
	if tracestate := tracing.GetTraceState(ctx); tracestate != "" {
		headers = append(headers, kafka.Header{Key: "tracestate", Value: []byte(tracestate)})
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(shop),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		metrics.RecordKafkaPublish(p.topic, "error", time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish %s to Kafka topic %s", eventType, p.topic)
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())

	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published %s to Kafka topic %s: shop=%s", eventType, p.topic, shop)
	return nil
}
