package webhook

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Event is one inbound delivery. RawBody must be the bytes as received.
type Event struct {
	Topic      string
	RawBody    []byte
	Signature  string
	ShopDomain string
}

type Outcome int

const (
	Rejected Outcome = iota
	Accepted
)

func (o Outcome) String() string {
	if o == Accepted {
		return "accepted"
	}
	return "rejected"
}

// Reactor runs after a delivery is accepted.
type Reactor interface {
	React(ctx context.Context, event Event) error
}

// NoopReactor accepts deliveries without acting on them.
type NoopReactor struct{}

func (NoopReactor) React(context.Context, Event) error { return nil }

// Handler verifies deliveries and hands accepted ones to the reactor.
type Handler struct {
	secret  []byte
	reactor Reactor
	logger  ectologger.Logger
}

func NewHandler(secret string, reactor Reactor, logger ectologger.Logger) *Handler {
	if reactor == nil {
		reactor = NoopReactor{}
	}
	return &Handler{
		secret:  []byte(secret),
		reactor: reactor,
		logger:  logger,
	}
}

// Handle returns Rejected when the signature does not verify. A reactor
// failure is logged and the delivery stays accepted.
func (h *Handler) Handle(ctx context.Context, event Event) Outcome {
	ctx, span := tracing.StartSpan(ctx, "WebhookHandler.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.topic", event.Topic),
		attribute.String("shop", event.ShopDomain),
	)

	logger := h.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": event.Topic,
		"shop":  event.ShopDomain,
	})

	if !Verify(event.RawBody, event.Signature, h.secret) {
		metrics.RecordWebhook(event.Topic, Rejected.String())
		logger.WithError(ErrSignatureMismatch).Warn("webhook received with invalid signature")
		return Rejected
	}

	metrics.RecordWebhook(event.Topic, Accepted.String())
	logger.Info("webhook validated")

	if err := h.reactor.React(ctx, event); err != nil {
		span.RecordError(err)
		logger.WithError(err).Error("webhook reactor failed")
	}
	return Accepted
}
