package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/webhook"
)

const (
	HeaderHmacSHA256 = "X-Shopify-Hmac-Sha256"

	maxWebhookBodyBytes = 1 << 20
)

type WebhookProcessor interface {
	Handle(ctx context.Context, event webhook.Event) webhook.Outcome
}

// WebhookHandler receives platform webhook deliveries
type WebhookHandler struct {
	processor WebhookProcessor
	logger    ectologger.Logger
}

func NewWebhookHandler(processor WebhookProcessor, logger ectologger.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// RulesUpdate verifies a rules_update delivery against its raw body
// POST /webhook/rules_update
func (h *WebhookHandler) RulesUpdate(c echo.Context) error {
	ctx := c.Request().Context()
	req := c.Request()

	// read before anything else touches the body; the signature covers these bytes
	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBodyBytes+1))
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("failed to read webhook body")
		return c.String(http.StatusUnauthorized, "Invalid signature.")
	}
	if len(body) > maxWebhookBodyBytes {
		h.logger.WithContext(ctx).WithFields(map[string]any{
			"shop":  req.Header.Get(middleware.HeaderShopDomain),
			"limit": maxWebhookBodyBytes,
		}).Warn("webhook body exceeds size limit")
		return c.String(http.StatusRequestEntityTooLarge, "Payload too large.")
	}

	outcome := h.processor.Handle(ctx, webhook.Event{
		Topic:      "rules_update",
		RawBody:    body,
		Signature:  req.Header.Get(HeaderHmacSHA256),
		ShopDomain: req.Header.Get(middleware.HeaderShopDomain),
	})
	if outcome != webhook.Accepted {
		return c.String(http.StatusUnauthorized, "Invalid signature.")
	}
	return c.String(http.StatusOK, "Webhook processed")
}
