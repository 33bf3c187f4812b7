package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// HeaderAccessToken authenticates Admin API calls
	HeaderAccessToken = "X-Shopify-Access-Token"

	DefaultAPIVersion = "2026-01"
)

// Session is the authenticated context for one shop. Producing it (OAuth,
// token exchange) belongs to the embedding app, not to this client.
type Session struct {
	Shop        string
	AccessToken string
}

// AdminClient executes GraphQL queries against a shop's Admin API.
type AdminClient struct {
	client     *Client
	logger     ectologger.Logger
	apiVersion string
	// baseURL overrides https://<shop> when set
	baseURL string
}

// NewAdminClient creates an Admin API client. baseURL may be empty.
func NewAdminClient(client *Client, logger ectologger.Logger, apiVersion, baseURL string) *AdminClient {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &AdminClient{
		client:     client,
		logger:     logger,
		apiVersion: apiVersion,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (a *AdminClient) endpoint(shop string) string {
	base := a.baseURL
	if base == "" {
		base = "https://" + shop
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", base, a.apiVersion)
}

// Query posts a GraphQL document. The returned response carries the status
// code and raw body; BodyJSON is set when the body decodes as JSON.
func (a *AdminClient) Query(ctx context.Context, session Session, query string, variables map[string]any) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "AdminClient.Query")
	defer span.End()
	span.SetAttributes(attribute.String("shop", session.Shop))

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(session.Shop), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAccessToken, session.AccessToken)

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if len(resp.Body) > 0 {
		var decoded any
		if err := json.Unmarshal(resp.Body, &decoded); err != nil {
			a.logger.WithContext(ctx).WithError(err).Debug("admin api response is not JSON")
		} else {
			resp.BodyJSON = decoded
		}
	}

	return resp, nil
}
