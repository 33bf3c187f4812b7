package schema

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultPageSize = 250
	MaxPageSize     = 250

	definitionsQuery = `query getMetafieldDefinitions($first: Int!, $ownerType: MetafieldOwnerType!) {
  metafieldDefinitions(first: $first, ownerType: $ownerType) {
    edges {
      node {
        id
        namespace
        key
        name
        description
        type {
          name
        }
        validationStatus
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

	nodesExpression       = "data.metafieldDefinitions.edges[].node"
	errorsExpression      = "errors"
	hasNextPageExpression = "data.metafieldDefinitions.pageInfo.hasNextPage"
	endCursorExpression   = "data.metafieldDefinitions.pageInfo.endCursor"
)

var errInvalidResponseBody = errors.New("response body is not valid JSON")

// QueryExecutor runs one GraphQL query for a session.
type QueryExecutor interface {
	Query(ctx context.Context, session httpclient.Session, query string, variables map[string]any) (*httpclient.Response, error)
}

type FetcherConfig struct {
	OwnerType string
	PageSize  int
	// Timeout bounds the remote call. Zero means no extra bound.
	Timeout time.Duration
}

// Fetcher retrieves metafield definitions for one owner type.
type Fetcher struct {
	executor  QueryExecutor
	evaluator *expressions.Evaluator
	logger    ectologger.Logger
	ownerType string
	pageSize  int
	timeout   time.Duration
}

func NewFetcher(executor QueryExecutor, evaluator *expressions.Evaluator, logger ectologger.Logger, cfg FetcherConfig) *Fetcher {
	if cfg.OwnerType == "" {
		cfg.OwnerType = models.DefaultOwnerType
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = DefaultPageSize
	}
	return &Fetcher{
		executor:  executor,
		evaluator: evaluator,
		logger:    logger,
		ownerType: cfg.OwnerType,
		pageSize:  cfg.PageSize,
		timeout:   cfg.Timeout,
	}
}

func (f *Fetcher) OwnerType() string {
	return f.ownerType
}

// Fetch issues a single query and returns the first page of definitions in
// the order the remote API returned them. Further pages are not requested.
func (f *Fetcher) Fetch(ctx context.Context, session httpclient.Session) ([]models.RawRemoteDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "Fetcher.Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("shop", session.Shop),
		attribute.String("owner_type", f.ownerType),
		attribute.Int("page_size", f.pageSize),
	)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	logger := f.logger.WithContext(ctx).WithFields(map[string]any{
		"shop":       session.Shop,
		"owner_type": f.ownerType,
	})

	resp, err := f.executor.Query(ctx, session, definitionsQuery, map[string]any{
		"first":     f.pageSize,
		"ownerType": f.ownerType,
	})
	if err != nil {
		fetchErr := &RemoteFetchError{Err: err}
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, "remote fetch failed")
		return nil, fetchErr
	}

	if !resp.OK() {
		fetchErr := &RemoteFetchError{StatusCode: resp.StatusCode, Body: boundBody(resp.Body)}
		logger.WithField("status", resp.StatusCode).Warn("remote API returned a non-success status")
		span.SetStatus(codes.Error, "non-success status")
		return nil, fetchErr
	}

	if resp.BodyJSON == nil {
		span.SetStatus(codes.Error, "invalid response body")
		return nil, &RemoteFetchError{StatusCode: resp.StatusCode, Body: boundBody(resp.Body), Err: errInvalidResponseBody}
	}

	if queryErr := f.queryErrors(resp.BodyJSON); queryErr != nil {
		span.SetStatus(codes.Error, "graphql errors")
		return nil, queryErr
	}

	var definitions []models.RawRemoteDefinition
	if err := f.evaluator.Decode(nodesExpression, resp.BodyJSON, &definitions); err != nil {
		span.SetStatus(codes.Error, "unexpected response shape")
		return nil, &RemoteFetchError{StatusCode: resp.StatusCode, Body: boundBody(resp.Body), Err: err}
	}

	if more, _ := f.evaluator.EvaluateBool(hasNextPageExpression, resp.BodyJSON); more {
		cursor, _ := f.evaluator.EvaluateString(endCursorExpression, resp.BodyJSON)
		logger.WithFields(map[string]any{
			"fetched":    len(definitions),
			"end_cursor": cursor,
		}).Warn("more definitions exist than the first page; only the first page is synced")
	}

	span.SetAttributes(attribute.Int("definitions", len(definitions)))
	logger.WithField("definitions", len(definitions)).Info("fetched metafield definitions")

	return definitions, nil
}

// queryErrors returns a RemoteQueryError for a non-empty errors array or any
// other non-null errors value. A missing, null or empty errors array is not
// an error.
func (f *Fetcher) queryErrors(body any) *RemoteQueryError {
	value, err := f.evaluator.Evaluate(errorsExpression, body)
	if err != nil || value == nil {
		return nil
	}
	if list, ok := value.([]any); ok && len(list) == 0 {
		return nil
	}
	serialized, _ := json.Marshal(value)
	return &RemoteQueryError{Errors: string(serialized)}
}
