package sourcegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/entities"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/providers"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/infrastructure/observability"
	"github.com/dalebrubaker/sourcegraph-mcp/pkg/config"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	searchKindCode   = "code"
	searchKindSymbol = "symbol"

	maxResponseBytes = 10 << 20
	errorExcerptLen  = 200
)

// HTTPClient talks to the Sourcegraph GraphQL API
type HTTPClient struct {
	endpoint   string
	token      string
	timeout    time.Duration
	maxBody    int64
	httpClient *http.Client
	metrics    *observability.Metrics

	codeSearch   operation
	symbolSearch operation
}

var _ providers.SearchProvider = (*HTTPClient)(nil)

type graphQLRequest struct {
	Query         string            `json:"query"`
	OperationName string            `json:"operationName"`
	Variables     map[string]string `json:"variables"`
}

// NewClient creates a Sourcegraph client. metrics may be nil.
func NewClient(cfg *config.SourcegraphConfig, metrics *observability.Metrics) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("sourcegraph url is required")
	}

	codeSearch, err := parseOperation(codeSearchDocument)
	if err != nil {
		return nil, fmt.Errorf("code search query: %w", err)
	}
	symbolSearch, err := parseOperation(symbolSearchDocument)
	if err != nil {
		return nil, fmt.Errorf("symbol search query: %w", err)
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		endpoint:     cfg.GraphQLEndpoint(),
		token:        cfg.AccessToken,
		timeout:      timeout,
		maxBody:      maxResponseBytes,
		httpClient:   &http.Client{},
		metrics:      metrics,
		codeSearch:   codeSearch,
		symbolSearch: symbolSearch,
	}, nil
}

// SearchCode runs a full-text code search
func (c *HTTPClient) SearchCode(ctx context.Context, req providers.SearchRequest) (entities.Envelope, error) {
	return c.search(ctx, searchKindCode, c.codeSearch, buildSearchQuery(req.Query, req.MaxResults, false), req.Timeout)
}

// SearchSymbols runs a symbol search
func (c *HTTPClient) SearchSymbols(ctx context.Context, req providers.SearchRequest) (entities.Envelope, error) {
	return c.search(ctx, searchKindSymbol, c.symbolSearch, buildSearchQuery(req.Query, req.MaxResults, true), req.Timeout)
}

func buildSearchQuery(query string, maxResults int, symbols bool) string {
	q := strings.TrimSpace(query)
	if symbols {
		q = "type:symbol " + q
	}
	if maxResults > 0 {
		q = fmt.Sprintf("%s count:%d", q, maxResults)
	}
	return q
}

func (c *HTTPClient) search(ctx context.Context, kind string, op operation, query string, timeout time.Duration) (entities.Envelope, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqCtx, span := observability.StartSpan(reqCtx, "sourcegraph.search")
	defer span.End()

	requestID := uuid.NewString()
	span.SetAttributes(
		attribute.String("search.kind", kind),
		attribute.String("search.query", query),
		attribute.String("request.id", requestID),
	)
	logger := observability.LoggerFromContext(reqCtx).With().
		Str("request_id", requestID).
		Str("kind", kind).
		Logger()

	payload, err := json.Marshal(graphQLRequest{
		Query:         op.document,
		OperationName: op.name,
		Variables:     map[string]string{"query": query},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "token "+c.token)
	httpReq.Header.Set("X-Request-Id", requestID)

	logger.Debug().Str("query", query).Str("endpoint", c.endpoint).Msg("Sending search request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordSearchMetric(ctx, c.metrics, kind, 0, time.Since(start))
		logger.Debug().Err(err).Dur("duration", time.Since(start)).Msg("Search request failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("request to %s timed out after %s", c.endpoint, timeout)
		}
		return nil, fmt.Errorf("request to %s failed: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	duration := time.Since(start)
	observability.RecordSearchMetric(ctx, c.metrics, kind, resp.StatusCode, duration)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		err := fmt.Errorf("response from %s exceeds %d bytes", c.endpoint, c.maxBody)
		observability.RecordError(span, err)
		return nil, err
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", duration).
		Msg("Search request finished")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Some deployments report GraphQL validation failures with a 4xx status.
		if hasGraphQLErrors(body) {
			return entities.Envelope(body), nil
		}
		err := fmt.Errorf("sourcegraph returned status %d: %s", resp.StatusCode, excerpt(body))
		observability.RecordError(span, err)
		return nil, err
	}

	return entities.Envelope(body), nil
}

func hasGraphQLErrors(body []byte) bool {
	var envelope struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return len(envelope.Errors) > 0
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response body"
	}
	if len(text) > errorExcerptLen {
		return text[:errorExcerptLen] + "..."
	}
	return text
}
