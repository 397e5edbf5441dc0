package providers

import (
	"context"
	"time"

	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/entities"
)

// SearchRequest describes one search against the code search backend
type SearchRequest struct {
	Query      string
	MaxResults int

	// Timeout bounds the request; zero falls back to the client default
	Timeout time.Duration
}

// SearchProvider defines the interface for the code search backend.
// A returned error means the backend could not be reached; any response
// body, including GraphQL errors, is returned as the envelope.
type SearchProvider interface {
	// SearchCode runs a full-text code search
	SearchCode(ctx context.Context, req SearchRequest) (entities.Envelope, error)

	// SearchSymbols runs a search restricted to indexed symbols
	SearchSymbols(ctx context.Context, req SearchRequest) (entities.Envelope, error)
}
