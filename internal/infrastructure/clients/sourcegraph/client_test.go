package sourcegraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/entities"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/providers"
	"github.com/dalebrubaker/sourcegraph-mcp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptySearchBody = `{"data":{"search":{"results":{"matchCount":0,"results":[]}}}}`

func newTestClient(t *testing.T, serverURL string) *HTTPClient {
	t.Helper()
	client, err := NewClient(&config.SourcegraphConfig{
		URL:            serverURL,
		AccessToken:    "sgp_test",
		TimeoutSeconds: 5,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestHTTPClient_SearchCode_SendsGraphQLRequest(t *testing.T) {
	var (
		gotPath    string
		gotAuth    string
		gotReqID   string
		gotPayload graphQLRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(emptySearchBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	env, err := client.SearchCode(context.Background(), providers.SearchRequest{Query: "function", MaxResults: 3})
	require.NoError(t, err)

	assert.JSONEq(t, emptySearchBody, string(env))
	assert.Equal(t, "/.api/graphql", gotPath)
	assert.Equal(t, "token sgp_test", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "CodeSearch", gotPayload.OperationName)
	assert.Equal(t, "function count:3", gotPayload.Variables["query"])
	assert.Contains(t, gotPayload.Query, "matchCount")
}

func TestHTTPClient_SearchSymbols_UsesSymbolQuery(t *testing.T) {
	var gotPayload graphQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(emptySearchBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.SearchSymbols(context.Background(), providers.SearchRequest{Query: "main", MaxResults: 3})
	require.NoError(t, err)

	assert.Equal(t, "SymbolSearch", gotPayload.OperationName)
	assert.Equal(t, "type:symbol main count:3", gotPayload.Variables["query"])
	assert.Contains(t, gotPayload.Query, "symbols")
}

func TestHTTPClient_GraphQLErrorsArePassedThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"errors":[{"message":"boom"}]}`))
	}))
	defer server.Close()

	env, err := newTestClient(t, server.URL).SearchCode(context.Background(), providers.SearchRequest{Query: "function"})
	require.NoError(t, err)

	outcome := entities.DecodeOutcome(env, 0)
	assert.Equal(t, entities.OutcomeProtocol, outcome.Kind)
	assert.Equal(t, "boom", outcome.Err.Message)
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    string
		wantResult bool
	}{
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    "Invalid access token.",
			wantErr: "status 401: Invalid access token.",
		},
		{
			name:    "server error without body",
			status:  http.StatusBadGateway,
			wantErr: "status 502: empty response body",
		},
		{
			name:       "bad request with graphql errors",
			status:     http.StatusBadRequest,
			body:       `{"errors":[{"message":"Cannot query field"}]}`,
			wantResult: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			env, err := newTestClient(t, server.URL).SearchCode(context.Background(), providers.SearchRequest{Query: "function"})
			if tt.wantResult {
				require.NoError(t, err)
				assert.JSONEq(t, tt.body, string(env))
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPClient_OversizedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(emptySearchBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.maxBody = int64(len(emptySearchBody)) - 1

	env, err := client.SearchCode(context.Background(), providers.SearchRequest{Query: "function"})

	require.Error(t, err)
	assert.Nil(t, env)
	assert.Contains(t, err.Error(), "exceeds")

	client.maxBody = int64(len(emptySearchBody))
	env, err = client.SearchCode(context.Background(), providers.SearchRequest{Query: "function"})
	require.NoError(t, err)
	assert.JSONEq(t, emptySearchBody, string(env))
}

func TestHTTPClient_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := newTestClient(t, server.URL).SearchCode(context.Background(), providers.SearchRequest{
		Query:   "function",
		Timeout: 50 * time.Millisecond,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestHTTPClient_ParentCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, server.URL).SearchCode(ctx, providers.SearchRequest{Query: "function"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(t, url).SearchCode(context.Background(), providers.SearchRequest{Query: "function"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(&config.SourcegraphConfig{URL: " "}, nil)
	assert.Error(t, err)
}

func TestParseOperation(t *testing.T) {
	op, err := parseOperation(codeSearchDocument)
	require.NoError(t, err)
	assert.Equal(t, "CodeSearch", op.name)

	op, err = parseOperation(symbolSearchDocument)
	require.NoError(t, err)
	assert.Equal(t, "SymbolSearch", op.name)

	tests := []struct {
		name     string
		document string
	}{
		{name: "syntax error", document: `query Broken($query: String!) { search(query: $query) {`},
		{name: "anonymous", document: `query ($query: String!) { search(query: $query) { __typename } }`},
		{name: "mutation", document: `mutation Save($query: String!) { save(query: $query) }`},
		{name: "missing variable", document: `query NoVars { search(query: "x") { __typename } }`},
		{name: "two operations", document: `query A($query: String!) { a } query B($query: String!) { b }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOperation(tt.document)
			assert.Error(t, err)
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	assert.Equal(t, "function count:3", buildSearchQuery(" function ", 3, false))
	assert.Equal(t, "type:symbol main count:2", buildSearchQuery("main", 2, true))
	assert.Equal(t, "function", buildSearchQuery("function", 0, false))
}
