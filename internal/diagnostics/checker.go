package diagnostics

import (
	"context"
	"time"

	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/entities"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/providers"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/infrastructure/observability"
	"github.com/dalebrubaker/sourcegraph-mcp/pkg/config"
	apperrors "github.com/dalebrubaker/sourcegraph-mcp/pkg/errors"
)

const (
	defaultMaxResults  = 3
	defaultStepTimeout = 10 * time.Second

	// maxSampleResults caps the code search entries shown in the report
	maxSampleResults = 3

	// Symbol results are rendered as up to maxSymbolFiles files with
	// maxSymbolsPerFile symbols each.
	maxSymbolFiles    = 3
	maxSymbolsPerFile = 2
)

// Checker verifies that the search backend is reachable and answers code
// and symbol searches with the expected response shape.
type Checker struct {
	cfg      *config.Config
	provider providers.SearchProvider
}

// NewChecker creates a checker
func NewChecker(cfg *config.Config, provider providers.SearchProvider) *Checker {
	return &Checker{cfg: cfg, provider: provider}
}

// Run executes the check. It never retries; a failed code search ends the
// run, a failed symbol search is only recorded.
func (c *Checker) Run(ctx context.Context) *Report {
	logger := observability.LoggerFromContext(ctx)

	report := &Report{
		State: StateNotStarted,
		Config: ConfigSummary{
			URL:            c.cfg.Sourcegraph.URL,
			TokenSet:       c.cfg.Sourcegraph.HasToken(),
			TimeoutSeconds: c.cfg.Sourcegraph.TimeoutSeconds,
		},
	}

	defer report.advance(ctx, StateReported)

	if !report.Config.TokenSet {
		report.Err = apperrors.NewConfigurationMissingError("no access token configured")
		logger.Warn().Msg("Access token missing, skipping searches")
		return report
	}
	report.advance(ctx, StateConfigChecked)

	code := c.runStage(ctx, StageCode, c.cfg.Check.CodeQuery, true, maxSampleResults, c.provider.SearchCode)
	if ctx.Err() != nil {
		report.Err = apperrors.NewInterruptedError(ctx.Err())
		return report
	}
	report.Code = code
	report.advance(ctx, StateCodeSearchDone)

	if code.Failed() {
		return report
	}

	if c.cfg.Check.SkipSymbols {
		report.SymbolsSkipped = true
		return report
	}

	symbols := c.runStage(ctx, StageSymbols, c.cfg.Check.SymbolQuery, false, maxSymbolFiles, c.provider.SearchSymbols)
	if ctx.Err() != nil {
		report.Err = apperrors.NewInterruptedError(ctx.Err())
		return report
	}
	report.Symbols = symbols
	report.advance(ctx, StateSymbolSearchDone)

	return report
}

type searchFunc func(ctx context.Context, req providers.SearchRequest) (entities.Envelope, error)

// runStage issues one search. Only the first shown entries of the response are
// decoded, since nothing past them is rendered.
func (c *Checker) runStage(ctx context.Context, stage Stage, query string, required bool, shown int, search searchFunc) *StageResult {
	req := providers.SearchRequest{
		Query:      query,
		MaxResults: c.maxResults(),
		Timeout:    c.stepTimeout(),
	}

	start := time.Now()
	env, err := search(ctx, req)
	result := &StageResult{
		Stage:    stage,
		Query:    query,
		Required: required,
		Duration: time.Since(start),
	}

	if err != nil {
		result.Outcome = entities.TransportOutcome(err)
	} else {
		result.Outcome = entities.DecodeOutcome(env, shown)
	}

	event := observability.LoggerFromContext(ctx).Debug()
	if result.Outcome.Err != nil {
		event = event.Err(result.Outcome.Err)
	}
	event.
		Str("stage", string(stage)).
		Str("outcome", string(result.Outcome.Kind)).
		Int("match_count", result.Outcome.MatchCount).
		Dur("duration", result.Duration).
		Msg("Search stage finished")

	return result
}

func (c *Checker) maxResults() int {
	if c.cfg.Check.MaxResults > 0 {
		return c.cfg.Check.MaxResults
	}
	return defaultMaxResults
}

func (c *Checker) stepTimeout() time.Duration {
	if timeout := c.cfg.Check.StepTimeout(); timeout > 0 {
		return timeout
	}
	return defaultStepTimeout
}
