package diagnostics

import (
	"context"
	"time"

	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/entities"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/infrastructure/observability"
	apperrors "github.com/dalebrubaker/sourcegraph-mcp/pkg/errors"
)

// Stage identifies one search step of a check run.
type Stage string

const (
	StageCode    Stage = "code"
	StageSymbols Stage = "symbols"
)

// State tracks how far a check run progressed.
type State string

const (
	StateNotStarted       State = "not_started"
	StateConfigChecked    State = "config_checked"
	StateCodeSearchDone   State = "code_search_done"
	StateSymbolSearchDone State = "symbol_search_done"
	StateReported         State = "reported"
)

// ConfigSummary is the part of the configuration shown in the report.
// The token itself is never included.
type ConfigSummary struct {
	URL            string
	TokenSet       bool
	TimeoutSeconds int
}

// StageResult holds the outcome of one search step.
type StageResult struct {
	Stage    Stage
	Query    string
	Required bool
	Outcome  entities.SearchOutcome
	Duration time.Duration
}

// Failed reports whether the step produced an error outcome
func (s *StageResult) Failed() bool {
	return !s.Outcome.Succeeded()
}

// Report aggregates a check run.
type Report struct {
	Config ConfigSummary
	State  State

	// Err is set when the run stopped early: missing configuration before
	// any search, or an interrupt.
	Err *apperrors.AppError

	Code    *StageResult
	Symbols *StageResult

	SymbolsSkipped bool
}

// Success reports whether the mandatory code search succeeded. The symbol
// stage never changes the result.
func (r *Report) Success() bool {
	if r.Err != nil || r.Code == nil {
		return false
	}
	return r.Code.Outcome.Succeeded()
}

// Interrupted reports whether the run was cancelled
func (r *Report) Interrupted() bool {
	return r.Err != nil && apperrors.IsType(r.Err, apperrors.ErrorTypeInterrupted)
}

func (r *Report) configMissing() bool {
	return r.Err != nil && apperrors.IsType(r.Err, apperrors.ErrorTypeConfigurationMissing)
}

func (r *Report) advance(ctx context.Context, next State) {
	observability.LoggerFromContext(ctx).Debug().
		Str("from", string(r.State)).
		Str("to", string(next)).
		Msg("Check state changed")
	r.State = next
}

// SymbolsAvailable reports whether symbol search returned at least one symbol
func (r *Report) SymbolsAvailable() bool {
	if r.Symbols == nil || r.Symbols.Failed() {
		return false
	}
	for _, match := range r.Symbols.Outcome.FileMatches(maxSymbolFiles) {
		if len(match.Symbols) > 0 {
			return true
		}
	}
	return false
}
