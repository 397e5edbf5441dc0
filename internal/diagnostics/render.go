package diagnostics

import (
	"fmt"
	"io"
	"strings"

	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/entities"
)

var rule = strings.Repeat("=", 60)

// Render writes the human-readable report.
func Render(w io.Writer, r *Report) {
	p := &printer{w: w}

	p.line(rule)
	p.line("Sourcegraph MCP Server - Connection Test")
	p.line(rule)
	p.line("")

	p.line("📋 Configuration:")
	p.printf("  URL: %s\n", r.Config.URL)
	if r.Config.TokenSet {
		p.line("  Token: ✓ Set")
	} else {
		p.line("  Token: ✗ Not set")
	}
	p.printf("  Timeout: %ds\n", r.Config.TimeoutSeconds)
	p.line("")

	if r.configMissing() {
		renderConfigError(p)
		return
	}

	if r.Code != nil {
		renderCodeStage(p, r.Code)
	}

	if r.Interrupted() {
		p.line("")
		p.line("")
		p.line("❌ Test cancelled")
		return
	}

	if !r.Success() {
		return
	}

	if r.Symbols != nil {
		renderSymbolStage(p, r.Symbols)
	}

	renderSummary(p, r)
}

type printer struct {
	w io.Writer
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func renderConfigError(p *printer) {
	p.line("❌ ERROR: No access token configured")
	p.line("")
	p.line("Please set SOURCEGRAPH_TOKEN environment variable:")
	p.line("  export SOURCEGRAPH_TOKEN='your-token'")
	p.line("")
	p.line("Or create config.json:")
	p.line("  cp config.example.json config.json")
	p.line("  # Edit config.json with your token")
}

func renderCodeStage(p *printer, s *StageResult) {
	p.line("🔍 Testing search functionality...")
	p.printf("  Query: '%s' (finding any occurrence)\n", s.Query)
	p.line("")

	outcome := s.Outcome
	switch outcome.Kind {
	case entities.OutcomeTransport:
		p.printf("❌ Search failed: %s\n", outcome.Err.Detail())
		p.line("")
		p.line("Common issues:")
		p.line("  - Sourcegraph is not running")
		p.line("  - Wrong URL in configuration")
		p.line("  - Invalid access token")
		p.line("  - Network connectivity issues")
	case entities.OutcomeProtocol:
		p.printf("❌ GraphQL error: %s\n", outcome.Err.Detail())
	case entities.OutcomeResponseShape:
		p.printf("❌ Unexpected response format: %s\n", outcome.Err.Detail())
		p.line("")
		p.line("Response:")
		p.line(outcome.Raw.String())
	case entities.OutcomeSuccess:
		p.printf("✅ Success! Found %d matches\n", outcome.MatchCount)
		if matches := outcome.FileMatches(maxSampleResults); len(matches) > 0 {
			p.line("")
			p.line("Sample results:")
			for i, match := range matches {
				p.printf("  %d. %s\n", i+1, match.DisplayPath())
			}
		}
	}
}

func renderSymbolStage(p *printer, s *StageResult) {
	p.line("")
	p.line("🔣 Testing symbol search...")
	p.printf("  Query: '%s'\n", s.Query)
	p.line("")

	outcome := s.Outcome
	if outcome.Kind == entities.OutcomeSuccess {
		matches := outcome.FileMatches(maxSymbolFiles)
		var lines []string
		for _, match := range matches {
			for i, sym := range match.Symbols {
				if i == maxSymbolsPerFile {
					break
				}
				lines = append(lines, formatSymbol(sym, match.Path))
			}
		}

		if len(lines) == 0 {
			p.printf("⚠️  Warning: No symbols found for '%s'\n", s.Query)
			renderSymbolHint(p)
			return
		}

		p.printf("✅ Found %d symbol matches\n", outcome.MatchCount)
		p.line("")
		p.line("Sample symbols:")
		for _, l := range lines {
			p.printf("  - %s\n", l)
		}
		return
	}

	p.printf("⚠️  Warning: Symbol search failed: %s\n", outcome.Err.Detail())
	if outcome.Kind == entities.OutcomeResponseShape {
		p.line("")
		p.line("Response:")
		p.line(outcome.Raw.String())
	}
	renderSymbolHint(p)
}

func renderSymbolHint(p *printer) {
	p.line("  Symbol indexing may not be available on this instance.")
	p.line("  Code search still works; symbol results will be empty.")
}

// formatSymbol renders "name (kind) at line N, in path". Backend lines are
// zero-based.
func formatSymbol(sym entities.Symbol, path string) string {
	kind := sym.Kind
	if kind == "" {
		kind = "unknown"
	}
	if sym.Line == nil {
		return fmt.Sprintf("%s (%s), in %s", sym.Name, kind, path)
	}
	return fmt.Sprintf("%s (%s) at line %d, in %s", sym.Name, kind, *sym.Line+1, path)
}

func renderSummary(p *printer, r *Report) {
	p.line("")
	p.line(rule)
	if r.SymbolsSkipped || r.SymbolsAvailable() {
		p.line("✅ All tests passed!")
	} else {
		p.line("✅ Code search passed (symbol search unavailable)")
	}
	p.line("")
	p.line("Features:")
	p.line("  ✓ Code search")
	switch {
	case r.SymbolsSkipped:
		p.line("  - Symbol search (skipped)")
	case r.SymbolsAvailable():
		p.line("  ✓ Symbol search")
	default:
		p.line("  ⚠ Symbol search (unavailable)")
	}
	p.line("")
	p.line("Next steps:")
	p.line("1. Add the server to your MCP client configuration (see README.md)")
	p.line("2. Restart the MCP client")
	p.line("3. Start searching your codebase!")
	p.line(rule)
}
