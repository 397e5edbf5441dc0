package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/dalebrubaker/sourcegraph-mcp/internal/diagnostics"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/domain/providers"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/infrastructure/clients/sourcegraph"
	"github.com/dalebrubaker/sourcegraph-mcp/internal/infrastructure/observability"
	"github.com/dalebrubaker/sourcegraph-mcp/pkg/config"
	apperrors "github.com/dalebrubaker/sourcegraph-mcp/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// errCheckFailed is returned by the command when the check ran but the
// backend is not usable. The report has already been printed.
var errCheckFailed = errors.New("connection check failed")

// newProvider builds the search backend client.
var newProvider = func(cfg *config.SourcegraphConfig, metrics *observability.Metrics) (providers.SearchProvider, error) {
	return sourcegraph.NewClient(cfg, metrics)
}

var (
	configPath  string
	codeQuery   string
	symbolQuery string
	skipSymbols bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the Sourcegraph connection used by the MCP server",
	Long: `check loads the Sourcegraph configuration, runs a code search and a
symbol search, and reports whether the backend is usable.

Configuration is read from .env, config.json (or --config) and the
SOURCEGRAPH_URL, SOURCEGRAPH_TOKEN and SOURCEGRAPH_TIMEOUT variables.`,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context(), cmd.OutOrStdout())
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "",
		"Config file (JSON or YAML), defaults to $SOURCEGRAPH_CONFIG or config.json")
	rootCmd.Flags().StringVar(&codeQuery, "query", "",
		"Code search query used for the check")
	rootCmd.Flags().StringVar(&symbolQuery, "symbol-query", "",
		"Symbol name used for the symbol search check")
	rootCmd.Flags().BoolVar(&skipSymbols, "skip-symbols", false,
		"Only check code search")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "",
		"Log level: trace, debug, info, warn, error")
}

func main() {
	os.Exit(execute(os.Stdout, os.Stderr))
}

// execute runs the command and maps the outcome to a process exit status.
// Panics are reported with a stack trace.
func execute(stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.NewInternalError("unexpected error", fmt.Errorf("%v", r))
			fmt.Fprintf(stdout, "\n\n❌ Unexpected error: %v\n", r)
			fmt.Fprintf(stderr, "%s\n%s", err.Error(), debug.Stack())
			code = exitFailure
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errCheckFailed):
		return exitFailure
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
}

func runCheck(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := observability.InitLogger(cfg.OTEL.ServiceName, cfg.Logging.Env, cfg.Logging.Level); err != nil {
		return err
	}

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	client, err := newProvider(&cfg.Sourcegraph, metrics)
	if err != nil {
		return err
	}

	report := diagnostics.NewChecker(cfg, client).Run(ctx)
	diagnostics.Render(out, report)

	log.Info().
		Bool("success", report.Success()).
		Str("state", string(report.State)).
		Msg("Connection check finished")

	if !report.Success() {
		return errCheckFailed
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	if codeQuery != "" {
		cfg.Check.CodeQuery = codeQuery
	}
	if symbolQuery != "" {
		cfg.Check.SymbolQuery = symbolQuery
	}
	if skipSymbols {
		cfg.Check.SkipSymbols = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}
