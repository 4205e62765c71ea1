package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesmith-dev/codesmith/pkg/bulkedit"
	"github.com/codesmith-dev/codesmith/pkg/checkpoint"
	"github.com/codesmith-dev/codesmith/pkg/config"
	"github.com/codesmith-dev/codesmith/pkg/mcp"
	"github.com/codesmith-dev/codesmith/pkg/observability"
	"github.com/codesmith-dev/codesmith/pkg/patternset"
	"github.com/codesmith-dev/codesmith/pkg/progress"
	"github.com/codesmith-dev/codesmith/pkg/rollback"
	"github.com/codesmith-dev/codesmith/pkg/streamops"
	"github.com/codesmith-dev/codesmith/pkg/streamproc"
	"github.com/codesmith-dev/codesmith/pkg/tempfs"
	"github.com/codesmith-dev/codesmith/pkg/version"
)

// metricsReadHeaderTimeout bounds header reads on the /metrics server.
const metricsReadHeaderTimeout = 10 * time.Second

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes codesmith's bulk-editing, rollback, and streaming
capabilities as tools that AI agents can discover and invoke:
  - bulk_replace, conditional_edit, batch_refactor, multi_file_edit,
    preview, validate, estimate_impact
  - rollback, list_rollbacks, verify_rollback, delete_rollback,
    rollback_history, export_rollback, import_rollback
  - process_file, bulk_transform, estimate_processing, available_processors
  - operation_progress, list_operations, cancel_operation, pause_operation,
    resume_operation, checkpoint_operation, resume_from_checkpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			if debug {
				cfg.Server.Debug = true
			}

			providers, err := initMCPObservability(cfg, debug)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, redErr := observability.NewREDMetrics(providers.Meter)
			if redErr != nil {
				return redErr
			}

			startMetricsServer(cfg.Server.MetricsPort, providers.Logger)

			srv, buildErr := buildServer(cfg, providers, red)
			if buildErr != nil {
				return buildErr
			}

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")

	return cmd
}

// buildServer wires the engine dependencies declared in cfg into an
// mcp.Server.
func buildServer(cfg *config.Config, providers observability.Providers, red *observability.REDMetrics) (*mcp.Server, error) {
	tmp, err := tempfs.New(cfg.Scratch.Dir, "codesmith", providers.Logger)
	if err != nil {
		return nil, fmt.Errorf("init scratch dir: %w", err)
	}

	store, err := rollback.New(cfg.Rollback.Dir, cfg.Rollback.Retention, cfg.Rollback.RestoreConcurrency, providers.Logger)
	if err != nil {
		return nil, fmt.Errorf("init rollback store: %w", err)
	}

	patterns := patternset.New(providers.Logger)
	progressTracker := progress.New()
	checkpoints := checkpoint.NewManager(cfg.Streaming.CheckpointDir, 0)
	engine := bulkedit.New(store, progressTracker, patterns, cfg.Streaming.ProcessorCount, providers.Logger)
	stream := streamproc.New(checkpoints, progressTracker, providers.Logger)
	ops := streamops.NewManager(cfg.Streaming.ProcessorCount, tmp, providers.Logger)

	ops.StartCleanupSweeper(cfg.Streaming.CleanupInterval, cfg.Streaming.CleanupHorizon)

	return mcp.NewServer(mcp.ServerDeps{
		Logger:      providers.Logger,
		Metrics:     red,
		Tracer:      providers.Tracer,
		Engine:      engine,
		Rollback:    store,
		Stream:      stream,
		Ops:         ops,
		Checkpoints: checkpoints,
		Progress:    progressTracker,
		Patterns:    patterns,
	}), nil
}

// startMetricsServer serves the Prometheus /metrics endpoint in the
// background. A bind failure is logged, not fatal: the MCP server itself
// does not depend on the scrape endpoint being reachable.
func startMetricsServer(port int, logger *slog.Logger) {
	handler, err := observability.PrometheusHandler()
	if err != nil {
		logger.Warn("prometheus handler init failed", "error", err)

		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()
}

func initMCPObservability(cfg *config.Config, debug bool) (observability.Providers, error) {
	oCfg := observability.DefaultConfig()
	oCfg.ServiceVersion = version.Version
	oCfg.OTLPEndpoint = cfg.Server.OTLPEndpoint

	if oCfg.OTLPEndpoint == "" {
		oCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	oCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	oCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	oCfg.Mode = observability.ModeMCP
	oCfg.LogJSON = true

	if debug {
		oCfg.LogLevel = slog.LevelDebug
		oCfg.DebugTrace = true
	}

	return observability.Init(oCfg)
}
