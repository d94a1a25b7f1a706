package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/interdex-project/interdex/internal/observability"
	"github.com/interdex-project/interdex/pkg/version"
)

// NewServeCommand creates the diagnostics server command.
func NewServeCommand() *cobra.Command {
	var (
		addr  string
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the diagnostics HTTP server",
		Long: `Start a long-running HTTP server exposing operational endpoints for a
supervised interdex deployment:
  - /healthz  liveness
  - /readyz   readiness
  - /metrics  Prometheus scrape endpoint

The server runs until interrupted (SIGINT/SIGTERM).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return runServe(cobraCmd.Context(), addr, debug)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")

	return cmd
}

func runServe(ctx context.Context, addr string, debug bool) error {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeServe
	cfg.LogJSON = true

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	providers, err := observability.Init(cfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	diag, err := observability.NewDiagnosticsServer(addr, providers.Meter)
	if err != nil {
		return err
	}

	providers.Logger.Info("diagnostics server listening", "addr", diag.Addr())

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	providers.Logger.Info("diagnostics server shutting down")

	closeErr := diag.Close()
	if closeErr != nil {
		return closeErr
	}

	return nil
}
