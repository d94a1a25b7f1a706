// Package commands implements CLI command handlers for interdex.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/internal/interdex"
	"github.com/interdex-project/interdex/internal/observability"
	"github.com/interdex-project/interdex/internal/universe"
	"github.com/interdex-project/interdex/pkg/version"
)

// packFormats are the supported output shapes for the pack command.
const (
	packFormatManifest = "manifest"
	packFormatTable    = "table"
	packFormatJSON     = "json"
)

// PackCommand holds flags and dependencies for the pack CLI command.
type PackCommand struct {
	universePath string
	orderPath    string
	configPath   string
	format       string
	debug        bool
}

// NewPackCommand creates the pack command: load a universe, run interdex,
// print the resulting manifest.
func NewPackCommand() *cobra.Command {
	pc := &PackCommand{}

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Pack a class universe into ordered dex-style containers",
		Long: `Pack reads a JSON class universe (and optionally a prescribed interdex
order and a YAML config file), drives the full interdex orchestrator, and
prints the resulting container manifest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return pc.run(cobraCmd.Context())
		},
	}

	cmd.Flags().StringVar(&pc.universePath, "universe", "", "path to the JSON class universe (required)")
	cmd.Flags().StringVar(&pc.orderPath, "order", "", "path to a prescribed interdex order file")
	cmd.Flags().StringVar(&pc.configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&pc.format, "format", packFormatManifest, "output format: manifest, table, or json")
	cmd.Flags().BoolVar(&pc.debug, "debug", false, "enable debug logging to stderr")

	_ = cmd.MarkFlagRequired("universe")

	return cmd
}

func (pc *PackCommand) run(ctx context.Context) error {
	providers, err := initCLIObservability(pc.debug)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	cfg, err := config.LoadConfig(pc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	universeFile, err := os.Open(pc.universePath)
	if err != nil {
		return fmt.Errorf("open universe file: %w", err)
	}
	defer universeFile.Close()

	reg, universeClasses, err := universe.Load(universeFile)
	if err != nil {
		return fmt.Errorf("load class universe: %w", err)
	}

	var orderRaw []byte
	if pc.orderPath != "" {
		orderRaw, err = os.ReadFile(pc.orderPath)
		if err != nil {
			return fmt.Errorf("read order file: %w", err)
		}
	}

	inputs := interdex.RunInputs{
		Registry: reg,
		Universe: universeClasses,
		Order:    orderRaw,
		Plugins:  interdex.NewPluginHost(),
	}

	result, err := interdex.Run(ctx, cfg, inputs, providers)
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	return pc.printResult(result)
}

func (pc *PackCommand) printResult(result *interdex.RunResult) error {
	switch pc.format {
	case packFormatTable:
		printContainerTable(result.Sequence)
		return nil
	case packFormatJSON:
		return printContainerJSON(result.Sequence)
	default:
		return result.Sequence.WriteManifest(os.Stdout)
	}
}

func printContainerTable(seq *interdex.ContainerSequence) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"ordinal", "canary", "classes", "primary", "coldstart", "extended", "scroll", "background"})

	for _, c := range seq.Containers {
		tbl.AppendRow(table.Row{
			c.Ordinal,
			c.CanaryName(),
			len(c.Classes),
			c.Info.Primary,
			c.Info.Coldstart,
			c.Info.Extended,
			c.Info.Scroll,
			c.Info.Background,
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "", "", "total", len(seq.Containers)})
	tbl.Render()
}

func printContainerJSON(seq *interdex.ContainerSequence) error {
	type containerRow struct {
		Ordinal    int      `json:"ordinal"`
		Canary     string   `json:"canary"`
		Classes    []string `json:"classes"`
		Primary    bool     `json:"primary"`
		Coldstart  bool     `json:"coldstart"`
		Extended   bool     `json:"extended"`
		Scroll     bool     `json:"scroll"`
		Background bool     `json:"background"`
	}

	rows := make([]containerRow, 0, len(seq.Containers))

	for _, c := range seq.Containers {
		names := make([]string, 0, len(c.Classes))
		for _, cls := range c.Classes {
			names = append(names, cls.Name)
		}

		rows = append(rows, containerRow{
			Ordinal:    c.Ordinal,
			Canary:     c.CanaryName(),
			Classes:    names,
			Primary:    c.Info.Primary,
			Coldstart:  c.Info.Coldstart,
			Extended:   c.Info.Extended,
			Scroll:     c.Info.Scroll,
			Background: c.Info.Background,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	err := enc.Encode(rows)
	if err != nil {
		return fmt.Errorf("encode container listing: %w", err)
	}

	return nil
}

func initCLIObservability(debug bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeCLI

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	return observability.Init(cfg)
}
