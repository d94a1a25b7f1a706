package mcp

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/internal/interdex"
	"github.com/interdex-project/interdex/internal/observability"
	"github.com/interdex-project/interdex/internal/universe"
)

// formatJSON requests the structured container-listing response shape.
const formatJSON = "json"

// handlePack processes interdex_pack tool calls: decode the universe,
// resolve config overrides, drive a full orchestrator run, and render the
// manifest (or a structured container listing) back to the caller.
func handlePack(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input PackInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validatePackInput(input)
	if err != nil {
		return errorResult(err)
	}

	cfg, err := resolvePackConfig(input.Config)
	if err != nil {
		return errorResult(fmt.Errorf("resolve config: %w", err))
	}

	reg, universeClasses, err := universe.Load(strings.NewReader(input.Universe))
	if err != nil {
		return errorResult(fmt.Errorf("load universe: %w", err))
	}

	runInputs := interdex.RunInputs{
		Registry: reg,
		Universe: universeClasses,
		Order:    []byte(input.Order),
		Plugins:  interdex.NewPluginHost(),
	}

	result, err := interdex.Run(ctx, cfg, runInputs, observability.Providers{})
	if err != nil {
		return errorResult(fmt.Errorf("pack: %w", err))
	}

	var manifestBuf bytes.Buffer

	err = result.Sequence.WriteManifest(&manifestBuf)
	if err != nil {
		return errorResult(fmt.Errorf("write manifest: %w", err))
	}

	output := PackOutput{
		Manifest:   manifestBuf.String(),
		Containers: briefContainers(result.Sequence),
		CacheHit:   result.CacheHit,
	}

	if input.Format == formatJSON {
		return jsonResult(output)
	}

	return textResult(output.Manifest, output)
}

func validatePackInput(input PackInput) error {
	if strings.TrimSpace(input.Universe) == "" {
		return ErrEmptyUniverse
	}

	return nil
}

func resolvePackConfig(rawYAML string) (*config.Config, error) {
	if strings.TrimSpace(rawYAML) == "" {
		return config.DefaultConfig()
	}

	return config.LoadFromBytes([]byte(rawYAML), "yaml")
}

func briefContainers(seq *interdex.ContainerSequence) []ContainerBrief {
	briefs := make([]ContainerBrief, 0, len(seq.Containers))

	for _, c := range seq.Containers {
		names := make([]string, 0, len(c.Classes))
		for _, cls := range c.Classes {
			names = append(names, cls.Name)
		}

		briefs = append(briefs, ContainerBrief{
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

	return briefs
}
