package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolNamePack is the MCP tool name for a full pack run.
const ToolNamePack = "interdex_pack"

// ErrEmptyUniverse indicates the universe parameter is empty.
var ErrEmptyUniverse = errors.New("universe parameter is required and must not be empty")

// PackInput is the input schema for the interdex_pack tool.
type PackInput struct {
	Universe string `json:"universe"          jsonschema:"JSON array of class records: {name, references, is_interface, super, interfaces, renameable, interdex_subgroup, primary, canary}"`
	Order    string `json:"order,omitempty"   jsonschema:"prescribed interdex order, one class name or section marker per line"`
	Config   string `json:"config,omitempty"  jsonschema:"YAML config overrides layered on top of interdex defaults"`
	Format   string `json:"format,omitempty"  jsonschema:"response shape: manifest (default, plain text) or json (structured container listing)"`
}

// PackOutput is the structured result of a interdex_pack call.
type PackOutput struct {
	Manifest   string           `json:"manifest"`
	Containers []ContainerBrief `json:"containers"`
	CacheHit   bool             `json:"cache_hit"`
}

// ContainerBrief summarizes one finalized container for the JSON response
// shape, without the full Class object graph.
type ContainerBrief struct {
	Ordinal    int      `json:"ordinal"`
	Canary     string   `json:"canary"`
	Classes    []string `json:"classes"`
	Primary    bool     `json:"primary"`
	Coldstart  bool     `json:"coldstart"`
	Extended   bool     `json:"extended"`
	Scroll     bool     `json:"scroll"`
	Background bool     `json:"background"`
}

// ToolOutput is a generic wrapper for tool results, mirroring the
// structured-output convention every interdex MCP tool returns.
type ToolOutput struct {
	Data any `json:"data"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func textResult(text string, structured any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: text},
		},
	}, ToolOutput{Data: structured}, nil
}
