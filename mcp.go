package agentwire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/agentwire/internal/mcp"
)

// Re-export MCP SDK types used by tool handlers.
type (
	// CallToolRequest is the request passed to tool handlers.
	CallToolRequest = mcp.CallToolRequest

	// CallToolResult is a tool's response. Build one with TextResult or ErrorResult.
	CallToolResult = mcp.CallToolResult

	// McpTool is an MCP tool definition.
	McpTool = mcp.Tool

	// McpToolHandler is the low-level tool handler signature.
	McpToolHandler = mcp.ToolHandler

	// Schema is a JSON Schema for tool input.
	Schema = jsonschema.Schema
)

// MCPServer is an in-process MCP server. The CLI reaches it through
// mcp_message control requests, so no separate process or socket is needed.
//
//	calc := agentwire.NewMCPServer("calc", "1.0.0")
//	err := agentwire.AddTool(calc, "add", "Add two numbers",
//	    func(ctx context.Context, in struct{ A, B float64 }) (*agentwire.CallToolResult, error) {
//	        return agentwire.TextResult(fmt.Sprint(in.A + in.B)), nil
//	    })
//
//	client.Start(ctx, agentwire.WithMCPServer("calc", calc),
//	    agentwire.WithAllowedTools("mcp__calc__add"))
type MCPServer = internalmcp.Server

// NewMCPServer creates an empty in-process server.
func NewMCPServer(name, version string) *MCPServer {
	return internalmcp.NewServer(name, version)
}

// AddTool registers a tool whose input schema is inferred from In.
func AddTool[In any](
	server *MCPServer,
	name, description string,
	fn func(ctx context.Context, in In) (*CallToolResult, error),
) error {
	return internalmcp.AddTypedTool(server, name, description, fn)
}

// ToolFunc is a map-in, map-out tool implementation.
type ToolFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

// AddFuncTool registers a tool described by a raw JSON schema. The map fn
// returns is sent back as JSON text; a returned error becomes an error result.
func AddFuncTool(server *MCPServer, name, description string, schema map[string]any, fn ToolFunc) error {
	inputSchema, err := mapToJSONSchema(schema)
	if err != nil {
		return fmt.Errorf("tool %s: %w", name, err)
	}

	server.AddTool(&mcp.Tool{Name: name, Description: description, InputSchema: inputSchema},
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, err := ParseArguments(req)
			if err != nil {
				return ErrorResult(fmt.Sprintf("failed to parse arguments: %v", err)), nil
			}

			result, err := fn(ctx, args)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}

			data, err := json.Marshal(result)
			if err != nil {
				return ErrorResult(fmt.Sprintf("failed to marshal result: %v", err)), nil
			}

			return TextResult(string(data)), nil
		})

	return nil
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *CallToolResult {
	return internalmcp.TextResult(text)
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *CallToolResult {
	return internalmcp.ErrorResult(message)
}

// ParseArguments decodes a tool call's arguments into a map.
func ParseArguments(req *CallToolRequest) (map[string]any, error) {
	args := map[string]any{}

	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return args, nil
	}

	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, err
	}

	return args, nil
}

func mapToJSONSchema(m map[string]any) (*jsonschema.Schema, error) {
	if m == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	return &schema, nil
}
