package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/agentwire/internal/errors"
)

// Server is an in-process MCP server with a tool registry.
//
// The official SDK server expects to own a transport. The CLI instead tunnels
// JSON-RPC through control requests, so Server keeps its own registry and
// invokes handlers directly.
type Server struct {
	name    string
	version string

	mu    sync.RWMutex
	tools map[string]*registeredTool
}

type registeredTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewServer creates an empty server.
func NewServer(name, version string) *Server {
	return &Server{
		name:    name,
		version: version,
		tools:   make(map[string]*registeredTool, 8),
	}
}

// Name returns the server name.
func (s *Server) Name() string { return s.name }

// Version returns the server version.
func (s *Server) Version() string { return s.version }

// AddTool registers a tool. A tool with the same name is replaced.
func (s *Server) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools[tool.Name] = &registeredTool{tool: tool, handler: handler}
}

// AddTypedTool registers a tool whose input schema is inferred from In.
// Arguments are decoded into In before fn is called.
func AddTypedTool[In any](
	s *Server,
	name, description string,
	fn func(ctx context.Context, in In) (*mcp.CallToolResult, error),
) error {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("infer schema for %s: %w", name, err)
	}

	s.AddTool(&mcp.Tool{Name: name, Description: description, InputSchema: schema},
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var in In

			if req.Params != nil && len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
					return ErrorResult("invalid arguments: " + err.Error()), nil
				}
			}

			return fn(ctx, in)
		})

	return nil
}

// ListTools returns tool metadata in the shape tools/list expects, sorted by name.
func (s *Server) ListTools() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]map[string]any, 0, len(s.tools))

	for _, t := range s.tools {
		entry := map[string]any{
			"name":        t.tool.Name,
			"description": t.tool.Description,
		}

		if t.tool.InputSchema != nil {
			if m, ok := toMap(t.tool.InputSchema); ok {
				entry["inputSchema"] = m
			}
		}

		if t.tool.Annotations != nil {
			if m, ok := toMap(t.tool.Annotations); ok {
				entry["annotations"] = m
			}
		}

		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b map[string]any) int {
		return strings.Compare(a["name"].(string), b["name"].(string))
	})

	return result
}

// CallTool runs a tool. Tool failures are reported inside the result with
// is_error set; the returned error is reserved for encoding problems.
func (s *Server) CallTool(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	s.mu.RLock()
	t, ok := s.tools[name]
	s.mu.RUnlock()

	if !ok {
		return errorContent("Tool not found: " + name), nil
	}

	args, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments for %s: %w", name, err)
	}

	result, err := t.handler(ctx, &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: args},
	})
	if err != nil {
		toolErr := &errors.ToolExecutionError{Tool: name, Err: err}

		return errorContent(toolErr.Error()), nil
	}

	return resultToMap(result), nil
}

func errorContent(text string) map[string]any {
	return map[string]any{
		"content":  []map[string]any{{"type": "text", "text": text}},
		"is_error": true,
	}
}

func resultToMap(result *mcp.CallToolResult) map[string]any {
	if result == nil {
		return map[string]any{"content": []map[string]any{}}
	}

	content := make([]map[string]any, 0, len(result.Content))

	for _, c := range result.Content {
		switch v := c.(type) {
		case *mcp.TextContent:
			content = append(content, map[string]any{"type": "text", "text": v.Text})
		case *mcp.ImageContent:
			content = append(content, map[string]any{"type": "image", "data": v.Data, "mimeType": v.MIMEType})
		case *mcp.AudioContent:
			content = append(content, map[string]any{"type": "audio", "data": v.Data, "mimeType": v.MIMEType})
		case *mcp.ResourceLink:
			content = append(content, map[string]any{"type": "resource_link", "uri": v.URI, "name": v.Name})
		}
	}

	out := map[string]any{"content": content}
	if result.IsError {
		out["is_error"] = true
	}

	return out
}

func toMap(v any) (map[string]any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}

	return m, true
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}
