package mcp

import (
	"context"
	"fmt"
	"sync"
)

const protocolVersion = "2024-11-05"

// JSON-RPC error codes used in replies.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Handler answers one mcp_message request. The returned map is sent back as
// the control response payload.
type Handler func(ctx context.Context, serverName string, message map[string]any) (map[string]any, error)

// Router dispatches JSON-RPC messages to in-process servers by name.
type Router struct {
	mu      sync.RWMutex
	servers map[string]*Server
}

// NewRouter creates a router over the given servers.
func NewRouter(servers map[string]*Server) *Router {
	r := &Router{servers: make(map[string]*Server, len(servers))}
	for name, s := range servers {
		if s != nil {
			r.servers[name] = s
		}
	}

	return r
}

// Add registers a server under name.
func (r *Router) Add(name string, s *Server) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.servers[name] = s
}

// Names returns the registered server names.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}

	return names
}

// Len returns the number of registered servers.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.servers)
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, serverName string, message map[string]any) (map[string]any, error) {
	if message == nil {
		return nil, fmt.Errorf("missing message field in mcp_message request")
	}

	method, _ := message["method"].(string)
	params, _ := message["params"].(map[string]any)
	id := normalizeID(message["id"])

	r.mu.RLock()
	server, ok := r.servers[serverName]
	r.mu.RUnlock()

	if !ok {
		return rpcError(id, codeInvalidRequest, "MCP server not found: "+serverName), nil
	}

	switch method {
	case "initialize":
		return rpcResult(id, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": server.Name(), "version": server.Version()},
		}), nil

	case "notifications/initialized":
		return rpcResult(id, map[string]any{}), nil

	case "tools/list":
		return rpcResult(id, map[string]any{"tools": server.ListTools()}), nil

	case "tools/call":
		name, _ := params["name"].(string)
		if name == "" {
			return rpcError(id, codeInvalidParams, "Missing tool name in params"), nil
		}

		args, _ := params["arguments"].(map[string]any)

		result, err := server.CallTool(ctx, name, args)
		if err != nil {
			return nil, err
		}

		return rpcResult(id, result), nil

	default:
		return rpcError(id, codeMethodNotFound, "Method not found: "+method), nil
	}
}

// normalizeID turns whole-number float IDs back into ints after JSON decoding.
func normalizeID(id any) any {
	if f, ok := id.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}

	return id
}

func rpcResult(id any, result map[string]any) map[string]any {
	return map[string]any{
		"mcp_response": map[string]any{"jsonrpc": "2.0", "id": id, "result": result},
	}
}

func rpcError(id any, code int, message string) map[string]any {
	return map[string]any{
		"mcp_response": map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"error":   map[string]any{"code": code, "message": message},
		},
	}
}
