// Package mcp hosts in-process Model Context Protocol servers.
//
// Tools registered on a Server are exposed to the CLI through mcp_message
// control requests. The Router decodes the JSON-RPC message carried by each
// request, dispatches it to the named server, and encodes the JSON-RPC reply.
package mcp
