// Package protocol implements the bidirectional control protocol spoken over
// a line-framed transport.
//
// A Controller correlates outgoing control_request messages with their
// control_response by ULID request id, enforces per-request timeouts on an
// injectable clock, and dispatches requests initiated by the CLI
// (can_use_tool, hook_callback, mcp_message, or any registered subtype)
// through a Registry. Every incoming request receives exactly one response,
// including when its handler fails or panics.
//
// Example usage:
//
//	transport := subprocess.New(subprocess.Config{Path: cliPath, Args: args})
//	_ = transport.Connect(ctx)
//
//	controller := protocol.NewController(log, transport, nil, nil)
//	_ = controller.Start(ctx)
//
//	resp, err := controller.SendRequest(ctx, &protocol.InterruptRequest{}, 5*time.Second)
package protocol
