// Package client implements the session client behind agentwire.Client.
//
// A Client connects a transport, runs a protocol.Controller over it, performs
// the initialize handshake, and relays domain messages to the caller through
// iterators. Outgoing control requests (interrupt, set_model, ...) go through
// the controller; incoming ones are answered by the handlers wired from the
// options: the permission callback, hook callbacks, and in-process MCP servers.
package client
