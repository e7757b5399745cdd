// Package errors defines error types for agentwire.
//
// Every structured error implements AgentwireError and supports unwrapping,
// so callers can use errors.Is, errors.As, and errors.AsType.
package errors
