package protocol

import (
	"context"
	"maps"
)

// Wire subtypes understood by the controller.
const (
	SubtypeInitialize        = "initialize"
	SubtypeInterrupt         = "interrupt"
	SubtypeSetPermissionMode = "set_permission_mode"
	SubtypeSetModel          = "set_model"
	SubtypeRewindFiles       = "rewind_files"
	SubtypeMCPStatus         = "mcp_status"

	SubtypeCanUseTool   = "can_use_tool"
	SubtypeHookCallback = "hook_callback"
	SubtypeMCPMessage   = "mcp_message"
)

// ControlRequest represents a control message sent to or received from the CLI.
//
// Wire format:
//
//	{
//	  "type": "control_request",
//	  "request_id": "01J...",
//	  "request": {
//	    "subtype": "initialize",
//	    "hooks": {...}
//	  }
//	}
type ControlRequest struct {
	// Type is always "control_request"
	Type string `json:"type"`

	// RequestID correlates the request with its response
	RequestID string `json:"request_id"` //nolint:tagliatelle // wire format is snake_case

	// Request holds the subtype and its fields
	Request map[string]any `json:"request"`
}

// Subtype extracts the subtype from the nested request data.
func (r *ControlRequest) Subtype() string {
	if s, ok := r.Request["subtype"].(string); ok {
		return s
	}

	return ""
}

// ControlResponse represents a response to a control request.
//
// Wire format for success:
//
//	{
//	  "type": "control_response",
//	  "response": {
//	    "subtype": "success",
//	    "request_id": "01J...",
//	    "response": {...}
//	  }
//	}
//
// Wire format for error:
//
//	{
//	  "type": "control_response",
//	  "response": {
//	    "subtype": "error",
//	    "request_id": "01J...",
//	    "error": "error message"
//	  }
//	}
type ControlResponse struct {
	// Type is always "control_response"
	Type string `json:"type"`

	// Response holds subtype, request_id, and either response or error
	Response map[string]any `json:"response"`
}

func newSuccessResponse(requestID string, payload map[string]any) *ControlResponse {
	if payload == nil {
		payload = map[string]any{}
	}

	return &ControlResponse{
		Type: "control_response",
		Response: map[string]any{
			"subtype":    "success",
			"request_id": requestID,
			"response":   payload,
		},
	}
}

func newErrorResponse(requestID, message string) *ControlResponse {
	return &ControlResponse{
		Type: "control_response",
		Response: map[string]any{
			"subtype":    "error",
			"request_id": requestID,
			"error":      message,
		},
	}
}

// IsError checks if the response is an error response.
func (r *ControlResponse) IsError() bool {
	s, _ := r.Response["subtype"].(string)

	return s == "error"
}

// ErrorMessage extracts the error message from an error response.
func (r *ControlResponse) ErrorMessage() string {
	e, _ := r.Response["error"].(string)

	return e
}

// Payload extracts the response payload from a success response.
func (r *ControlResponse) Payload() map[string]any {
	p, _ := r.Response["response"].(map[string]any)

	return p
}

// RequestID extracts the request_id from the nested response.
func (r *ControlResponse) RequestID() string {
	id, _ := r.Response["request_id"].(string)

	return id
}

// Request is an outgoing control request body.
type Request interface {
	// Subtype names the request kind on the wire.
	Subtype() string

	// Fields returns the body fields other than subtype.
	Fields() map[string]any
}

// Compile-time verification that request types implement Request.
var (
	_ Request = (*RawRequest)(nil)
	_ Request = (*InterruptRequest)(nil)
	_ Request = (*SetPermissionModeRequest)(nil)
	_ Request = (*SetModelRequest)(nil)
	_ Request = (*RewindFilesRequest)(nil)
	_ Request = (*MCPStatusRequest)(nil)
	_ Request = (*InitializeRequest)(nil)
)

// RawRequest sends an arbitrary subtype with untyped fields.
type RawRequest struct {
	Kind string
	Body map[string]any
}

func (r *RawRequest) Subtype() string { return r.Kind }

func (r *RawRequest) Fields() map[string]any { return maps.Clone(r.Body) }

// InterruptRequest asks the CLI to stop the current turn.
type InterruptRequest struct{}

func (*InterruptRequest) Subtype() string { return SubtypeInterrupt }

func (*InterruptRequest) Fields() map[string]any { return nil }

// SetPermissionModeRequest changes the permission mode mid-session.
type SetPermissionModeRequest struct {
	Mode string
}

func (*SetPermissionModeRequest) Subtype() string { return SubtypeSetPermissionMode }

func (r *SetPermissionModeRequest) Fields() map[string]any {
	return map[string]any{"mode": r.Mode}
}

// SetModelRequest switches the model. A nil Model restores the default.
type SetModelRequest struct {
	Model *string
}

func (*SetModelRequest) Subtype() string { return SubtypeSetModel }

func (r *SetModelRequest) Fields() map[string]any {
	if r.Model == nil {
		return map[string]any{"model": nil}
	}

	return map[string]any{"model": *r.Model}
}

// RewindFilesRequest restores tracked files to their state at a user message.
type RewindFilesRequest struct {
	UserMessageID string
}

func (*RewindFilesRequest) Subtype() string { return SubtypeRewindFiles }

func (r *RewindFilesRequest) Fields() map[string]any {
	return map[string]any{"user_message_id": r.UserMessageID}
}

// MCPStatusRequest queries the connection status of MCP servers.
type MCPStatusRequest struct{}

func (*MCPStatusRequest) Subtype() string { return SubtypeMCPStatus }

func (*MCPStatusRequest) Fields() map[string]any { return nil }

// InitializeRequest is the handshake sent right after connecting.
type InitializeRequest struct {
	Hooks  map[string]any
	Agents any
}

func (*InitializeRequest) Subtype() string { return SubtypeInitialize }

func (r *InitializeRequest) Fields() map[string]any {
	fields := map[string]any{"hooks": r.Hooks}
	if r.Hooks == nil {
		fields["hooks"] = map[string]any{}
	}

	if r.Agents != nil {
		fields["agents"] = r.Agents
	}

	return fields
}

// RequestHandler handles an incoming control request from the CLI.
//
// The returned map becomes the success payload. A returned error becomes an
// error response carrying its message.
type RequestHandler func(ctx context.Context, req *ControlRequest) (map[string]any, error)
