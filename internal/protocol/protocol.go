package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"k8s.io/utils/clock"

	"github.com/wagiedev/agentwire/internal/config"
	"github.com/wagiedev/agentwire/internal/errors"
)

// DefaultRequestTimeout bounds an outgoing control request when the caller
// passes no timeout.
const DefaultRequestTimeout = 30 * time.Second

// Controller manages bidirectional control message communication with the CLI.
//
// The Controller handles:
//   - Sending control_request messages with unique request IDs
//   - Routing control_response messages to waiting requests
//   - Request timeout enforcement
//   - Dispatching incoming control_request messages through a Registry
//   - Forwarding all other messages to consumers via the Messages channel
type Controller struct {
	log       *slog.Logger
	transport config.Transport
	registry  *Registry
	clock     clock.Clock

	pending *pendingTable

	// Incoming requests being handled, for control_cancel_request.
	inFlightMu sync.Mutex
	inFlight   map[string]*inFlightOperation

	messages chan config.Frame

	errMu    sync.RWMutex
	fatalErr error

	infoMu     sync.RWMutex
	serverInfo map[string]any

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// inFlightOperation tracks an incoming control request being handled.
type inFlightOperation struct {
	subtype   string
	cancel    context.CancelFunc
	completed bool
}

// exitReporter is implemented by transports that record why the remote side
// went away.
type exitReporter interface {
	ExitError() error
}

// NewController creates a controller over transport. A nil registry or
// clock gets a default.
func NewController(
	log *slog.Logger,
	transport config.Transport,
	registry *Registry,
	clk clock.Clock,
) *Controller {
	if registry == nil {
		registry = NewRegistry()
	}

	if clk == nil {
		clk = clock.RealClock{}
	}

	return &Controller{
		log:       log.With("component", "protocol"),
		transport: transport,
		registry:  registry,
		clock:     clk,
		pending:   newPendingTable(),
		inFlight:  make(map[string]*inFlightOperation, 8),
		messages:  make(chan config.Frame, 100),
		done:      make(chan struct{}),
	}
}

// Registry returns the handler registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores the first fatal error and stops the controller.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start claims the transport's message stream and begins routing.
//
// Control traffic is handled internally; everything else is forwarded on
// Messages. Start must be called before SendRequest can receive responses.
func (c *Controller) Start(ctx context.Context) error {
	var err error

	c.startOnce.Do(func() {
		var frames <-chan config.Frame

		frames, err = c.transport.Messages()
		if err != nil {
			err = fmt.Errorf("claim message stream: %w", err)

			return
		}

		c.wg.Go(func() { c.readLoop(ctx, frames) })
		c.log.Info("Protocol controller started")
	})

	return err
}

// Stop shuts the controller down. It cancels in-flight incoming handlers and
// waits for them. It is safe to call more than once.
func (c *Controller) Stop() {
	c.closeDone()
	c.cancelAllInFlight()
	c.wg.Wait()
}

// Messages returns the stream of non-control messages. Every Value is a
// map[string]any; an Err frame reports a line that was not valid JSON.
//
// The channel is closed when the controller stops or the transport's stream
// ends. Use Done and FatalError to find out why.
func (c *Controller) Messages() <-chan config.Frame {
	return c.messages
}

// SendRequest sends req and waits for the matching response.
//
// A zero timeout means DefaultRequestTimeout. A write failure returns a
// ConnectionError without waiting. No reply within the bound returns a
// ControlTimeoutError. An error reply returns a ControlError. On every path
// the pending entry is gone when SendRequest returns.
func (c *Controller) SendRequest(ctx context.Context, req Request, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	subtype := req.Subtype()
	requestID := generateRequestID()
	log := c.log.With("request_id", requestID, "subtype", subtype)

	select {
	case <-c.done:
		return nil, c.stoppedError()
	default:
	}

	body := map[string]any{"subtype": subtype}
	maps.Copy(body, req.Fields())

	data, err := json.Marshal(&ControlRequest{
		Type:      "control_request",
		RequestID: requestID,
		Request:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", subtype, err)
	}

	slot, err := c.pending.insert(requestID)
	if err != nil {
		return nil, err
	}

	log.Debug("Sending control request")

	if err := c.transport.Write(ctx, data); err != nil {
		c.pending.cancel(requestID)
		log.Warn("Failed to send control request", "error", err)

		if _, ok := stderrors.AsType[*errors.ConnectionError](err); ok {
			return nil, err
		}

		return nil, &errors.ConnectionError{Err: err}
	}

	var resp *ControlResponse

	select {
	case resp = <-slot:

	case <-c.clock.After(timeout):
		if c.pending.cancel(requestID) {
			log.Warn("Control request timed out", "timeout", timeout)

			return nil, &errors.ControlTimeoutError{Kind: "control_request", Subtype: subtype, Timeout: timeout}
		}

		// The response won the race with the timer.
		resp = <-slot

	case <-ctx.Done():
		if c.pending.cancel(requestID) {
			log.Debug("Control request cancelled")

			return nil, ctx.Err()
		}

		resp = <-slot

	case <-c.done:
		if c.pending.cancel(requestID) {
			return nil, c.stoppedError()
		}

		resp = <-slot
	}

	if resp.IsError() {
		msg := resp.ErrorMessage()
		log.Warn("Control request returned error", "error", msg)

		return nil, &errors.ControlError{Message: msg}
	}

	log.Debug("Received control response")

	return resp.Payload(), nil
}

func (c *Controller) stoppedError() error {
	if err := c.FatalError(); err != nil {
		return &errors.ConnectionError{Err: err}
	}

	return &errors.ConnectionError{Err: errors.ErrControllerStopped}
}

// HandleResponse delivers resp to the request waiting on id. It reports
// false when nothing is waiting, for example after a timeout; that case is
// not an error. A nil resp is dropped and the request keeps waiting.
func (c *Controller) HandleResponse(id string, resp *ControlResponse) bool {
	if resp == nil {
		c.log.Warn("Ignoring nil control response", "request_id", id)

		return false
	}

	if c.pending.complete(id, resp) {
		return true
	}

	c.log.Debug("No pending request for control response", "request_id", id)

	return false
}

// HandleIncoming runs the handler for a request initiated by the CLI and
// writes exactly one response for it. Handler errors and panics become error
// responses. The returned error only reports a failure to write the response.
func (c *Controller) HandleIncoming(ctx context.Context, id string, request map[string]any) error {
	opCtx, op := c.beginOperation(ctx, id, request)

	return c.runIncoming(opCtx, op, id, request)
}

func (c *Controller) beginOperation(
	ctx context.Context,
	id string,
	request map[string]any,
) (context.Context, *inFlightOperation) {
	opCtx, cancel := context.WithCancel(ctx)
	subtype, _ := request["subtype"].(string)

	op := &inFlightOperation{subtype: subtype, cancel: cancel}

	c.inFlightMu.Lock()
	c.inFlight[id] = op
	c.inFlightMu.Unlock()

	return opCtx, op
}

func (c *Controller) runIncoming(opCtx context.Context, op *inFlightOperation, id string, request map[string]any) error {
	defer func() {
		c.inFlightMu.Lock()
		op.completed = true

		if c.inFlight[id] == op {
			delete(c.inFlight, id)
		}

		c.inFlightMu.Unlock()
		op.cancel()
	}()

	log := c.log.With("request_id", id, "subtype", op.subtype)
	log.Debug("Received control request from CLI")

	payload, err := c.invoke(opCtx, &ControlRequest{
		Type:      "control_request",
		RequestID: id,
		Request:   request,
	})

	var resp *ControlResponse

	switch {
	case stderrors.Is(opCtx.Err(), context.Canceled) && err != nil:
		log.Debug("Handler was cancelled")

		resp = newErrorResponse(id, errors.ErrOperationCancelled.Error())

	case err != nil:
		log.Warn("Handler returned error", "error", err)

		resp = newErrorResponse(id, err.Error())

	default:
		resp = newSuccessResponse(id, payload)
	}

	// The handler's context may be cancelled; the reply must still go out.
	return c.writeResponse(context.WithoutCancel(opCtx), resp)
}

// invoke calls the handler for req, converting a panic into an error.
func (c *Controller) invoke(ctx context.Context, req *ControlRequest) (payload map[string]any, err error) {
	subtype := req.Subtype()

	handler, ok := c.builtinHandler(subtype)
	if !ok {
		return nil, fmt.Errorf("no handler registered for subtype %s", subtype)
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Control request handler panicked", "subtype", subtype, "panic", r)

			payload = nil
			err = fmt.Errorf("handler for %s panicked: %v", subtype, r)
		}
	}()

	return handler(ctx, req)
}

func (c *Controller) writeResponse(ctx context.Context, resp *ControlResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("Failed to marshal control response", "error", err)

		// Reply anyway so the CLI is never left waiting.
		data, err = json.Marshal(newErrorResponse(resp.RequestID(), "marshal response: "+err.Error()))
		if err != nil {
			return fmt.Errorf("marshal control response: %w", err)
		}
	}

	if err := c.transport.Write(ctx, data); err != nil {
		c.log.Debug("Failed to send control response", "error", err)

		return fmt.Errorf("send control response: %w", err)
	}

	return nil
}

// readLoop consumes the transport stream until it ends or the controller stops.
func (c *Controller) readLoop(ctx context.Context, frames <-chan config.Frame) {
	defer close(c.messages)
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				c.streamEnded()

				return
			}

			c.handleFrame(ctx, frame)

		case <-c.done:
			return

		case <-ctx.Done():
			c.SetFatalError(ctx.Err())

			return
		}
	}
}

func (c *Controller) streamEnded() {
	c.log.Debug("Transport message stream ended")

	if r, ok := c.transport.(exitReporter); ok {
		if err := r.ExitError(); err != nil {
			c.SetFatalError(err)

			return
		}
	}

	c.closeDone()
}

func (c *Controller) handleFrame(ctx context.Context, frame config.Frame) {
	if frame.Err != nil {
		if _, ok := stderrors.AsType[*errors.IOError](frame.Err); ok {
			c.log.Warn("Transport read failed", "error", frame.Err)
			c.SetFatalError(frame.Err)

			return
		}

		c.forward(ctx, frame)

		return
	}

	msg, ok := frame.Value.(map[string]any)
	if !ok {
		parseErr := &errors.MessageParseError{Reason: fmt.Sprintf("expected JSON object, got %T", frame.Value), Raw: frame.Value}
		c.log.Warn("Skipping message", "error", parseErr)

		return
	}

	msgType, _ := msg["type"].(string)

	switch msgType {
	case "control_response":
		c.handleControlResponse(msg)

	case "control_request":
		c.handleControlRequest(ctx, msg)

	case "control_cancel_request":
		c.handleCancelRequest(ctx, msg)

	default:
		c.forward(ctx, config.Frame{Value: msg})
	}
}

func (c *Controller) forward(ctx context.Context, frame config.Frame) {
	select {
	case c.messages <- frame:
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *Controller) handleControlResponse(msg map[string]any) {
	responseData, ok := msg["response"].(map[string]any)
	if !ok {
		c.log.Warn("Skipping message", "error", &errors.MessageParseError{Reason: "control_response missing response", Raw: msg})

		return
	}

	requestID, ok := responseData["request_id"].(string)
	if !ok {
		c.log.Warn("Skipping message", "error", &errors.MessageParseError{Reason: "control_response missing request_id", Raw: msg})

		return
	}

	c.HandleResponse(requestID, &ControlResponse{Type: "control_response", Response: responseData})
}

func (c *Controller) handleControlRequest(ctx context.Context, msg map[string]any) {
	requestID, ok := msg["request_id"].(string)
	if !ok {
		c.log.Warn("Skipping message", "error", &errors.MessageParseError{Reason: "control_request missing request_id", Raw: msg})

		return
	}

	request, ok := msg["request"].(map[string]any)
	if !ok {
		c.log.Warn("Control request missing request body", "request_id", requestID)

		request = map[string]any{}
	}

	// Registered before the goroutine starts so a cancel that follows
	// immediately can find it.
	opCtx, op := c.beginOperation(ctx, requestID, request)

	c.wg.Go(func() {
		if err := c.runIncoming(opCtx, op, requestID, request); err != nil {
			c.log.Debug("Could not reply to control request", "request_id", requestID, "error", err)
		}
	})
}

// handleCancelRequest cancels an in-flight incoming operation and acknowledges.
func (c *Controller) handleCancelRequest(ctx context.Context, msg map[string]any) {
	requestID, ok := msg["request_id"].(string)
	if !ok {
		c.log.Warn("Cancel request missing request_id")

		return
	}

	c.inFlightMu.Lock()

	op, found := c.inFlight[requestID]

	alreadyCompleted := found && op.completed
	if found && !alreadyCompleted {
		op.cancel()
	}

	c.inFlightMu.Unlock()

	c.log.Debug("Cancel request processed",
		"request_id", requestID,
		"found", found,
		"already_completed", alreadyCompleted,
	)

	ack := &ControlResponse{
		Type: "control_response",
		Response: map[string]any{
			"subtype":           "cancel_acknowledgment",
			"request_id":        requestID,
			"found":             found,
			"already_completed": alreadyCompleted,
		},
	}

	if err := c.writeResponse(ctx, ack); err != nil {
		c.log.Debug("Could not acknowledge cancel request", "request_id", requestID, "error", err)
	}
}

func (c *Controller) cancelAllInFlight() {
	c.inFlightMu.Lock()
	defer c.inFlightMu.Unlock()

	for _, op := range c.inFlight {
		if !op.completed {
			op.cancel()
		}
	}
}

// generateRequestID mints a sortable, unguessable correlation id.
func generateRequestID() string {
	return ulid.Make().String()
}
