package protocol

import (
	"fmt"
	"slices"
	"sync"

	"github.com/wagiedev/agentwire/internal/hook"
	"github.com/wagiedev/agentwire/internal/mcp"
	"github.com/wagiedev/agentwire/internal/permission"
)

// Registry holds the application callbacks the controller consults when
// the CLI initiates a request. It only references handlers; it never owns
// their state.
type Registry struct {
	mu sync.RWMutex

	permission permission.Callback
	hooks      map[string]hook.Callback
	nextHookID int
	mcp        mcp.Handler
	handlers   map[string]RequestHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks:    make(map[string]hook.Callback, 16),
		handlers: make(map[string]RequestHandler, 4),
	}
}

// SetPermissionHandler sets the can_use_tool callback. Nil restores the
// allow-everything default.
func (r *Registry) SetPermissionHandler(cb permission.Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.permission = cb
}

// RegisterHook stores cb under id, replacing any previous callback.
func (r *Registry) RegisterHook(id string, cb hook.Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks[id] = cb
}

// RegisterHooks assigns a callback id to every hook in hooks and returns the
// matcher configuration to announce in the initialize handshake.
func (r *Registry) RegisterHooks(hooks map[hook.Event][]*hook.Matcher) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	config := make(map[string]any, len(hooks))

	// Sorted so ids are stable across runs.
	events := make([]hook.Event, 0, len(hooks))
	for event := range hooks {
		events = append(events, event)
	}

	slices.Sort(events)

	for _, event := range events {
		matchers := make([]map[string]any, 0, len(hooks[event]))

		for _, m := range hooks[event] {
			if m == nil {
				continue
			}

			ids := make([]string, 0, len(m.Hooks))

			for _, cb := range m.Hooks {
				id := fmt.Sprintf("hook_%d", r.nextHookID)
				r.nextHookID++
				r.hooks[id] = cb
				ids = append(ids, id)
			}

			entry := map[string]any{
				"matcher":         m.Matcher,
				"hookCallbackIds": ids,
			}

			if m.Timeout != nil {
				entry["timeout"] = *m.Timeout
			}

			matchers = append(matchers, entry)
		}

		config[string(event)] = matchers
	}

	return config
}

// SetMCPHandler sets the mcp_message handler.
func (r *Registry) SetMCPHandler(h mcp.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mcp = h
}

// RegisterHandler sets the handler for an arbitrary incoming subtype.
// Handlers registered for can_use_tool, hook_callback or mcp_message take
// precedence over the built-in dispatch.
func (r *Registry) RegisterHandler(subtype string, h RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[subtype] = h
}

func (r *Registry) permissionHandler() permission.Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.permission
}

func (r *Registry) hook(id string) (hook.Callback, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, ok := r.hooks[id]

	return cb, ok
}

func (r *Registry) mcpHandler() mcp.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.mcp
}

func (r *Registry) handler(subtype string) (RequestHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[subtype]

	return h, ok
}

// HookCount returns the number of registered hook callbacks.
func (r *Registry) HookCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.hooks)
}
