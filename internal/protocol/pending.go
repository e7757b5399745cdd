package protocol

import (
	"sync"

	"github.com/wagiedev/agentwire/internal/errors"
)

// pendingTable maps correlation IDs to single-use response slots.
//
// Every slot is a channel of capacity one. complete sends at most once per
// insert because it removes the entry under the lock before sending.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]chan *ControlResponse
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]chan *ControlResponse, 16)}
}

// insert registers a fresh slot for id. An id already in use is rejected
// so no waiter is ever orphaned.
func (p *pendingTable) insert(id string) (<-chan *ControlResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[id]; exists {
		return nil, errors.ErrDuplicateRequestID
	}

	ch := make(chan *ControlResponse, 1)
	p.entries[id] = ch

	return ch, nil
}

// complete removes the slot for id and fulfills it. It reports whether the
// id was pending.
func (p *pendingTable) complete(id string, resp *ControlResponse) bool {
	p.mu.Lock()

	ch, exists := p.entries[id]
	if exists {
		delete(p.entries, id)
	}

	p.mu.Unlock()

	if !exists {
		return false
	}

	ch <- resp

	return true
}

// cancel removes the slot for id without fulfilling it.
func (p *pendingTable) cancel(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[id]; !exists {
		return false
	}

	delete(p.entries, id)

	return true
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}

// ids returns the pending ids in no particular order.
func (p *pendingTable) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}

	return ids
}
