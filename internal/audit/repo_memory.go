package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository. It backs the default
// AUDIT_BACKEND=memory and tests; events are lost on restart.

type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	limit  int
	// head is the oldest slot once a bounded repo is full.
	head int
}

// NewMemoryRepo keeps at most limit events (oldest dropped). limit <= 0 keeps all.
func NewMemoryRepo(limit int) *MemoryRepo { return &MemoryRepo{limit: limit} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit <= 0 || len(r.events) < r.limit {
		r.events = append(r.events, e)
		return nil
	}
	r.events[r.head] = e
	r.head = (r.head + 1) % r.limit
	return nil
}

// Events returns a copy, oldest first.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	out = append(out, r.events[r.head:]...)
	return append(out, r.events[:r.head]...)
}
