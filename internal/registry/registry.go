// Package registry implements the channel-id -> channel.Channel
// mapping described in spec.md §4.7/§9: a mutex-guarded slot table so
// exactly one connection owns each channel id at a time, mutated only
// by accept/disconnect (the I/O loop), never read-during-mutation.
package registry

import (
	"fmt"
	"sync"

	"github.com/cwsl/ilserver/internal/channel"
)

// Registry owns one *channel.Channel slot per channel id.
type Registry struct {
	mu    sync.Mutex
	slots map[int]*channel.Channel
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{slots: make(map[int]*channel.Channel)}
}

// Acquire creates and installs a new Channel for id if the slot is
// free, returning it. If the slot is already occupied it returns
// (nil, false) and the incumbent is left untouched.
func (r *Registry) Acquire(id int) (*channel.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.slots[id]; busy {
		return nil, false
	}

	ch := channel.New(id)
	r.slots[id] = ch
	return ch, true
}

// Release frees the slot for id, if it still belongs to ch. A stale
// release (the connection that created ch has already been replaced,
// which cannot happen under the one-connection-per-slot invariant but
// is checked defensively) is a no-op.
func (r *Registry) Release(id int, ch *channel.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.slots[id]; ok && cur == ch {
		delete(r.slots, id)
	}
}

// Snapshot returns a copy of the id -> channel mapping currently
// registered; as a map it has no defined iteration order. Missing ids are simply absent from the result; callers that need a
// dense [0,n) view should check len/membership themselves.
func (r *Registry) Snapshot() map[int]*channel.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int]*channel.Channel, len(r.slots))
	for id, ch := range r.slots {
		out[id] = ch
	}
	return out
}

// Get returns the channel registered at id, if any. It is intended for
// use on the worker goroutine, where the returned *Channel is safe to
// mutate without additional locking (see package channel's doc).
func (r *Registry) Get(id int) (*channel.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.slots[id]
	return ch, ok
}

// slotBusyMessage formats the log message for a connection rejected
// because its channel slot is occupied.
func slotBusyMessage(id int) string {
	return fmt.Sprintf("channel %d already has an active connection", id)
}

// SlotBusyMessage exposes slotBusyMessage for logging call sites.
func SlotBusyMessage(id int) string { return slotBusyMessage(id) }
