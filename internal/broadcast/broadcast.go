// Package broadcast implements a single-producer, many-consumer
// latest-value channel: a "watch" primitive for platforms (plain Go,
// here) that don't ship one in the standard library. See spec section 4.3.
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Changed once the producer has stopped publishing.
var ErrClosed = errors.New("broadcast: producer closed")

// Broadcaster is the producer side of the channel.
type Broadcaster[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	closed  bool
	notify  chan struct{}
}

// New creates a broadcaster seeded with an initial value and returns the
// first handle; Subscribe creates any further handles.
func New[T any](initial T) (*Broadcaster[T], *Handle[T]) {
	b := &Broadcaster[T]{value: initial, notify: make(chan struct{})}
	return b, b.Subscribe()
}

// Publish overwrites the current value and wakes every waiting reader.
// Coalescing is intentional: a lagging reader sees the latest state, not a
// backlog of intermediate frames. It returns ErrClosed if the broadcaster
// has already been closed, matching spec section 4.2's "publish fails ->
// terminate" exit path.
func (b *Broadcaster[T]) Publish(value T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.value = value
	b.version++
	close(b.notify)
	b.notify = make(chan struct{})
	return nil
}

// Close marks the broadcaster as done; every blocked and future Changed
// call returns ErrClosed.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Subscribe returns a new read handle, seen as already caught up to the
// current value (its first Changed call waits for the next Publish).
func (b *Broadcaster[T]) Subscribe() *Handle[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Handle[T]{b: b, seenVersion: b.version}
}

// Handle is a cheap-clone reader: Borrow for the current value, Changed to
// wait for the next one. Each handle tracks its own last-seen version, so
// multiple readers never steal a wakeup from one another.
type Handle[T any] struct {
	b           *Broadcaster[T]
	seenVersion uint64
}

// Clone returns an independent handle over the same broadcaster, starting
// from the same last-seen version as the original.
func (h *Handle[T]) Clone() *Handle[T] {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	return &Handle[T]{b: h.b, seenVersion: h.seenVersion}
}

// Borrow returns the current value. The value is a stable snapshot as of
// the call; it does not change even if Publish races in concurrently.
func (h *Handle[T]) Borrow() T {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	return h.b.value
}

// Changed blocks until a value newer than the last one this handle has
// observed is published, the broadcaster closes, or ctx is done -- the
// race the viewer session watcher needs between a state change and its
// own cancellation (spec section 9, "Cancellation of per-session watcher").
func (h *Handle[T]) Changed(ctx context.Context) (T, error) {
	for {
		h.b.mu.Lock()
		if h.b.version != h.seenVersion {
			h.seenVersion = h.b.version
			v := h.b.value
			h.b.mu.Unlock()
			return v, nil
		}
		if h.b.closed {
			h.b.mu.Unlock()
			var zero T
			return zero, ErrClosed
		}
		wake := h.b.notify
		h.b.mu.Unlock()

		select {
		case <-wake:
			continue
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
