// Package registry implements the process-wide subscription registry: the
// map from an upstream address to its snapshot handle, with at-most-one
// live subscription per key (spec section 4.1).
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidpdrsn/console-web/internal/broadcast"
	"github.com/davidpdrsn/console-web/internal/consolestate"
	"github.com/davidpdrsn/console-web/internal/metrics"
	"github.com/davidpdrsn/console-web/internal/reducer"
	"github.com/davidpdrsn/console-web/internal/upstream"
	"github.com/sirupsen/logrus"
)

// ConnectError wraps any failure that occurs while establishing a new
// subscription: dialing or opening the watch stream. Target parsing
// happens before Subscribe and is not wrapped here.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("registry: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// entry is either pending (a dial is in flight; waiters block on ready) or
// resolved (handle is set, ready is already closed).
type entry struct {
	ready  chan struct{}
	handle *broadcast.Handle[*consolestate.ConsoleState]
	err    error
}

// Registry is the shared address -> subscription map described by spec
// section 4.1. The zero value is not usable; use New.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Subscribe returns the handle for addr's current subscription, opening a
// new upstream connection and spawning a reducer if none exists yet.
//
// Lock discipline follows the pending-entry-sentinel strategy spec section
// 9 calls out: the registry lock is only ever held for map bookkeeping,
// never across the dial or RPC-open (both of which can be slow or block).
// A concurrent Subscribe for the same key waits on the pending entry's
// ready channel instead of racing its own dial.
func (r *Registry) Subscribe(ctx context.Context, addr string, target upstream.Target) (*broadcast.Handle[*consolestate.ConsoleState], error) {
	r.mu.Lock()
	if e, ok := r.entries[addr]; ok {
		r.mu.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		return e.handle.Clone(), nil
	}

	e := &entry{ready: make(chan struct{})}
	r.entries[addr] = e
	r.mu.Unlock()

	// The subscription outlives the HTTP request that triggered it, so
	// the dial and the reducer's lifetime run on an independent
	// background context rather than the caller's ctx.
	handle, err := r.connect(context.Background(), addr, target)

	r.mu.Lock()
	if err != nil {
		e.err = &ConnectError{Addr: addr, Err: err}
		delete(r.entries, addr)
	} else {
		e.handle = handle
	}
	r.mu.Unlock()
	close(e.ready)

	if e.err != nil {
		return nil, e.err
	}
	metrics.ActiveSubscriptions.Inc()
	return e.handle.Clone(), nil
}

func (r *Registry) connect(ctx context.Context, addr string, target upstream.Target) (*broadcast.Handle[*consolestate.ConsoleState], error) {
	conn, err := upstream.Dial(ctx, target)
	if err != nil {
		return nil, err
	}

	b, handle := broadcast.New(consolestate.New())
	red := reducer.New(addr, b)

	go func() {
		defer conn.Close()
		defer b.Close()
		defer metrics.ActiveSubscriptions.Dec()
		defer r.remove(addr)

		err := red.Run(context.Background(), conn.Stream)
		logrus.WithField("addr", addr).WithError(err).Info("reducer exited")
	}()

	return handle, nil
}

// remove deletes addr's entry so the next Subscribe reconnects (spec
// section 4.1, "Cleanup").
func (r *Registry) remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, addr)
}

// Len reports the number of live subscriptions. Exposed for tests and
// diagnostics, not part of the documented interface.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
