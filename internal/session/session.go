// Package session implements the viewer session adapter: it binds one
// browser page view to a snapshot handle and turns handle.Changed calls
// into a stream of render events, grounded on the reconnect/event-loop
// shape of a production streaming client's watcher goroutine (spec
// section 4.4).
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/davidpdrsn/console-web/internal/broadcast"
	"github.com/davidpdrsn/console-web/internal/consolestate"
	"github.com/davidpdrsn/console-web/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventKind distinguishes the three events a session's watcher can emit.
type EventKind int

const (
	// EventUpdate carries a new snapshot to render.
	EventUpdate EventKind = iota
	// EventDisconnected signals the upstream subscription is gone.
	EventDisconnected
	// EventError is terminal: the routing layer must drop the session
	// and force a fresh subscribe on the viewer's next navigation.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventUpdate:
		return "Update"
	case EventDisconnected:
		return "Disconnected"
	case EventError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Event is one item in a session's render-event stream.
type Event struct {
	Kind     EventKind
	Snapshot *consolestate.ConsoleState
	Err      error
}

// Paused and row-selection state live here rather than in the HTML
// rendering layer, which is specified only at its interface (spec section
// 2, "Out of scope").
type UIState struct {
	mu       sync.Mutex
	paused   bool
	selected *uint64
}

func (s *UIState) SetPaused(p bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = p
}

func (s *UIState) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *UIState) SelectRow(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &id
}

func (s *UIState) SelectedRow() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return 0, false
	}
	return *s.selected, true
}

// Session is one browser-to-server live-render channel for a single page
// view, bound to one address's snapshot handle (spec glossary, "Viewer
// Session").
type Session struct {
	ID     string
	Addr   string
	UI     *UIState
	events chan Event

	cancel context.CancelFunc
}

// Construct creates a session view bound to handle and immediately spawns
// its watcher goroutine. Calling Close cancels the watcher's context and
// tears the watcher down, racing handle.Changed against the
// cancellation exactly as spec section 9's "Cancellation of per-session
// watcher" describes.
func Construct(addr string, handle *broadcast.Handle[*consolestate.ConsoleState]) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ID:     uuid.NewString(),
		Addr:   addr,
		UI:     &UIState{},
		events: make(chan Event, 1),
		cancel: cancel,
	}

	metrics.ViewerSessions.Inc()
	go s.watch(ctx, handle)

	return s
}

// Events returns the channel the routing layer's server-push multiplexer
// reads from to forward render ticks to the browser.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Close cancels the watcher and releases the session's metrics slot. Safe
// to call more than once.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) watch(ctx context.Context, handle *broadcast.Handle[*consolestate.ConsoleState]) {
	defer metrics.ViewerSessions.Dec()
	defer close(s.events)

	log := logrus.WithFields(logrus.Fields{"session": s.ID, "addr": s.Addr})

	for {
		snapshot, err := handle.Changed(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Debug("session watcher cancelled")
				return
			}

			log.WithError(err).Debug("upstream subscription gone, disconnecting session")
			s.emit(ctx, Event{Kind: EventDisconnected})
			s.emit(ctx, Event{Kind: EventError, Err: err})
			return
		}

		s.emit(ctx, Event{Kind: EventUpdate, Snapshot: snapshot})
	}
}

// emit sends ev, dropping it if the session is torn down before the
// routing layer reads it -- event delivery is best-effort, the same
// lossy-by-design contract the broadcaster itself makes upstream.
func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
