package listing

import (
	"context"
	"sync"
)

// Sequencer orders the requests of one client view. Starting a request for
// a view cancels the view's previous request, and only the latest request of
// a view may deliver its response.
type Sequencer struct {
	mu    sync.Mutex
	next  uint64
	views map[string]*ticketState
}

type ticketState struct {
	seq    uint64
	cancel context.CancelFunc
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{views: make(map[string]*ticketState)}
}

// Ticket is one sequenced request.
type Ticket struct {
	s      *Sequencer
	view   string
	seq    uint64
	cancel context.CancelFunc
}

// Begin registers a new request for view and returns the context the request
// must run under. An empty view is not sequenced: the returned ticket is
// always current.
func (s *Sequencer) Begin(ctx context.Context, view string) (context.Context, *Ticket) {
	ctx, cancel := context.WithCancel(ctx)
	if view == "" {
		return ctx, &Ticket{cancel: cancel}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	if prev, ok := s.views[view]; ok {
		prev.cancel()
	}
	s.views[view] = &ticketState{seq: s.next, cancel: cancel}
	return ctx, &Ticket{s: s, view: view, seq: s.next, cancel: cancel}
}

// Current reports whether t is still the latest request of its view.
func (t *Ticket) Current() bool {
	if t.s == nil {
		return true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	st, ok := t.s.views[t.view]
	return ok && st.seq == t.seq
}

// Done releases the ticket. It must be called once the response has been
// decided.
func (t *Ticket) Done() {
	t.cancel()
	if t.s == nil {
		return
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if st, ok := t.s.views[t.view]; ok && st.seq == t.seq {
		delete(t.s.views, t.view)
	}
}

// View returns the view key the ticket was issued for.
func (t *Ticket) View() string {
	return t.view
}

// Len returns the number of views with a request in flight.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}
