package search

import "sync"

// Ticket identifies one Begin/Finish pair on a Tracker.
type Ticket uint64

// Tracker holds the current search State for one session.
//
// Resolutions are neither coalesced nor cancelled: by default every Finish
// is applied, so whichever resolution completes last wins even if it was
// started first. With DropStale set, a Finish for a ticket older than the
// latest Begin is discarded instead.
type Tracker struct {
	DropStale bool

	mu       sync.Mutex
	state    State
	issued   Ticket
	onChange func(State)
}

func NewTracker(onChange func(State)) *Tracker {
	return &Tracker{state: Idle(), onChange: onChange}
}

// Begin marks a resolution as in flight and returns its ticket.
func (t *Tracker) Begin() Ticket {
	t.mu.Lock()
	t.issued++
	ticket := t.issued
	t.state = Loading()
	snapshot := t.state.clone()
	t.mu.Unlock()

	t.notify(snapshot)
	return ticket
}

// Finish applies the outcome of the resolution identified by ticket and
// reports whether it was applied. The state replaces the previous one whole.
func (t *Tracker) Finish(ticket Ticket, state State) bool {
	t.mu.Lock()
	if t.DropStale && ticket != t.issued {
		t.mu.Unlock()
		return false
	}
	t.state = state.clone()
	snapshot := t.state.clone()
	t.mu.Unlock()

	t.notify(snapshot)
	return true
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

func (t *Tracker) notify(s State) {
	if t.onChange != nil {
		t.onChange(s)
	}
}
