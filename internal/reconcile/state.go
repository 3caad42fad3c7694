package reconcile

import (
	"sync"
	"time"
)

// Phase is the lifecycle of default-template seeding for this process.
type Phase int

const (
	NotStarted Phase = iota
	Completed
)

func (p Phase) String() string {
	switch p {
	case Completed:
		return "completed"
	default:
		return "not_started"
	}
}

// State records whether a full reconciliation pass has finished. It is owned
// by the process bootstrap and handed to the Reconciler; a failed or skipped
// pass leaves it NotStarted so the next EnsureSeeded retries.
type State struct {
	mu    sync.RWMutex
	phase Phase
	at    time.Time
}

// NewState returns a State in the NotStarted phase.
func NewState() *State {
	return &State{}
}

// Phase returns the current phase and, when Completed, the completion time.
func (s *State) Phase() (Phase, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase, s.at
}

// Done reports whether a pass has completed.
func (s *State) Done() bool {
	p, _ := s.Phase()
	return p == Completed
}

// MarkCompleted moves the state to Completed at the given time.
func (s *State) MarkCompleted(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Completed
	s.at = at
}

// Reset returns the state to NotStarted.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = NotStarted
	s.at = time.Time{}
}
