package flow

import (
	"sync"
	"sync/atomic"
	"time"
)

// State identifies the lifecycle phase of a session.
type State string

const (
	// StateActive means the session has a current step and accepts events.
	StateActive State = "active"
	// StateTerminated means an outcome is recorded; terminal is absorbing.
	StateTerminated State = "terminated"
)

// Session is the live state of one user's traversal of a flow: the current
// step, a bounded back-navigation history, the owning user, and an in-flight
// flag that admits at most one transition at a time. All mutation goes
// through the Dispatcher and Registry; hosts only read.
type Session struct {
	key   string
	def   *Definition
	owner int64

	// busy admits at most one in-flight transition without blocking; a
	// loser is answered Busy instead of being queued.
	busy atomic.Bool

	mu           sync.Mutex
	state        State
	current      *Step
	history      []string
	maxHistory   int
	outcome      Outcome
	notice       any
	createdAt    time.Time
	lastActivity time.Time
}

func newSession(key string, def *Definition, owner int64, maxHistory int) *Session {
	now := time.Now()
	return &Session{
		key:          key,
		def:          def,
		owner:        owner,
		state:        StateActive,
		current:      def.Entry(),
		maxHistory:   maxHistory,
		createdAt:    now,
		lastActivity: now,
	}
}

// Key returns the session key.
func (s *Session) Key() string { return s.key }

// Definition returns the flow definition this session traverses.
func (s *Session) Definition() *Definition { return s.def }

// Owner returns the owning user id.
func (s *Session) Owner() int64 { return s.owner }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the step the session is at.
func (s *Session) Current() *Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Outcome returns the terminal outcome, valid once the session terminated.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Notice returns the optional payload attached to the terminal outcome.
func (s *Session) Notice() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// HistoryDepth returns the number of steps reachable via back-navigation.
func (s *Session) HistoryDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// LastActivity returns the time of the last applied transition.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// tryAcquire claims the in-flight flag. Callers must release on every path.
func (s *Session) tryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) release() {
	s.busy.Store(false)
}

// advance moves the session to next, pushing the old step onto history.
// When the history bound is exceeded the oldest entry is dropped: the session
// keeps working, but back-navigation cannot reach beyond the retained depth.
func (s *Session) advance(next *Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return &StaleSessionError{Key: s.key}
	}
	s.history = append(s.history, s.current.ID)
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	s.current = next
	s.lastActivity = time.Now()
	return nil
}

// goBack pops history and returns the step moved to.
func (s *Session) goBack() (*Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil, &StaleSessionError{Key: s.key}
	}
	if len(s.history) == 0 {
		return nil, &NavigationError{Reason: "history is empty"}
	}
	id := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	// History only ever records ids of this definition's steps.
	step, ok := s.def.Step(id)
	if !ok {
		return nil, &NavigationError{Reason: "history references unknown step " + id}
	}
	s.current = step
	s.lastActivity = time.Now()
	return step, nil
}

// touch refreshes the activity clock without moving the session.
func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// terminate records the outcome once. It reports whether this call performed
// the termination; later calls are no-ops, keeping terminal absorbing.
func (s *Session) terminate(outcome Outcome, notice any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return false
	}
	s.state = StateTerminated
	s.outcome = outcome
	s.notice = notice
	return true
}

// allows reports whether the user may drive this session.
func (s *Session) allows(userID int64, anyUser bool) bool {
	return anyUser || userID == s.owner
}
