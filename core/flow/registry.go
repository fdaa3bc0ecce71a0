package flow

import (
	"log/slog"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/m3rciful/botflow/core/logger"
)

// Options tune session lifecycle and navigation limits.
type Options struct {
	// IdleTimeout terminates sessions with no activity for this long.
	IdleTimeout time.Duration
	// SweepInterval is how often expired sessions are collected. An idle
	// session is expired no earlier than IdleTimeout and no later than
	// IdleTimeout+SweepInterval after its last activity.
	SweepInterval time.Duration
	// MaxHistoryDepth bounds back-navigation history; oldest entries drop.
	MaxHistoryDepth int
	// AllowAnyUser disables the owner-only restriction on transitions.
	AllowAnyUser bool
}

// DefaultOptions mirror the config package defaults.
func DefaultOptions() Options {
	return Options{
		IdleTimeout:     10 * time.Minute,
		SweepInterval:   30 * time.Second,
		MaxHistoryDepth: 32,
	}
}

func (o *Options) normalize() {
	def := DefaultOptions()
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = def.IdleTimeout
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = def.SweepInterval
	}
	if o.MaxHistoryDepth <= 0 {
		o.MaxHistoryDepth = def.MaxHistoryDepth
	}
}

// Registry owns the mapping from session key to live Session and is the sole
// owner of session lifetime: creation, idle expiry, and teardown. It is an
// explicit object (not ambient state) so tests can run several side by side.
type Registry struct {
	sessions  *cache.Cache
	opts      Options
	onExpired func(*Session)
}

// NewRegistry builds a Registry whose janitor sweep runs every SweepInterval.
func NewRegistry(opts Options) *Registry {
	opts.normalize()
	r := &Registry{
		sessions: cache.New(opts.IdleTimeout, opts.SweepInterval),
		opts:     opts,
	}
	r.sessions.OnEvicted(r.evicted)
	return r
}

// Opts returns the normalized options the registry runs with.
func (r *Registry) Opts() Options { return r.opts }

// SetOnExpired installs a hook invoked for every session the sweep
// terminates, so the host can update the stale UI. Set it before the first
// Create; the hook runs on the janitor goroutine.
func (r *Registry) SetOnExpired(fn func(*Session)) {
	r.onExpired = fn
}

// Create registers a new session for key rooted at def's entry step.
// One flow instance per key at a time: a second Create for an active key
// fails with DuplicateSessionError and leaves the existing session untouched.
func (r *Registry) Create(key string, def *Definition, owner int64) (*Session, error) {
	s := newSession(key, def, owner, r.opts.MaxHistoryDepth)
	if err := r.sessions.Add(key, s, r.opts.IdleTimeout); err != nil {
		return nil, &DuplicateSessionError{Key: key}
	}
	logger.Debug(logger.Background(), "flow.registry", "session.created",
		slog.String("session_key", key),
		slog.String("flow", def.Name()),
		slog.Int64("user_id", owner),
	)
	return s, nil
}

// Lookup returns the session for key if one is active.
func (r *Registry) Lookup(key string) (*Session, bool) {
	v, ok := r.sessions.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Touch slides the session's idle window after activity.
func (r *Registry) Touch(key string) {
	if v, ok := r.sessions.Get(key); ok {
		s := v.(*Session)
		s.touch()
		r.sessions.Set(key, s, r.opts.IdleTimeout)
	}
}

// Remove drops the session for key. Removing an absent key is a no-op.
// Callers terminate the session first; an active session reaching eviction
// is treated as expired.
func (r *Registry) Remove(key string) {
	r.sessions.Delete(key)
}

// Len returns the number of tracked sessions, expired entries included
// until the next sweep.
func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}

// Close terminates every remaining session with a cancelled outcome and
// clears the registry.
func (r *Registry) Close() {
	for key, item := range r.sessions.Items() {
		if s, ok := item.Object.(*Session); ok {
			s.terminate(OutcomeCancelled, nil)
		}
		r.sessions.Delete(key)
	}
}

// evicted runs for both explicit Delete and janitor expiry. Sessions that
// already carry an outcome were terminated by the dispatcher; anything still
// active here went idle past the timeout.
func (r *Registry) evicted(key string, v interface{}) {
	s, ok := v.(*Session)
	if !ok {
		return
	}
	if s.terminate(OutcomeExpired, nil) {
		logger.Info(logger.Background(), "flow.registry", "session.expired",
			slog.String("session_key", key),
			slog.String("flow", s.Definition().Name()),
			slog.Int64("user_id", s.Owner()),
		)
		if r.onExpired != nil {
			r.onExpired(s)
		}
	} else {
		logger.Debug(logger.Background(), "flow.registry", "session.removed",
			slog.String("session_key", key),
			slog.String("status", string(s.Outcome())),
		)
	}
}
