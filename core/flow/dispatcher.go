package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/botflow/core/logger"
)

// Kind classifies a render instruction.
type Kind int

const (
	// KindRender instructs the host to render Step's payload.
	KindRender Kind = iota
	// KindFinish instructs the host to render a terminal notice.
	KindFinish
	// KindBusy acknowledges an event dropped because a transition for the
	// same session was in flight.
	KindBusy
	// KindStale acknowledges an event for an absent or terminated session.
	KindStale
	// KindRejected acknowledges a no-op: stale button, non-owner user, or
	// back with empty history. The session is unchanged.
	KindRejected
	// KindFailed reports a dynamic resolver failure. The session stays at
	// its last-known-good step; the host should show a transient error.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindFinish:
		return "finish"
	case KindBusy:
		return "busy"
	case KindStale:
		return "stale"
	case KindRejected:
		return "rejected"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Instruction is what the host turns into a UI update. Whether the no-op
// kinds (Busy, Stale, Rejected) surface to the user or are silently ignored
// is the host's policy; Err carries the typed detail either way.
type Instruction struct {
	Kind    Kind
	Step    *Step
	Outcome Outcome
	Notice  any
	Err     error
}

func render(step *Step) Instruction {
	return Instruction{Kind: KindRender, Step: step}
}

func finish(outcome Outcome, notice any) Instruction {
	return Instruction{Kind: KindFinish, Outcome: outcome, Notice: notice}
}

// Dispatcher turns inbound events into applied transitions. For a given
// session no two transitions ever interleave: the session's in-flight flag is
// held across resolver evaluation, and a concurrent event loses with Busy
// instead of waiting.
type Dispatcher struct {
	reg *Registry
}

// NewDispatcher binds a dispatcher to its session registry.
func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Registry returns the registry this dispatcher drives.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Dispatch handles one event and returns the render instruction for it.
// Errors local to the transition never corrupt the session: every non-Render
// return leaves the session at its last-known-good step.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Instruction {
	start := time.Now()
	in := d.dispatch(ctx, ev)
	d.logDispatch(ctx, ev, in, time.Since(start))
	return in
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) Instruction {
	s, ok := d.reg.Lookup(ev.SessionKey)
	if !ok {
		return Instruction{Kind: KindStale, Err: &StaleSessionError{Key: ev.SessionKey}}
	}

	if !s.tryAcquire() {
		return Instruction{Kind: KindBusy, Err: ErrBusy}
	}
	defer s.release()

	// The flag does not guard against the session terminating while we
	// held it (sweep expiry, concurrent cancel): state checks below and in
	// advance keep a late result discarded rather than applied.
	if s.State() != StateActive {
		return Instruction{Kind: KindStale, Err: &StaleSessionError{Key: ev.SessionKey}}
	}

	if !s.allows(ev.UserID, d.reg.Opts().AllowAnyUser) {
		return Instruction{Kind: KindRejected, Err: ErrNotOwner}
	}

	switch ev.Action {
	case ActionBack:
		step, err := s.goBack()
		if err != nil {
			if _, stale := err.(*StaleSessionError); stale {
				return Instruction{Kind: KindStale, Err: err}
			}
			return Instruction{Kind: KindRejected, Err: err}
		}
		d.reg.Touch(s.Key())
		return render(step)

	case ActionCancel:
		s.terminate(OutcomeCancelled, nil)
		d.reg.Remove(s.Key())
		return finish(OutcomeCancelled, nil)
	}

	current := s.Current()
	action, ok := current.Action(ev.Action)
	if !ok {
		// Stale button from a previous render of this session.
		return Instruction{Kind: KindRejected,
			Err: &NavigationError{Reason: "action " + ev.Action + " is not available at step " + current.ID}}
	}

	target := action.Target
	if target.kind == targetDynamic {
		resolved, err := target.resolve(ctx, current, ev)
		if err != nil {
			return Instruction{Kind: KindFailed,
				Err: &ResolutionError{Step: current.ID, Action: ev.Action, Err: err}}
		}
		if resolved.kind == targetDynamic {
			return Instruction{Kind: KindFailed,
				Err: &ResolutionError{Step: current.ID, Action: ev.Action,
					Err: &NavigationError{Reason: "resolver returned another dynamic target"}}}
		}
		target = resolved
	}

	switch target.kind {
	case targetStay:
		s.touch()
		d.reg.Touch(s.Key())
		return render(current)

	case targetEnd:
		s.terminate(target.outcome, target.notice)
		d.reg.Remove(s.Key())
		return finish(target.outcome, target.notice)

	default: // targetNext
		next, ok := s.Definition().Step(target.step)
		if !ok {
			// Only reachable via a dynamic target; static edges were
			// validated at construction.
			return Instruction{Kind: KindFailed,
				Err: &ResolutionError{Step: current.ID, Action: ev.Action,
					Err: &NavigationError{Reason: "resolved target " + target.step + " is not declared"}}}
		}
		if err := s.advance(next); err != nil {
			return Instruction{Kind: KindStale, Err: err}
		}
		d.reg.Touch(s.Key())
		return render(next)
	}
}

func (d *Dispatcher) logDispatch(ctx context.Context, ev Event, in Instruction, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("status", in.Kind.String()),
		slog.String("session_key", ev.SessionKey),
		slog.String("action", ev.Action),
		slog.Int64("user_id", ev.UserID),
		slog.Int64("duration_ms", took.Milliseconds()),
	}
	if in.Step != nil {
		attrs = append(attrs, slog.String("step", in.Step.ID))
	}
	if in.Outcome != "" {
		attrs = append(attrs, slog.String("outcome", string(in.Outcome)))
	}
	level := slog.LevelDebug
	if in.Err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(in.Err.Error(), 256)))
		if in.Kind == KindFailed {
			level = slog.LevelWarn
		}
	}
	logger.Event(ctx, "flow.dispatch", level, "event.handled", attrs...)
}
