package flow

import "context"

// Outcome tags the end state of a finished flow.
type Outcome string

const (
	// OutcomeCompleted marks a flow that ran to a declared terminal action.
	OutcomeCompleted Outcome = "completed"
	// OutcomeCancelled marks a flow ended by an explicit cancel.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeExpired marks a flow terminated by the idle sweep.
	OutcomeExpired Outcome = "expired"
)

// Reserved action identifiers handled by the Dispatcher itself. They never
// appear in a step's declared action set.
const (
	ActionBack   = "back"
	ActionCancel = "cancel"
)

// Event is one inbound interaction: which action was triggered on which
// session, by whom, with optional host-supplied payload for dynamic
// resolvers. Events are transient; one event drives at most one transition.
type Event struct {
	SessionKey string
	Action     string
	UserID     int64
	Data       any
}

// ResolverFunc computes a transition target at event time. It must be free of
// session mutation; the dispatcher applies (or discards) the returned target.
type ResolverFunc func(ctx context.Context, current *Step, ev Event) (Target, error)

type targetKind int

const (
	targetNext targetKind = iota
	targetEnd
	targetStay
	targetDynamic
)

// Target is the destination of an action: a declared next step, a terminal
// outcome, the current step re-rendered, or a resolver evaluated lazily.
type Target struct {
	kind    targetKind
	step    string
	outcome Outcome
	notice  any
	resolve ResolverFunc
}

// Goto targets a declared step of the same definition.
func Goto(stepID string) Target {
	return Target{kind: targetNext, step: stepID}
}

// End terminates the flow with the given outcome.
func End(outcome Outcome) Target {
	return Target{kind: targetEnd, outcome: outcome}
}

// EndWith terminates the flow with the given outcome and a notice payload
// for the host to render as the closing message.
func EndWith(outcome Outcome, notice any) Target {
	return Target{kind: targetEnd, outcome: outcome, notice: notice}
}

// Stay re-renders the current step without touching history. Useful for
// steps whose payload depends on event data, such as page turns.
func Stay() Target {
	return Target{kind: targetStay}
}

// Resolve defers the target to fn, evaluated against the live event.
func Resolve(fn ResolverFunc) Target {
	return Target{kind: targetDynamic, resolve: fn}
}

// IsTerminal reports whether the target ends the flow.
func (t Target) IsTerminal() bool { return t.kind == targetEnd }

// Action is a named outgoing edge of a step.
type Action struct {
	ID     string
	Label  string
	Target Target
}

// Step is one point in a flow: an opaque renderable payload plus the ordered
// set of outgoing actions. Steps are immutable once the Definition holding
// them is constructed.
type Step struct {
	ID      string
	Payload any
	Actions []Action
}

// Action returns the declared action with the given id.
func (s *Step) Action(id string) (Action, bool) {
	for _, a := range s.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}
