package flow

import (
	"errors"
	"fmt"
)

// ErrBusy reports that a transition for the session is already in flight.
// The late event is dropped, not queued.
var ErrBusy = errors.New("flow: transition already in flight")

// ErrNotOwner reports an event from a user that does not own the session.
var ErrNotOwner = errors.New("flow: user is not the session owner")

// GraphError reports an invalid Definition at construction time. It is never
// produced at runtime: a Definition that constructed successfully stays valid.
type GraphError struct {
	Flow   string
	Step   string
	Action string
	Reason string
}

func (e *GraphError) Error() string {
	switch {
	case e.Action != "":
		return fmt.Sprintf("flow %q: step %q action %q: %s", e.Flow, e.Step, e.Action, e.Reason)
	case e.Step != "":
		return fmt.Sprintf("flow %q: step %q: %s", e.Flow, e.Step, e.Reason)
	default:
		return fmt.Sprintf("flow %q: %s", e.Flow, e.Reason)
	}
}

// Code identifies the error class for log enrichment.
func (e *GraphError) Code() string { return "GRAPH_ERROR" }

// ResolutionError reports a dynamic resolver failure. The session stays at its
// current step; the transition was aborted, not partially applied.
type ResolutionError struct {
	Step   string
	Action string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("flow: resolving action %q at step %q: %v", e.Action, e.Step, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Code identifies the error class for log enrichment.
func (e *ResolutionError) Code() string { return "RESOLUTION_ERROR" }

// NavigationError reports a back-navigation request that cannot be satisfied.
// It is informational; the session is unaffected.
type NavigationError struct {
	Reason string
}

func (e *NavigationError) Error() string { return "flow: " + e.Reason }

// Code identifies the error class for log enrichment.
func (e *NavigationError) Code() string { return "NAVIGATION_ERROR" }

// DuplicateSessionError reports a session key collision on Create. The
// existing session is untouched.
type DuplicateSessionError struct {
	Key string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("flow: session already active for key %q", e.Key)
}

// Code identifies the error class for log enrichment.
func (e *DuplicateSessionError) Code() string { return "DUPLICATE_SESSION" }

// StaleSessionError reports an event addressed to an absent or terminated
// session. The event is ignored; the host should tell the user the flow ended.
type StaleSessionError struct {
	Key string
}

func (e *StaleSessionError) Error() string {
	return fmt.Sprintf("flow: no active session for key %q", e.Key)
}

// Code identifies the error class for log enrichment.
func (e *StaleSessionError) Code() string { return "STALE_SESSION" }
