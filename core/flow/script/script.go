// Package script builds flow resolvers from JavaScript expressions, so flow
// branching can be declared in config or loaded at runtime instead of being
// compiled in.
package script

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/m3rciful/botflow/core/flow"
)

// Resolver compiles code once and returns a resolver that evaluates it per
// event. The script runs as the body of a function, so plain `return` works:
//
//	return event.data === "yes" ? "confirm" : "decline";
//
// Two globals are bound before each run:
//
//	event = {action, user_id, data}
//	step  = {id, payload}
//
// The returned value selects the target:
//
//	"step-id"                           go to that step
//	{stay: true}                        re-render the current step
//	{end: "completed", notice: ...}     terminate with the outcome
//
// Each evaluation gets a fresh VM; scripts cannot leak state across events.
func Resolver(code string) (flow.ResolverFunc, error) {
	prog, err := goja.Compile("resolver.js", "(function() {\n"+code+"\n})()", false)
	if err != nil {
		return nil, fmt.Errorf("script: compile: %w", err)
	}

	return func(ctx context.Context, current *flow.Step, ev flow.Event) (flow.Target, error) {
		vm := goja.New()
		if err := vm.Set("event", map[string]any{
			"action":  ev.Action,
			"user_id": ev.UserID,
			"data":    ev.Data,
		}); err != nil {
			return flow.Target{}, fmt.Errorf("script: bind event: %w", err)
		}
		if err := vm.Set("step", map[string]any{
			"id":      current.ID,
			"payload": current.Payload,
		}); err != nil {
			return flow.Target{}, fmt.Errorf("script: bind step: %w", err)
		}

		v, err := vm.RunProgram(prog)
		if err != nil {
			return flow.Target{}, fmt.Errorf("script: run: %w", err)
		}
		return toTarget(v.Export())
	}, nil
}

// MustResolver is like Resolver but panics on compile errors. Use it for
// scripts embedded in flow declarations, alongside MustDefinition.
func MustResolver(code string) flow.ResolverFunc {
	fn, err := Resolver(code)
	if err != nil {
		panic(err)
	}
	return fn
}

// Target wraps MustResolver into a dynamic flow target, for inline use in
// step declarations.
func Target(code string) flow.Target {
	return flow.Resolve(MustResolver(code))
}

func toTarget(out any) (flow.Target, error) {
	switch v := out.(type) {
	case string:
		if v == "" {
			return flow.Target{}, fmt.Errorf("script: returned an empty step id")
		}
		return flow.Goto(v), nil

	case map[string]any:
		if stay, ok := v["stay"].(bool); ok && stay {
			return flow.Stay(), nil
		}
		if end, ok := v["end"].(string); ok {
			outcome, err := parseOutcome(end)
			if err != nil {
				return flow.Target{}, err
			}
			return flow.EndWith(outcome, v["notice"]), nil
		}
		return flow.Target{}, fmt.Errorf("script: object result needs a stay or end key")

	default:
		return flow.Target{}, fmt.Errorf("script: unsupported result type %T", out)
	}
}

func parseOutcome(s string) (flow.Outcome, error) {
	switch flow.Outcome(s) {
	case flow.OutcomeCompleted, flow.OutcomeCancelled:
		return flow.Outcome(s), nil
	default:
		return "", fmt.Errorf("script: unknown outcome %q", s)
	}
}
