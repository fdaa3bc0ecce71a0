package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func twoStepFlow(t *testing.T) *Definition {
	t.Helper()
	def, err := NewDefinition("two-step", "s0",
		Step{ID: "s0", Payload: "first", Actions: []Action{
			{ID: "next", Label: "Next", Target: Goto("s1")},
		}},
		Step{ID: "s1", Payload: "second", Actions: []Action{
			{ID: "done", Label: "Done", Target: End(OutcomeCompleted)},
		}},
	)
	require.NoError(t, err)
	return def
}

func TestNewDefinitionValid(t *testing.T) {
	t.Parallel()

	def := twoStepFlow(t)
	require.Equal(t, "two-step", def.Name())
	require.Equal(t, "s0", def.Entry().ID)
	require.Equal(t, 2, def.Len())

	s1, ok := def.Step("s1")
	require.True(t, ok)
	a, ok := s1.Action("done")
	require.True(t, ok)
	require.True(t, a.Target.IsTerminal())
}

func TestNewDefinitionDanglingEdge(t *testing.T) {
	t.Parallel()

	_, err := NewDefinition("broken", "s0",
		Step{ID: "s0", Actions: []Action{
			{ID: "next", Target: Goto("missing")},
		}},
	)
	require.Error(t, err)
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, "s0", ge.Step)
	require.Equal(t, "next", ge.Action)
}

func TestNewDefinitionUndeclaredEntry(t *testing.T) {
	t.Parallel()

	_, err := NewDefinition("broken", "nope",
		Step{ID: "s0"},
	)
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
}

func TestNewDefinitionDuplicateStep(t *testing.T) {
	t.Parallel()

	_, err := NewDefinition("broken", "s0",
		Step{ID: "s0"},
		Step{ID: "s0"},
	)
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
}

func TestNewDefinitionDuplicateAction(t *testing.T) {
	t.Parallel()

	_, err := NewDefinition("broken", "s0",
		Step{ID: "s0", Actions: []Action{
			{ID: "a", Target: End(OutcomeCompleted)},
			{ID: "a", Target: End(OutcomeCancelled)},
		}},
	)
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
}

func TestNewDefinitionReservedActionID(t *testing.T) {
	t.Parallel()

	for _, reserved := range []string{ActionBack, ActionCancel} {
		_, err := NewDefinition("broken", "s0",
			Step{ID: "s0", Actions: []Action{
				{ID: reserved, Target: End(OutcomeCompleted)},
			}},
		)
		var ge *GraphError
		require.ErrorAs(t, err, &ge, "action id %q must be rejected", reserved)
	}
}

func TestNewDefinitionNilResolver(t *testing.T) {
	t.Parallel()

	_, err := NewDefinition("broken", "s0",
		Step{ID: "s0", Actions: []Action{
			{ID: "pick", Target: Resolve(nil)},
		}},
	)
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
}

func TestNewDefinitionCyclesAllowed(t *testing.T) {
	t.Parallel()

	_, err := NewDefinition("cyclic", "a",
		Step{ID: "a", Actions: []Action{{ID: "fwd", Target: Goto("b")}}},
		Step{ID: "b", Actions: []Action{{ID: "again", Target: Goto("a")}}},
	)
	require.NoError(t, err)
}

func TestBuilder(t *testing.T) {
	t.Parallel()

	def, err := New("built").
		Step("root", "payload",
			Action{ID: "leaf", Target: Goto("leaf")},
		).
		Step("leaf", "payload",
			Action{ID: "done", Target: End(OutcomeCompleted)},
		).
		Build()
	require.NoError(t, err)
	require.Equal(t, "root", def.Entry().ID)

	def2, err := New("entry-override").
		Step("a", nil, Action{ID: "b", Target: Goto("b")}).
		Step("b", nil).
		EntryAt("b").
		Build()
	require.NoError(t, err)
	require.Equal(t, "b", def2.Entry().ID)
}

func TestBuilderDanglingEdgeFails(t *testing.T) {
	t.Parallel()

	_, err := New("broken").
		Step("a", nil, Action{ID: "go", Target: Goto("ghost")}).
		Build()
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
}

func TestDynamicTargetValidatedLazily(t *testing.T) {
	t.Parallel()

	// A dynamic edge may reference steps unknown at build time; the graph
	// check only requires the resolver to exist.
	def, err := New("dyn").
		Step("a", nil, Action{ID: "pick", Target: Resolve(
			func(ctx context.Context, s *Step, ev Event) (Target, error) {
				return End(OutcomeCompleted), nil
			})}).
		Build()
	require.NoError(t, err)
	require.Equal(t, 1, def.Len())
}
