package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func chainFlow(t *testing.T, n int) *Definition {
	t.Helper()
	b := New("chain")
	for i := 0; i < n; i++ {
		id := stepID(i)
		var actions []Action
		if i+1 < n {
			actions = append(actions, Action{ID: "next", Target: Goto(stepID(i + 1))})
		} else {
			actions = append(actions, Action{ID: "done", Target: End(OutcomeCompleted)})
		}
		b.Step(id, i, actions...)
	}
	def, err := b.Build()
	require.NoError(t, err)
	return def
}

func stepID(i int) string {
	return string(rune('a' + i))
}

func TestSessionHistoryRoundTrip(t *testing.T) {
	t.Parallel()

	def := chainFlow(t, 5)
	s := newSession("k", def, 1, 0)

	// Walk forward through the chain, then back the same number of steps.
	var visited []string
	for i := 0; i < 4; i++ {
		visited = append(visited, s.Current().ID)
		next, ok := def.Step(stepID(i + 1))
		require.True(t, ok)
		require.NoError(t, s.advance(next))
	}
	require.Equal(t, 4, s.HistoryDepth())

	for i := 3; i >= 0; i-- {
		step, err := s.goBack()
		require.NoError(t, err)
		require.Equal(t, visited[i], step.ID)
	}
	require.Equal(t, def.Entry().ID, s.Current().ID)
	require.Equal(t, 0, s.HistoryDepth())
}

func TestSessionBackOnEmptyHistory(t *testing.T) {
	t.Parallel()

	def := chainFlow(t, 2)
	s := newSession("k", def, 1, 0)

	_, err := s.goBack()
	var ne *NavigationError
	require.ErrorAs(t, err, &ne)
	// The failed back is a no-op.
	require.Equal(t, def.Entry().ID, s.Current().ID)
	require.Equal(t, StateActive, s.State())
}

func TestSessionHistoryBounded(t *testing.T) {
	t.Parallel()

	def := chainFlow(t, 6)
	s := newSession("k", def, 1, 2)

	for i := 0; i < 5; i++ {
		next, _ := def.Step(stepID(i + 1))
		require.NoError(t, s.advance(next))
	}
	// Only the two most recent entries survive.
	require.Equal(t, 2, s.HistoryDepth())

	step, err := s.goBack()
	require.NoError(t, err)
	require.Equal(t, stepID(4), step.ID)
	step, err = s.goBack()
	require.NoError(t, err)
	require.Equal(t, stepID(3), step.ID)

	_, err = s.goBack()
	var ne *NavigationError
	require.ErrorAs(t, err, &ne)
}

func TestSessionTerminalAbsorbing(t *testing.T) {
	t.Parallel()

	def := chainFlow(t, 3)
	s := newSession("k", def, 1, 0)

	require.True(t, s.terminate(OutcomeCompleted, "bye"))
	require.Equal(t, StateTerminated, s.State())
	require.Equal(t, OutcomeCompleted, s.Outcome())
	require.Equal(t, "bye", s.Notice())

	// A later terminate (e.g. the sweep racing a cancel) must not win.
	require.False(t, s.terminate(OutcomeExpired, nil))
	require.Equal(t, OutcomeCompleted, s.Outcome())

	next, _ := def.Step("b")
	err := s.advance(next)
	var se *StaleSessionError
	require.ErrorAs(t, err, &se)

	_, err = s.goBack()
	require.ErrorAs(t, err, &se)
}

func TestSessionOwnership(t *testing.T) {
	t.Parallel()

	def := chainFlow(t, 2)
	s := newSession("k", def, 42, 0)

	require.True(t, s.allows(42, false))
	require.False(t, s.allows(7, false))
	require.True(t, s.allows(7, true))
}

func TestSessionInFlightFlag(t *testing.T) {
	t.Parallel()

	def := chainFlow(t, 2)
	s := newSession("k", def, 1, 0)

	require.True(t, s.tryAcquire())
	require.False(t, s.tryAcquire())
	s.release()
	require.True(t, s.tryAcquire())
	s.release()
}
