package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	reg := NewRegistry(opts)
	t.Cleanup(reg.Close)
	return reg
}

func dispatcherFixture(t *testing.T, opts Options) (*Dispatcher, *Session) {
	t.Helper()
	def := twoStepFlow(t)
	reg := testRegistry(t, opts)
	s, err := reg.Create("msg-1", def, 10)
	require.NoError(t, err)
	return NewDispatcher(reg), s
}

// next advances to s1, back returns to s0.
func TestDispatchAdvanceAndBack(t *testing.T) {
	t.Parallel()

	d, s := dispatcherFixture(t, Options{})
	ctx := context.Background()

	in := d.Dispatch(ctx, Event{SessionKey: "msg-1", Action: "next", UserID: 10})
	require.Equal(t, KindRender, in.Kind)
	require.Equal(t, "s1", in.Step.ID)
	require.Equal(t, "s1", s.Current().ID)

	in = d.Dispatch(ctx, Event{SessionKey: "msg-1", Action: ActionBack, UserID: 10})
	require.Equal(t, KindRender, in.Kind)
	require.Equal(t, "s0", in.Step.ID)
	require.Equal(t, "s0", s.Current().ID)
}

// Two rapid events: exactly one transition applies, the loser gets Busy.
func TestDispatchConcurrentEventsOneWins(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Options{})
	entered := make(chan struct{})
	proceed := make(chan struct{})

	def, err := New("slow").
		Step("s0", nil, Action{ID: "next", Target: Resolve(
			func(ctx context.Context, s *Step, ev Event) (Target, error) {
				close(entered)
				<-proceed
				return Goto("s1"), nil
			})}).
		Step("s1", nil).
		Build()
	require.NoError(t, err)

	s, err := reg.Create("msg-1", def, 10)
	require.NoError(t, err)
	d := NewDispatcher(reg)

	first := make(chan Instruction, 1)
	go func() {
		first <- d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "next", UserID: 10})
	}()

	<-entered // resolver in flight, lock held
	second := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "next", UserID: 10})
	require.Equal(t, KindBusy, second.Kind)
	require.ErrorIs(t, second.Err, ErrBusy)
	require.Equal(t, "s0", s.Current().ID, "losing event must not move the session")

	close(proceed)
	in := <-first
	require.Equal(t, KindRender, in.Kind)
	require.Equal(t, "s1", in.Step.ID)
	require.Equal(t, "s1", s.Current().ID)
}

// Non-owner events are rejected without touching the session.
func TestDispatchNonOwnerRejected(t *testing.T) {
	t.Parallel()

	d, s := dispatcherFixture(t, Options{})

	in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "next", UserID: 99})
	require.Equal(t, KindRejected, in.Kind)
	require.ErrorIs(t, in.Err, ErrNotOwner)
	require.Equal(t, "s0", s.Current().ID)
	require.Equal(t, 0, s.HistoryDepth())
}

func TestDispatchAnyUserAllowed(t *testing.T) {
	t.Parallel()

	d, s := dispatcherFixture(t, Options{AllowAnyUser: true})

	in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "next", UserID: 99})
	require.Equal(t, KindRender, in.Kind)
	require.Equal(t, "s1", s.Current().ID)
}

// Resolver failure leaves the session at its current step.
func TestDispatchResolverFailure(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Options{})
	boom := errors.New("external validation failed")
	def, err := New("failing").
		Step("s0", nil, Action{ID: "check", Target: Resolve(
			func(ctx context.Context, s *Step, ev Event) (Target, error) {
				return Target{}, boom
			})}).
		Build()
	require.NoError(t, err)

	s, err := reg.Create("msg-1", def, 10)
	require.NoError(t, err)
	d := NewDispatcher(reg)

	in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "check", UserID: 10})
	require.Equal(t, KindFailed, in.Kind)
	var re *ResolutionError
	require.ErrorAs(t, in.Err, &re)
	require.ErrorIs(t, in.Err, boom)
	require.Equal(t, "s0", s.Current().ID)
	require.Equal(t, StateActive, s.State())

	// The session still works after the failure.
	in = d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "check", UserID: 10})
	require.Equal(t, KindFailed, in.Kind)
}

func TestDispatchStaleButtonRejected(t *testing.T) {
	t.Parallel()

	d, s := dispatcherFixture(t, Options{})

	in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "done", UserID: 10})
	require.Equal(t, KindRejected, in.Kind, "action of a different step must be a no-op")
	require.Equal(t, "s0", s.Current().ID)
}

func TestDispatchUnknownSession(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Options{})
	d := NewDispatcher(reg)

	in := d.Dispatch(context.Background(), Event{SessionKey: "ghost", Action: "next", UserID: 10})
	require.Equal(t, KindStale, in.Kind)
	var se *StaleSessionError
	require.ErrorAs(t, in.Err, &se)
	require.Equal(t, 0, reg.Len(), "stale events must not create state")
}

func TestDispatchTerminalAction(t *testing.T) {
	t.Parallel()

	d, s := dispatcherFixture(t, Options{})
	ctx := context.Background()

	d.Dispatch(ctx, Event{SessionKey: "msg-1", Action: "next", UserID: 10})
	in := d.Dispatch(ctx, Event{SessionKey: "msg-1", Action: "done", UserID: 10})
	require.Equal(t, KindFinish, in.Kind)
	require.Equal(t, OutcomeCompleted, in.Outcome)
	require.Equal(t, StateTerminated, s.State())

	// Terminal is absorbing; the session is gone from the registry.
	in = d.Dispatch(ctx, Event{SessionKey: "msg-1", Action: "done", UserID: 10})
	require.Equal(t, KindStale, in.Kind)
}

func TestDispatchCancel(t *testing.T) {
	t.Parallel()

	d, s := dispatcherFixture(t, Options{})

	in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: ActionCancel, UserID: 10})
	require.Equal(t, KindFinish, in.Kind)
	require.Equal(t, OutcomeCancelled, in.Outcome)
	require.Equal(t, OutcomeCancelled, s.Outcome())

	_, ok := d.Registry().Lookup("msg-1")
	require.False(t, ok)
}

func TestDispatchBackWithEmptyHistory(t *testing.T) {
	t.Parallel()

	d, s := dispatcherFixture(t, Options{})

	in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: ActionBack, UserID: 10})
	require.Equal(t, KindRejected, in.Kind)
	var ne *NavigationError
	require.ErrorAs(t, in.Err, &ne)
	require.Equal(t, "s0", s.Current().ID)
}

func TestDispatchDynamicBranchOnEventData(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Options{})
	def, err := New("branching").
		Step("ask", nil, Action{ID: "pick", Target: Resolve(
			func(ctx context.Context, s *Step, ev Event) (Target, error) {
				if ev.Data == "left" {
					return Goto("left"), nil
				}
				return Goto("right"), nil
			})}).
		Step("left", nil).
		Step("right", nil).
		Build()
	require.NoError(t, err)

	_, err = reg.Create("msg-1", def, 10)
	require.NoError(t, err)
	d := NewDispatcher(reg)

	in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "pick", UserID: 10, Data: "left"})
	require.Equal(t, KindRender, in.Kind)
	require.Equal(t, "left", in.Step.ID)
}

func TestDispatchDynamicTargetUndeclaredStep(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Options{})
	def, err := New("loose").
		Step("s0", nil, Action{ID: "jump", Target: Resolve(
			func(ctx context.Context, s *Step, ev Event) (Target, error) {
				return Goto("nowhere"), nil
			})}).
		Build()
	require.NoError(t, err)

	s, err := reg.Create("msg-1", def, 10)
	require.NoError(t, err)
	d := NewDispatcher(reg)

	in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "jump", UserID: 10})
	require.Equal(t, KindFailed, in.Kind)
	var re *ResolutionError
	require.ErrorAs(t, in.Err, &re)
	require.Equal(t, "s0", s.Current().ID)
}

func TestDispatchResolverResultDiscardedAfterTermination(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Options{})
	entered := make(chan struct{})
	proceed := make(chan struct{})

	def, err := New("race").
		Step("s0", nil, Action{ID: "slow", Target: Resolve(
			func(ctx context.Context, s *Step, ev Event) (Target, error) {
				close(entered)
				<-proceed
				return Goto("s1"), nil
			})}).
		Step("s1", nil).
		Build()
	require.NoError(t, err)

	s, err := reg.Create("msg-1", def, 10)
	require.NoError(t, err)
	d := NewDispatcher(reg)

	res := make(chan Instruction, 1)
	go func() {
		res <- d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "slow", UserID: 10})
	}()

	<-entered
	// The session terminates while the resolver is in flight; the resolved
	// next step must be discarded, not applied.
	s.terminate(OutcomeCancelled, nil)
	close(proceed)

	in := <-res
	require.Equal(t, KindStale, in.Kind)
	require.Equal(t, "s0", s.Current().ID)
	require.Equal(t, OutcomeCancelled, s.Outcome())
}

func TestDispatchHistoryRoundTripThroughDispatcher(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Options{})
	def := chainFlow(t, 4)
	_, err := reg.Create("msg-1", def, 10)
	require.NoError(t, err)
	d := NewDispatcher(reg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		in := d.Dispatch(ctx, Event{SessionKey: "msg-1", Action: "next", UserID: 10})
		require.Equal(t, KindRender, in.Kind)
	}
	for i := 0; i < 3; i++ {
		in := d.Dispatch(ctx, Event{SessionKey: "msg-1", Action: ActionBack, UserID: 10})
		require.Equal(t, KindRender, in.Kind)
	}

	s, ok := reg.Lookup("msg-1")
	require.True(t, ok)
	require.Equal(t, def.Entry().ID, s.Current().ID)
}

func TestDispatchTouchSlidesIdleWindow(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Options{IdleTimeout: 150 * time.Millisecond, SweepInterval: 25 * time.Millisecond})
	def := chainFlow(t, 10)
	_, err := reg.Create("msg-1", def, 10)
	require.NoError(t, err)
	d := NewDispatcher(reg)

	// Keep the session busy for longer than the idle timeout.
	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		in := d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: "next", UserID: 10})
		if in.Kind != KindRender {
			t.Fatalf("active session expired mid-conversation: %v", in.Kind)
		}
		d.Dispatch(context.Background(), Event{SessionKey: "msg-1", Action: ActionBack, UserID: 10})
		time.Sleep(50 * time.Millisecond)
	}

	_, ok := reg.Lookup("msg-1")
	require.True(t, ok)
}
