package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dining/internal/ring"
	"github.com/roach88/dining/internal/testutil"
	"github.com/roach88/dining/internal/trace"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(agents int, d time.Duration) Config {
	return Config{
		Agents:      agents,
		RunDuration: d,
		ThinkMax:    time.Millisecond,
		EatMax:      time.Millisecond,
		Seed:        42,
	}
}

// allowed lists every legal transition of the agent state machine.
var allowed = map[[2]trace.State]bool{
	{trace.StateIdle, trace.StateThinking}:    true,
	{trace.StateThinking, trace.StateHungry}:  true,
	{trace.StateThinking, trace.StateStopped}: true,
	{trace.StateHungry, trace.StateEating}:    true,
	{trace.StateHungry, trace.StateStopped}:   true,
	{trace.StateEating, trace.StateThinking}:  true,
	{trace.StateEating, trace.StateStopped}:   true,
}

// checkAgentTrace verifies one agent's events: legal, chained transitions;
// ascending acquisition per episode; nothing held at the end; stopped last.
func checkAgentTrace(t *testing.T, agent int, pair ring.Pair, events []trace.Event) {
	t.Helper()
	require.NotEmpty(t, events, "agent %d emitted nothing", agent)

	state := trace.StateIdle
	var episode []int
	held := 0
	for _, e := range events {
		switch e.Kind {
		case trace.KindTransition:
			require.Equal(t, state, e.From, "agent %d: broken chain at seq %d", agent, e.Seq)
			require.True(t, allowed[[2]trace.State{e.From, e.To}], "agent %d: illegal %s", agent, e)
			if e.To == trace.StateEating {
				require.Equal(t, []int{pair.Low, pair.High}, episode, "agent %d: acquisition order", agent)
			}
			if e.From == trace.StateThinking && e.To == trace.StateHungry {
				episode = episode[:0]
			}
			state = e.To
		case trace.KindAcquire:
			require.Equal(t, trace.StateHungry, state, "agent %d acquired outside hungry", agent)
			episode = append(episode, e.Resource)
			held++
		case trace.KindRelease:
			held--
		}
	}
	assert.Zero(t, held, "agent %d ended holding utensils", agent)
	last := events[len(events)-1]
	assert.Equal(t, trace.KindTransition, last.Kind, "agent %d", agent)
	assert.Equal(t, trace.StateStopped, last.To, "agent %d", agent)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Agents: 1, RunDuration: 0, ThinkMax: -1, EatMax: 0, Grace: -time.Second})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Len(t, ce.Problems, 5)
	assert.Contains(t, err.Error(), "agents must be at least 2, got 1")
}

func TestConfig_GracePeriod(t *testing.T) {
	cfg := fastConfig(2, time.Second)
	assert.Equal(t, DefaultGrace(time.Millisecond), cfg.GracePeriod())
	cfg.Grace = 3 * time.Second
	assert.Equal(t, 3*time.Second, cfg.GracePeriod())
}

func TestDefaultGrace_Saturates(t *testing.T) {
	assert.Equal(t, 7*time.Second, DefaultGrace(time.Second))

	for _, eat := range []time.Duration{math.MaxInt64 / 2, math.MaxInt64 - 1, math.MaxInt64} {
		cfg := fastConfig(2, time.Second)
		cfg.EatMax = eat
		require.NoError(t, cfg.Validate())
		assert.Equal(t, time.Duration(math.MaxInt64), cfg.GracePeriod(), "eat=%d", int64(eat))
	}
}

func TestRun_TwoAgentsOneSecond(t *testing.T) {
	rec := trace.NewRecorder()
	checker := testutil.NewExclusionChecker()
	cfg := Config{
		Agents:      2,
		RunDuration: time.Second,
		ThinkMax:    time.Millisecond,
		EatMax:      time.Millisecond,
	}

	start := time.Now()
	summary, err := Run(context.Background(), cfg,
		WithSink(trace.Multi(rec, checker)),
		WithLogger(quietLogger()),
	)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, 1500*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Equal(t, StopDuration, summary.Cause)
	assert.Equal(t, int64(rec.Len()), summary.Events)
	assert.Empty(t, checker.Violations())
	assert.Empty(t, checker.Held())

	pairs := []ring.Pair{{Low: 0, High: 1}, {Low: 0, High: 1}}
	for a := 0; a < 2; a++ {
		checkAgentTrace(t, a, pairs[a], rec.ForAgent(a))
	}

	// Both agents share both utensils, so their eating intervals (from
	// hungry -> eating to the first release) must never interleave.
	eating := -1
	for _, e := range rec.Events() {
		switch {
		case e.IsTransition(trace.StateHungry, trace.StateEating):
			require.Equal(t, -1, eating, "agents %d and %d ate together at seq %d", eating, e.Agent, e.Seq)
			eating = e.Agent
		case e.Kind == trace.KindRelease && e.Agent == eating:
			eating = -1
		}
	}
	assert.Positive(t, summary.TotalMeals())
}

func TestRun_NoDeadlock(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8} {
		t.Run(fmt.Sprintf("agents=%d", n), func(t *testing.T) {
			checker := testutil.NewExclusionChecker()
			cfg := Config{
				Agents:      n,
				RunDuration: 200 * time.Millisecond,
				ThinkMax:    time.Microsecond,
				EatMax:      time.Microsecond,
				Grace:       2 * time.Second,
				Seed:        uint64(n),
			}

			start := time.Now()
			summary, err := Run(context.Background(), cfg, WithSink(checker), WithLogger(quietLogger()))
			require.NoError(t, err, "n=%d", n)
			assert.Less(t, time.Since(start), cfg.RunDuration+cfg.Grace)

			assert.Empty(t, checker.Violations())
			assert.Empty(t, checker.Held())
			assert.Positive(t, checker.Acquires())
			assert.Len(t, summary.Meals, n)
		})
	}
}

func TestRun_FiveAgentsTraces(t *testing.T) {
	rec := trace.NewRecorder()
	cfg := fastConfig(5, 300*time.Millisecond)
	summary, err := Run(context.Background(), cfg, WithSink(rec), WithLogger(quietLogger()),
		WithRunIDGenerator(NewFixedGenerator("run-five")))
	require.NoError(t, err)
	assert.Equal(t, "run-five", summary.RunID)
	assert.Equal(t, uint64(42), summary.Seed)

	for a := 0; a < 5; a++ {
		events := rec.ForAgent(a)
		checkAgentTrace(t, a, ring.PairFor(a, 5), events)
		var meals int64
		for _, e := range events {
			assert.Equal(t, "run-five", e.RunID)
			if e.IsTransition(trace.StateHungry, trace.StateEating) {
				meals++
			}
		}
		assert.Equal(t, summary.Meals[a], meals, "agent %d", a)
	}

	// Seq numbers are unique and dense.
	events := rec.Events()
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestRun_Twice(t *testing.T) {
	e, err := New(fastConfig(2, 10*time.Millisecond), WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestStop_Idempotent(t *testing.T) {
	e, err := New(fastConfig(3, time.Minute), WithLogger(quietLogger()))
	require.NoError(t, err)

	e.Stop()
	e.Stop()

	start := time.Now()
	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StopRequested, summary.Cause)

	// After completion too.
	assert.NotPanics(t, e.Stop)
}

func TestStop_DuringRun(t *testing.T) {
	rec := trace.NewRecorder()
	e, err := New(fastConfig(4, time.Minute), WithSink(rec), WithLogger(quietLogger()))
	require.NoError(t, err)

	time.AfterFunc(50*time.Millisecond, func() {
		e.Stop()
		e.Stop()
	})
	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopRequested, summary.Cause)
	for a := 0; a < 4; a++ {
		checkAgentTrace(t, a, ring.PairFor(a, 4), rec.ForAgent(a))
	}
}

func TestStopSignal(t *testing.T) {
	s := NewStopSignal()
	assert.False(t, s.Stopped())
	select {
	case <-s.Done():
		t.Fatal("done before stop")
	default:
	}

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Stop() {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
	assert.True(t, s.Stopped())
	<-s.Done()
}

func TestRun_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	summary, err := Run(ctx, fastConfig(3, time.Minute), WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, StopCanceled, summary.Cause)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_PanickingSinkIsFatal(t *testing.T) {
	var fired atomic.Bool
	sink := trace.SinkFunc(func(e trace.Event) {
		if e.Agent == 1 && e.IsTransition(trace.StateHungry, trace.StateEating) && fired.CompareAndSwap(false, true) {
			panic("sink exploded")
		}
	})

	summary, err := Run(context.Background(), fastConfig(3, 10*time.Second), WithSink(sink), WithLogger(quietLogger()))
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.True(t, IsFault(err))

	var fe *FaultError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrCodeAgentPanic, fe.Code)
	assert.Equal(t, 1, fe.Agent)
	assert.Contains(t, err.Error(), "sink exploded")
	assert.Equal(t, StopFault, summary.Cause)
	assert.Less(t, summary.Elapsed, 10*time.Second, "a fault must stop the run early")
}

func TestRun_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	sink := trace.SinkFunc(func(e trace.Event) {
		if e.Agent == 0 && e.Kind == trace.KindTransition && e.To == trace.StateStopped {
			<-release
		}
	})
	cfg := fastConfig(2, 20*time.Millisecond)
	cfg.Grace = 50 * time.Millisecond

	_, err := Run(context.Background(), cfg, WithSink(sink), WithLogger(quietLogger()))
	require.Error(t, err)
	assert.True(t, IsShutdownTimeout(err))
	assert.Contains(t, err.Error(), "agents [0] still running")
}

func TestAgent_ReacquireIsFault(t *testing.T) {
	rec := trace.NewRecorder()
	cfg := fastConfig(3, time.Second)
	r := &run{
		id:     "fault",
		cfg:    cfg,
		seed:   1,
		clock:  NewClock(),
		stop:   NewStopSignal(),
		sink:   rec,
		now:    time.Now,
		logger: quietLogger(),
	}
	table, err := ring.New(cfg.Agents, trace.SinkFunc(r.emit))
	require.NoError(t, err)
	r.table = table

	// Something already took agent 0's first utensil in its name.
	require.NoError(t, table.Acquire(0, 0))

	a := newAgent(0, r)
	err = a.run()
	require.Error(t, err)

	var fe *FaultError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrCodeAgentFault, fe.Code)
	assert.True(t, ring.IsFault(err, ring.ErrCodeReacquire))
	assert.True(t, a.done.Load())
	assert.Empty(t, a.held)
}

func TestRandomDuration_Bounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		d := randomDuration(rng, 5*time.Millisecond)
		require.Positive(t, d)
		require.LessOrEqual(t, d, 5*time.Millisecond)
	}
	assert.Equal(t, time.Duration(1), randomDuration(rng, 1))
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("a")
	assert.Equal(t, "a", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "v7 ids sort by creation time")
}

func TestFaultError_Message(t *testing.T) {
	inner := &ring.FaultError{Code: ring.ErrCodeForeignRelease, Agent: 2, Resource: 3, Holder: 1}
	err := newAgentFault(2, inner)
	assert.Equal(t, "AGENT_FAULT: agent broke a ring invariant (agent=2): FOREIGN_RELEASE: agent 2 released utensil 3 held by 1", err.Error())
	assert.ErrorIs(t, err, inner)

	p := newPanicFault(4, errors.New("boom"))
	assert.Equal(t, "AGENT_PANIC: panic in agent (agent=4): boom", p.Error())
}
