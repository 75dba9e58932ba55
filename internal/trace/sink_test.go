package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulti_ForwardsInOrder(t *testing.T) {
	var got []string
	a := SinkFunc(func(Event) { got = append(got, "a") })
	b := SinkFunc(func(Event) { got = append(got, "b") })

	Multi(a, nil, b).Emit(Transition(0, StateIdle, StateThinking))

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestMulti_Degenerate(t *testing.T) {
	assert.Equal(t, Discard, Multi())
	assert.Equal(t, Discard, Multi(nil, nil))

	r := NewRecorder()
	assert.Same(t, r, Multi(nil, r))
}

func TestRecorder_SortsBySeq(t *testing.T) {
	r := NewRecorder()
	for _, seq := range []int64{3, 1, 2} {
		e := Acquire(int(seq), 0)
		e.Seq = seq
		r.Emit(e)
	}

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)
	assert.Equal(t, int64(3), events[2].Seq)

	only := r.ForAgent(2)
	require.Len(t, only, 1)
	assert.Equal(t, 2, only[0].Agent)
}

func TestRecorder_Concurrent(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 100
	r := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				r.Emit(Transition(i, StateThinking, StateHungry))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, r.Len())
}

func TestLogSink_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewLogSink(logger)

	s.Emit(Acquire(1, 2))
	assert.Empty(t, buf.String(), "utensil events are debug-only")

	s.Emit(Transition(1, StateHungry, StateEating))
	assert.Contains(t, buf.String(), "from=hungry")
	assert.Contains(t, buf.String(), "to=eating")
}

func TestState_RoundTrip(t *testing.T) {
	for s := StateIdle; s <= StateStopped; s++ {
		parsed, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseState("napping")
	assert.Error(t, err)
	assert.Equal(t, "state(9)", State(9).String())
}

func TestKind_Parse(t *testing.T) {
	for _, k := range []Kind{KindTransition, KindAcquire, KindRelease} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("steal")
	assert.Error(t, err)
}

func TestEvent_JSONUsesNames(t *testing.T) {
	ev := Transition(3, StateHungry, StateEating)
	ev.Seq = 7

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"transition"`)
	assert.Contains(t, string(data), `"to":"eating"`)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev.Kind, back.Kind)
	assert.Equal(t, ev.From, back.From)
	assert.Equal(t, ev.To, back.To)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"steal"}`), &back))
}

func TestLogSink_DebugUtensilTraffic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewLogSink(logger)

	ev := Release(1, 2)
	ev.Seq = 9
	s.Emit(ev)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "msg=release")
	assert.Contains(t, buf.String(), "seq=9")
	assert.Contains(t, buf.String(), "utensil=2")
}
