package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/roach88/dining/internal/engine"
	"github.com/roach88/dining/internal/testutil"
	"github.com/roach88/dining/internal/trace"
)

func newTestMetrics(t *testing.T) (*Metrics, *Collector) {
	t.Helper()
	c := NewCollector()
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	m, err := NewMetrics(c.Provider())
	require.NoError(t, err)
	return m, c
}

func TestMetrics_ScriptedMeals(t *testing.T) {
	m, c := newTestMetrics(t)

	s := testutil.NewScript("r")
	s.Start(0).Start(1)
	s.Meal(0, 0, 1)
	s.Meal(1, 0, 1)
	s.Meal(0, 0, 1)
	s.Stop(0, trace.StateThinking).Stop(1, trace.StateThinking)
	for _, e := range s.Events() {
		m.Emit(e)
	}

	sum, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Meals)
	assert.Equal(t, int64(6), sum.Acquisitions)
	// 2 starts + 3 meals * 3 transitions + 2 stops
	assert.Equal(t, int64(13), sum.Transitions)
	assert.Equal(t, uint64(3), sum.Waits)
	// Scripted events are 1ms apart; hungry -> eating spans three of them.
	assert.Equal(t, 3*time.Millisecond, sum.MeanWait.Round(time.Microsecond))
	assert.Equal(t, 3*time.Millisecond, sum.MaxWait.Round(time.Microsecond))
}

func TestMetrics_HungryStopIsNotAMeal(t *testing.T) {
	m, c := newTestMetrics(t)

	s := testutil.NewScript("r")
	s.Start(0).
		Transition(0, trace.StateThinking, trace.StateHungry).
		Acquire(0, 0).Acquire(0, 1).
		Release(0, 1).Release(0, 0).
		Stop(0, trace.StateHungry)
	for _, e := range s.Events() {
		m.Emit(e)
	}

	sum, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Meals)
	assert.Zero(t, sum.Waits)
}

func TestMetrics_RunFinished(t *testing.T) {
	m, c := newTestMetrics(t)
	m.RunFinished(context.Background(), "ok", 2*time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, c.reader.Collect(context.Background(), &rm))

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "dining.runs" {
				continue
			}
			found = true
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			status, ok := sum.DataPoints[0].Attributes.Value("status")
			require.True(t, ok)
			assert.Equal(t, "ok", status.AsString())
		}
	}
	assert.True(t, found, "dining.runs not collected")
}

func TestMetrics_MatchesEngineSummary(t *testing.T) {
	m, c := newTestMetrics(t)
	cfg := engine.Config{
		Agents:      3,
		RunDuration: 100 * time.Millisecond,
		ThinkMax:    time.Millisecond,
		EatMax:      time.Millisecond,
		Seed:        9,
	}
	summary, err := engine.Run(context.Background(), cfg, engine.WithSink(m))
	require.NoError(t, err)

	sum, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.TotalMeals(), sum.Meals)
	assert.Equal(t, uint64(summary.TotalMeals()), sum.Waits)
}

func TestNewMetrics_GlobalProvider(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { m.Emit(trace.Acquire(0, 0)) })
}
