// Package metrics exposes a run's activity as OpenTelemetry instruments.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/dining/internal/trace"
)

const meterName = "dining"

// Metrics holds all simulation metric instruments. It is a trace.Sink:
// attach it to an engine and every event updates the instruments.
type Metrics struct {
	Meals        metric.Int64Counter
	Transitions  metric.Int64Counter
	Acquisitions metric.Int64Counter
	HungryWait   metric.Float64Histogram
	Runs         metric.Int64Counter
	RunDuration  metric.Float64Histogram

	mu     sync.Mutex
	hungry map[int]time.Time
}

// NewMetrics creates all metric instruments on provider, or on the global
// provider if provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	m := &Metrics{hungry: make(map[int]time.Time)}
	var err error

	m.Meals, err = meter.Int64Counter("dining.meals",
		metric.WithDescription("Number of meals started"))
	if err != nil {
		return nil, err
	}

	m.Transitions, err = meter.Int64Counter("dining.transitions",
		metric.WithDescription("Number of agent state transitions"))
	if err != nil {
		return nil, err
	}

	m.Acquisitions, err = meter.Int64Counter("dining.acquisitions",
		metric.WithDescription("Number of utensil acquisitions"))
	if err != nil {
		return nil, err
	}

	m.HungryWait, err = meter.Float64Histogram("dining.hungry_wait_seconds",
		metric.WithDescription("Time from hungry to eating in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.Runs, err = meter.Int64Counter("dining.runs",
		metric.WithDescription("Number of finished runs by status"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("dining.run.duration_seconds",
		metric.WithDescription("Run duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Emit implements trace.Sink.
func (m *Metrics) Emit(e trace.Event) {
	ctx := context.Background()
	agent := attribute.Int("agent", e.Agent)

	switch e.Kind {
	case trace.KindAcquire:
		m.Acquisitions.Add(ctx, 1, metric.WithAttributes(attribute.Int("utensil", e.Resource)))
	case trace.KindTransition:
		m.Transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", e.From.String()),
			attribute.String("to", e.To.String()),
		))
		switch {
		case e.To == trace.StateHungry:
			m.mu.Lock()
			m.hungry[e.Agent] = e.At
			m.mu.Unlock()
		case e.From == trace.StateHungry:
			m.mu.Lock()
			since, ok := m.hungry[e.Agent]
			delete(m.hungry, e.Agent)
			m.mu.Unlock()
			if ok && e.To == trace.StateEating {
				m.HungryWait.Record(ctx, e.At.Sub(since).Seconds(), metric.WithAttributes(agent))
				m.Meals.Add(ctx, 1, metric.WithAttributes(agent))
			}
		}
	}
}

// RunFinished records the outcome of one run.
func (m *Metrics) RunFinished(ctx context.Context, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Runs.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, elapsed.Seconds(), attrs)
}
