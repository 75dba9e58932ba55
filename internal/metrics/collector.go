package metrics

import (
	"context"
	"fmt"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Collector is an in-process meter provider whose instruments are read
// back on demand, for printing a run's metrics without an exporter.
type Collector struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewCollector creates a collector.
func NewCollector() *Collector {
	reader := sdkmetric.NewManualReader()
	return &Collector{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

// Provider returns the meter provider to build Metrics on.
func (c *Collector) Provider() *sdkmetric.MeterProvider { return c.provider }

// Shutdown releases the provider.
func (c *Collector) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}

// Summary is a flat view of the collected instruments.
type Summary struct {
	Meals        int64         `json:"meals"`
	Transitions  int64         `json:"transitions"`
	Acquisitions int64         `json:"acquisitions"`
	Waits        uint64        `json:"waits"`
	MeanWait     time.Duration `json:"mean_wait"`
	MaxWait      time.Duration `json:"max_wait"`
}

// Collect reads the current value of every instrument.
func (c *Collector) Collect(ctx context.Context) (Summary, error) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return Summary{}, fmt.Errorf("collect metrics: %w", err)
	}

	var s Summary
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != meterName {
			continue
		}
		for _, m := range sm.Metrics {
			switch m.Name {
			case "dining.meals":
				s.Meals = sumInt64(m.Data)
			case "dining.transitions":
				s.Transitions = sumInt64(m.Data)
			case "dining.acquisitions":
				s.Acquisitions = sumInt64(m.Data)
			case "dining.hungry_wait_seconds":
				hist, ok := m.Data.(metricdata.Histogram[float64])
				if !ok {
					continue
				}
				var total float64
				for _, dp := range hist.DataPoints {
					s.Waits += dp.Count
					total += dp.Sum
					if v, defined := dp.Max.Value(); defined && seconds(v) > s.MaxWait {
						s.MaxWait = seconds(v)
					}
				}
				if s.Waits > 0 {
					s.MeanWait = seconds(total / float64(s.Waits))
				}
			}
		}
	}
	return s, nil
}

func sumInt64(data metricdata.Aggregation) int64 {
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
