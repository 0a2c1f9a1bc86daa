package vehicle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tracksim/tracksim/pkg/vehicle"

type metrics struct {
	ticks      metric.Int64Counter
	shifts     metric.Int64Counter
	sleeps     metric.Int64Counter
	rejections metric.Int64Counter
}

// newMetrics uses the global OTel meter (no-op if not configured).
func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	out.ticks, err = m.Int64Counter(
		"vehicle.ticks",
		metric.WithDescription("Simulation ticks, labelled by whether the pipeline ran"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	out.shifts, err = m.Int64Counter(
		"vehicle.gear.shifts",
		metric.WithDescription("Gear changes, labelled by origin"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating shift counter: %w", err)
	}

	out.sleeps, err = m.Int64Counter(
		"vehicle.sleep.transitions",
		metric.WithDescription("Sleep state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sleep counter: %w", err)
	}

	out.rejections, err = m.Int64Counter(
		"vehicle.control.rejected",
		metric.WithDescription("Replicated control states rejected by validation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejection counter: %w", err)
	}
	return out, nil
}

func (m *metrics) tick(active bool) {
	m.ticks.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("active", active)))
}

func (m *metrics) shift(origin string) {
	m.shifts.Add(context.Background(), 1, metric.WithAttributes(attribute.String("origin", origin)))
}

func (m *metrics) sleep(asleep bool) {
	m.sleeps.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("asleep", asleep)))
}

func (m *metrics) reject() {
	m.rejections.Add(context.Background(), 1)
}
