package logic

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/firebot/firebot/internal/logic"

type metrics struct {
	ticks     metric.Int64Counter
	fires     metric.Int64Counter
	maneuvers metric.Int64Counter
}

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// newMetrics registers counters on the global meter provider. A failed
// registration falls back to a no-op counter.
func newMetrics() *metrics {
	m := meter()
	return &metrics{
		ticks: counter(m, "firebot.ticks", "Decision loop ticks"),
		fires: counter(m, "firebot.fires_detected", "Transitions from no flame to flame"),
		maneuvers: counter(m, "firebot.maneuvers",
			"Maneuvers run, by behavior"),
	}
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (m *metrics) tick() {
	m.ticks.Add(context.Background(), 1)
}

func (m *metrics) fire() {
	m.fires.Add(context.Background(), 1)
}

func (m *metrics) maneuver(b Behavior) {
	m.maneuvers.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("behavior", string(b))))
}
