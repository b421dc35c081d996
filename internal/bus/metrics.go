package bus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the bus's Prometheus collectors.
type Metrics struct {
	Published        *prometheus.CounterVec
	Delivered        *prometheus.CounterVec
	HandlerFailures  *prometheus.CounterVec
	Subscriptions    prometheus.Gauge
	DispatchDuration *prometheus.HistogramVec
}

// NewMetrics creates the bus collectors and registers them with reg.
// A nil reg leaves the collectors unregistered (useful in tests).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylogic",
				Subsystem: "bus",
				Name:      "published_total",
				Help:      "Total number of envelopes published",
			},
			[]string{"kind"},
		),
		Delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylogic",
				Subsystem: "bus",
				Name:      "delivered_total",
				Help:      "Total number of handler invocations",
			},
			[]string{"kind"},
		),
		HandlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylogic",
				Subsystem: "bus",
				Name:      "handler_failures_total",
				Help:      "Total number of handler errors and recovered panics",
			},
			[]string{"kind"},
		),
		Subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "graylogic",
				Subsystem: "bus",
				Name:      "subscriptions",
				Help:      "Number of live subscriptions",
			},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "graylogic",
				Subsystem: "bus",
				Name:      "dispatch_duration_seconds",
				Help:      "Time from publish until every matched handler completed",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{
		m.Published, m.Delivered, m.HandlerFailures, m.Subscriptions, m.DispatchDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering bus metrics: %w", err)
		}
	}
	return m, nil
}
