package automation

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the automation collectors.
type Metrics struct {
	Triggers    *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Rules       prometheus.Gauge
}

// NewMetrics creates the automation collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylogic",
				Subsystem: "automation",
				Name:      "triggers_total",
				Help:      "Rule dispatch attempts by flavor and outcome",
			},
			[]string{"flavor", "status"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylogic",
				Subsystem: "automation",
				Name:      "transitions_total",
				Help:      "Rule state transitions by target state",
			},
			[]string{"to"},
		),
		Rules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "graylogic",
				Subsystem: "automation",
				Name:      "rules",
				Help:      "Number of registered rules",
			},
		),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Triggers, m.Transitions, m.Rules} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering automation metrics: %w", err)
		}
	}
	return m, nil
}
