package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-automation/internal/ingest"
	"github.com/nerrad567/gray-logic-automation/internal/scheduler"
)

// retentionInterval is how often old trigger history is pruned.
const retentionInterval = 6 * time.Hour

// jsonPublisher publishes retained status documents. *mqtt.Client satisfies it.
type jsonPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// seriesWriter is the time-series export surface. *influxdb.Client satisfies it.
type seriesWriter interface {
	WriteAutomationTrigger(t influxdb.AutomationTrigger)
	WriteActuatorState(actuatorID, state, source string)
	WriteSensorReading(sensorID, measurement string, value float64)
}

// subscriber is the subscription side of the bus.
type subscriber interface {
	Subscribe(kind *bus.Kind, filter string, handler bus.Handler) (bus.Token, error)
}

// warner is the logging surface the exporters need.
type warner interface {
	Warn(msg string, args ...any)
}

// timeSeries returns c as a seriesWriter, or nil when InfluxDB is disabled.
func timeSeries(c *influxdb.Client) seriesWriter {
	if c == nil {
		return nil
	}
	return c
}

func actuatorsFromConfig(cfgs []config.ActuatorConfig) []actuator.Actuator {
	out := make([]actuator.Actuator, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, actuator.Actuator{
			ID:       c.ID,
			Area:     c.Area,
			Type:     actuator.Type(c.Type),
			Protocol: c.Protocol,
			Address:  c.Address,
			Enabled:  !c.Disabled,
		})
	}
	return out
}

func sensorsFromConfig(cfgs []config.SensorConfig) []ingest.Sensor {
	out := make([]ingest.Sensor, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, ingest.Sensor{
			ID:       c.ID,
			Area:     c.Area,
			Kind:     ingest.SensorKind(c.Kind),
			Protocol: c.Protocol,
			Address:  c.Address,
		})
	}
	return out
}

// registerAreas builds and registers every configured automation.
//
// Parameters:
//   - engine: engine that owns the rules
//   - factory: builds behaviours from definitions
//   - areas: configured areas
//
// Returns:
//   - error: the first definition that failed to build or activate
func registerAreas(engine *automation.Engine, factory *automation.Factory, areas []config.AreaConfig) error {
	for _, area := range areas {
		for _, def := range area.Automations {
			spec, err := factory.Build(area.Name, automation.Definition{
				Flavor:         def.Flavor,
				Actuators:      def.Actuators,
				Cooldown:       config.Seconds(def.Cooldown),
				From:           def.From,
				To:             def.To,
				OnlyWhenDark:   def.OnlyWhenDark,
				OpenNotBefore:  def.OpenNotBefore,
				HeatProtection: def.HeatProtection,
				HeatThreshold:  def.HeatThreshold,
			})
			if err != nil {
				return fmt.Errorf("building %s automation for %s: %w", def.Flavor, area.Name, err)
			}
			if _, err := engine.Register(spec); err != nil {
				return fmt.Errorf("registering %s automation for %s: %w", def.Flavor, area.Name, err)
			}
		}
	}
	return nil
}

// triggerExporter returns the engine's trigger observer. Each trigger is
// announced on MQTT and, when enabled, written to the time-series store.
func triggerExporter(pub jsonPublisher, series seriesWriter, log warner) func(automation.TriggerRecord) {
	topics := mqtt.Topics{}
	return func(rec automation.TriggerRecord) {
		if err := pub.PublishJSON(topics.CoreAutomationFired(rec.AutomationID), rec, false); err != nil {
			log.Warn("automation trigger not announced", "automation", rec.AutomationID, "error", err)
		}
		if series == nil {
			return
		}
		series.WriteAutomationTrigger(influxdb.AutomationTrigger{
			AutomationID: rec.AutomationID,
			Area:         rec.Area,
			Flavor:       rec.Flavor,
			State:        string(rec.State),
			Status:       rec.Status,
			Reason:       rec.Reason,
			Actuators:    len(rec.Actuators),
			At:           rec.TriggeredAt,
		})
	}
}

// startExporters subscribes the outbound mirrors of bus traffic: retained
// automation state on MQTT, plus sensor and actuator series when a
// time-series store is configured.
//
// Returns:
//   - []bus.Token: subscriptions to remove on shutdown
//   - error: if any subscription failed
func startExporters(b subscriber, pub jsonPublisher, series seriesWriter, log warner) ([]bus.Token, error) {
	topics := mqtt.Topics{}
	var tokens []bus.Token

	add := func(kind *bus.Kind, h bus.Handler) error {
		t, err := b.Subscribe(kind, "", h)
		if err != nil {
			return fmt.Errorf("subscribing %s exporter: %w", kind.Name(), err)
		}
		tokens = append(tokens, t)
		return nil
	}

	err := add(events.KindAutomationState, bus.Handle(func(_ context.Context, p events.AutomationStateChanged, _ bus.Envelope) error {
		if err := pub.PublishJSON(topics.CoreAutomationState(p.ID), p, true); err != nil {
			log.Warn("automation state not published", "automation", p.ID, "error", err)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	if series == nil {
		return tokens, nil
	}

	err = add(events.KindOutdoorTemperature, bus.Handle(func(_ context.Context, p events.OutdoorTemperatureChanged, _ bus.Envelope) error {
		series.WriteSensorReading(p.SensorID, "outdoor_temperature", p.Celsius)
		return nil
	}))
	if err != nil {
		return tokens, err
	}
	err = add(events.KindActuatorState, bus.Handle(func(_ context.Context, p events.ActuatorStateChanged, _ bus.Envelope) error {
		series.WriteActuatorState(p.ActuatorID, p.State, p.Source)
		return nil
	}))
	return tokens, err
}

// pruner deletes old trigger history. automation.Repository satisfies it.
type pruner interface {
	PruneTriggers(ctx context.Context, before time.Time) (int64, error)
}

// scheduleRetention prunes trigger history now and every retentionInterval.
func scheduleRetention(ctx context.Context, sched scheduler.Scheduler, repo pruner, days int, reporter diagnostics.Reporter) (scheduler.Handle, error) {
	pruneTriggers(ctx, repo, days, time.Now(), reporter)
	h, err := sched.ScheduleRecurring(retentionInterval, func() {
		pruneTriggers(ctx, repo, days, time.Now(), reporter)
	})
	if err != nil {
		return scheduler.Handle{}, fmt.Errorf("scheduling trigger retention: %w", err)
	}
	return h, nil
}

// pruneTriggers removes trigger history older than days and reports
// failures as warnings.
func pruneTriggers(ctx context.Context, repo pruner, days int, now time.Time, reporter diagnostics.Reporter) {
	cutoff := now.AddDate(0, 0, -days)
	pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := repo.PruneTriggers(pruneCtx, cutoff); err != nil {
		reporter.Report(diagnostics.SeverityWarning, "trigger history not pruned", "error", err)
	}
}
