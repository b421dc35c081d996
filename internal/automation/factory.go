package automation

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
)

// NewID derives a rule's identity from its flavor and area. Two rules of the
// same flavor in the same area share an ID, so registering the second
// replaces the first.
func NewID(flavor, area string) string {
	return flavor + ":" + area
}

// Definition is the configured form of one rule.
type Definition struct {
	Flavor    string
	Actuators []string
	Cooldown  time.Duration

	// TurnOnAndOff
	From         string
	To           string
	OnlyWhenDark bool

	// RollerShutter
	OpenNotBefore  string
	HeatProtection bool
	HeatThreshold  float64
}

// RuleSpec is a built rule ready for Engine.Register.
type RuleSpec struct {
	Area     string
	Behavior Behavior
	Cooldown time.Duration
}

// ActuatorDirectory resolves an area's actuators by type.
// *actuator.MQTTSink satisfies it.
type ActuatorDirectory interface {
	InArea(area string, t actuator.Type) []string
}

// Defaults applied when a definition leaves a value unset.
type Defaults struct {
	Cooldown       time.Duration
	ShutterSpacing time.Duration
	OpenNotBefore  string
}

// Factory builds behaviours from definitions.
type Factory struct {
	dir      ActuatorDirectory
	loc      *time.Location
	defaults Defaults
}

// NewFactory creates a Factory. A nil loc uses time.Local.
func NewFactory(dir ActuatorDirectory, loc *time.Location, defaults Defaults) *Factory {
	if loc == nil {
		loc = time.Local
	}
	return &Factory{dir: dir, loc: loc, defaults: defaults}
}

// Build turns a definition into a RuleSpec for area.
//
// When the definition lists no actuators, every actuator of the matching
// type in the area is used (switches for lights, shutters for shutters).
func (f *Factory) Build(area string, def Definition) (RuleSpec, error) {
	if area == "" {
		return RuleSpec{}, fmt.Errorf("%w: area is required", ErrInvalidDefinition)
	}

	switch def.Flavor {
	case FlavorConditionalOn:
		ids, err := f.actuators(area, def, actuator.TypeSwitch)
		if err != nil {
			return RuleSpec{}, err
		}
		return RuleSpec{
			Area:     area,
			Behavior: NewConditionalOn(area, ids),
			Cooldown: f.cooldown(def.Cooldown, f.defaults.Cooldown),
		}, nil

	case FlavorTurnOnAndOff:
		ids, err := f.actuators(area, def, actuator.TypeSwitch)
		if err != nil {
			return RuleSpec{}, err
		}
		from, err := ParseTimeOfDay(def.From)
		if err != nil {
			return RuleSpec{}, err
		}
		to, err := ParseTimeOfDay(def.To)
		if err != nil {
			return RuleSpec{}, err
		}
		return RuleSpec{
			Area:     area,
			Behavior: NewTurnOnAndOff(ids, Window{From: from, To: to}, def.OnlyWhenDark, f.loc),
			Cooldown: f.cooldown(def.Cooldown, f.defaults.Cooldown),
		}, nil

	case FlavorRollerShutter:
		ids, err := f.actuators(area, def, actuator.TypeShutter)
		if err != nil {
			return RuleSpec{}, err
		}
		notBefore := def.OpenNotBefore
		if notBefore == "" {
			notBefore = f.defaults.OpenNotBefore
		}
		var open TimeOfDay
		if notBefore != "" {
			if open, err = ParseTimeOfDay(notBefore); err != nil {
				return RuleSpec{}, err
			}
		}
		return RuleSpec{
			Area: area,
			Behavior: NewRollerShutter(ids, RollerShutterOptions{
				OpenNotBefore:  open,
				HeatProtection: def.HeatProtection,
				HeatThreshold:  def.HeatThreshold,
				Location:       f.loc,
			}),
			Cooldown: f.cooldown(def.Cooldown, f.defaults.ShutterSpacing),
		}, nil

	default:
		return RuleSpec{}, fmt.Errorf("%w: %q", ErrUnknownFlavor, def.Flavor)
	}
}

func (f *Factory) actuators(area string, def Definition, t actuator.Type) ([]string, error) {
	ids := def.Actuators
	if len(ids) == 0 && f.dir != nil {
		ids = f.dir.InArea(area, t)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoActuators, def.Flavor, area)
	}
	return ids, nil
}

func (f *Factory) cooldown(configured, fallback time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return fallback
}
