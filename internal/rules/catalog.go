package rules

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/profile"
	"codeberg.org/mutker/framegov/internal/sampler"
	"codeberg.org/mutker/framegov/internal/threshold"
)

// Kind names a built-in rule.
type Kind string

const (
	KindPacerReduce         Kind = "pacer_reduce"
	KindPacerIncrease       Kind = "pacer_increase"
	KindPacerFloor          Kind = "pacer_floor"
	KindCriticalAlertReduce Kind = "critical_alert_reduce"
	KindThermalReduce       Kind = "thermal_reduce"
)

// Kinds lists every built-in rule kind.
func Kinds() []Kind {
	return []Kind{
		KindPacerReduce,
		KindPacerIncrease,
		KindPacerFloor,
		KindCriticalAlertReduce,
		KindThermalReduce,
	}
}

// Spec is the configured form of a built-in rule.
type Spec struct {
	Name     string
	Kind     Kind
	Priority int
	Cooldown time.Duration
	// Steps moved per application. Defaults to 1.
	Steps int
}

// Stepper is the part of the profile store the catalog drives.
type Stepper interface {
	Step(ctx context.Context, dir profile.Direction, steps int) (bool, error)
	ToFloor(ctx context.Context) (bool, error)
}

// DefaultSpecs returns the stock rule set.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: "floor_on_forced_throttle", Kind: KindPacerFloor, Priority: 0, Cooldown: 0},
		{Name: "reduce_on_critical_alert", Kind: KindCriticalAlertReduce, Priority: 10, Cooldown: 2 * time.Second},
		{Name: "reduce_on_thermal", Kind: KindThermalReduce, Priority: 20, Cooldown: 5 * time.Second},
		{Name: "reduce_on_degradation", Kind: KindPacerReduce, Priority: 30, Cooldown: time.Second},
		{Name: "increase_on_recovery", Kind: KindPacerIncrease, Priority: 40, Cooldown: 3 * time.Second},
	}
}

// Build turns specs into rules bound to store.
func Build(specs []Spec, store Stepper) ([]Rule, error) {
	out := make([]Rule, 0, len(specs))

	for _, spec := range specs {
		steps := spec.Steps
		if steps <= 0 {
			steps = 1
		}
		name := spec.Name
		if name == "" {
			name = string(spec.Kind)
		}

		r := Rule{Name: name, Priority: spec.Priority, Cooldown: spec.Cooldown}

		switch spec.Kind {
		case KindPacerReduce:
			r.Condition = pending(pacer.Reduce)
			r.Action = step(store, profile.Down, steps)
			r.Handles = pacer.Reduce
		case KindPacerIncrease:
			r.Condition = pending(pacer.Increase)
			r.Action = step(store, profile.Up, steps)
			r.Handles = pacer.Increase
		case KindPacerFloor:
			r.Condition = pending(pacer.Floor)
			r.Action = func(ctx context.Context) error {
				_, err := store.ToFloor(ctx)
				return err
			}
			r.Handles = pacer.Floor
		case KindCriticalAlertReduce:
			r.Condition = func(_ sampler.Stats, board Scoreboard) bool {
				return board.HasUnresolved(threshold.SeverityCritical)
			}
			r.Action = step(store, profile.Down, steps)
		case KindThermalReduce:
			r.Condition = func(stats sampler.Stats, _ Scoreboard) bool {
				st, ok := stats[sampler.MetricThermal]
				return ok && st.Available && st.Current >= 1
			}
			r.Action = step(store, profile.Down, steps)
		default:
			return nil, errors.New().WithData(errors.ErrInvalidRule, errors.FieldErrors{{
				Field:  name + ".kind",
				Value:  spec.Kind,
				Reason: fmt.Sprintf("unknown rule kind, expected one of %v", Kinds()),
			}})
		}

		out = append(out, r)
	}

	return out, nil
}

func pending(rec pacer.Recommendation) Condition {
	return func(_ sampler.Stats, board Scoreboard) bool {
		return board.Pending == rec
	}
}

func step(store Stepper, dir profile.Direction, steps int) Action {
	return func(ctx context.Context) error {
		_, err := store.Step(ctx, dir, steps)
		return err
	}
}
