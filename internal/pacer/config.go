package pacer

import (
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
)

// Weights of each score input. Inputs that are unavailable drop out and the
// remaining weights are renormalized.
type Weights struct {
	Frame  float64
	Memory float64
	CPU    float64
	GPU    float64
}

func (w Weights) sum() float64 {
	return w.Frame + w.Memory + w.CPU + w.GPU
}

// Config tunes the pacer.
type Config struct {
	// TargetFPS zero defers to the device tier.
	TargetFPS     float64
	BackgroundFPS float64
	// Scores under LowBand count toward degradation, scores over HighBand
	// toward recovery.
	LowBand  float64
	HighBand float64
	// RecoverDwell must exceed DegradeDwell.
	DegradeDwell time.Duration
	RecoverDwell time.Duration
	// Smoothing is the EMA factor applied to each new frame interval.
	Smoothing float64
	Weights   Weights
	// MemoryBudget in bytes. Zero leaves memory out of the score.
	MemoryBudget    float64
	BatteryCritical float64
}

// DefaultConfig returns the stock tuning for a 60 FPS target.
func DefaultConfig() Config {
	return Config{
		TargetFPS:     60,
		BackgroundFPS: 5,
		LowBand:       0.75,
		HighBand:      0.9,
		DegradeDwell:  time.Second,
		RecoverDwell:  3 * time.Second,
		Smoothing:     0.1,
		Weights: Weights{
			Frame:  0.6,
			Memory: 0.15,
			CPU:    0.125,
			GPU:    0.125,
		},
		BatteryCritical: 10,
	}
}

// Validate checks bands, dwell asymmetry and weights.
func (c Config) Validate() error {
	var problems errors.FieldErrors
	add := func(field string, value any, reason string) {
		problems = append(problems, errors.FieldError{Field: field, Value: value, Reason: reason})
	}

	if c.TargetFPS < 0 {
		add("target_fps", c.TargetFPS, "must not be negative")
	}
	if c.BackgroundFPS <= 0 {
		add("background_fps", c.BackgroundFPS, "must be positive")
	}
	if c.LowBand < 0 || c.HighBand > 1 || c.LowBand >= c.HighBand {
		add("bands", [2]float64{c.LowBand, c.HighBand}, "need 0 <= low_band < high_band <= 1")
	}
	if c.DegradeDwell <= 0 {
		add("degrade_dwell", c.DegradeDwell, "must be positive")
	}
	if c.RecoverDwell <= c.DegradeDwell {
		add("recover_dwell", c.RecoverDwell, "must be longer than degrade_dwell")
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		add("smoothing", c.Smoothing, "must be in (0, 1]")
	}
	w := c.Weights
	if w.Frame < 0 || w.Memory < 0 || w.CPU < 0 || w.GPU < 0 {
		add("weights", w, "must not be negative")
	} else if w.sum() <= 0 {
		add("weights", w, "at least one weight must be positive")
	}
	if c.MemoryBudget < 0 {
		add("memory_budget", c.MemoryBudget, "must not be negative")
	}
	if c.BatteryCritical < 0 || c.BatteryCritical > 100 {
		add("battery_critical", c.BatteryCritical, "must be a percentage")
	}

	if len(problems) > 0 {
		return errors.New().WithData(errors.ErrInvalidPacer, problems)
	}

	return nil
}
