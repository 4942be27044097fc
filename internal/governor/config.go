package governor

import (
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/profile"
	"codeberg.org/mutker/framegov/internal/rules"
	"codeberg.org/mutker/framegov/internal/sampler"
	"codeberg.org/mutker/framegov/internal/threshold"
)

// Config is everything the governor is built from. It is fixed for the life
// of a Governor.
type Config struct {
	HistorySize int
	Cadence     map[sampler.Metric]int

	Thresholds     []threshold.Threshold
	Hysteresis     float64
	AlertRetention time.Duration
	MaxAlerts      int

	Rules              []rules.Spec
	MaxActionsPerCycle int

	Profiles       []profile.QualityProfile
	InitialProfile string

	Pacer pacer.Config
	Tiers []pacer.Tier

	// EvaluateEvery and ReportEvery are tick sub-cadences.
	EvaluateEvery int
	ReportEvery   int
}

// DefaultConfig returns a working three-profile setup.
func DefaultConfig() Config {
	pc := pacer.DefaultConfig()
	pc.TargetFPS = 0

	return Config{
		HistorySize: 120,
		Cadence: map[sampler.Metric]int{
			sampler.MetricTextureMemory: 30,
			sampler.MetricMemory:        10,
			sampler.MetricBattery:       60,
		},
		Thresholds: []threshold.Threshold{
			{
				Name: "frame_time", Metric: sampler.MetricFrameTime, Direction: threshold.Above,
				Warning: 20, Critical: 33, Statistic: threshold.StatMean, Enabled: true, Cooldown: 5 * time.Second,
			},
			{
				Name: "cpu_load", Metric: sampler.MetricCPU, Direction: threshold.Above,
				Warning: 80, Critical: 95, Enabled: true, Cooldown: 10 * time.Second,
			},
			{
				Name: "battery_low", Metric: sampler.MetricBattery, Direction: threshold.Below,
				Warning: 20, Critical: 10, Enabled: true, Cooldown: time.Minute,
			},
		},
		Hysteresis:         threshold.DefaultHysteresis,
		AlertRetention:     10 * time.Minute,
		MaxAlerts:          500,
		Rules:              rules.DefaultSpecs(),
		MaxActionsPerCycle: 1,
		Profiles: []profile.QualityProfile{
			{ID: "low", Name: "Low", Level: 0, Params: map[string]float64{"render_scale": 0.5, "shadow_quality": 0, "lod_bias": 2}},
			{ID: "medium", Name: "Medium", Level: 1, Params: map[string]float64{"render_scale": 0.75, "shadow_quality": 1, "lod_bias": 1}},
			{ID: "high", Name: "High", Level: 2, Params: map[string]float64{"render_scale": 1, "shadow_quality": 3, "lod_bias": 0}},
		},
		Pacer:         pc,
		Tiers:         pacer.DefaultTiers(),
		EvaluateEvery: 1,
		ReportEvery:   60,
	}
}

// Validate checks the governor-level settings. Component settings are
// validated by the components themselves in New.
func (c Config) Validate() error {
	var problems errors.FieldErrors
	add := func(field string, value any, reason string) {
		problems = append(problems, errors.FieldError{Field: field, Value: value, Reason: reason})
	}

	if c.HistorySize < 1 || c.HistorySize > 100000 {
		add("history_size", c.HistorySize, "must be between 1 and 100000")
	}
	for m, every := range c.Cadence {
		if _, err := sampler.ParseMetric(string(m)); err != nil {
			add("cadence", m, "unknown metric")
		}
		if every < 1 {
			add("cadence."+string(m), every, "must be at least 1")
		}
	}
	if c.EvaluateEvery < 1 {
		add("evaluate_every", c.EvaluateEvery, "must be at least 1")
	}
	if c.ReportEvery < 1 {
		add("report_every", c.ReportEvery, "must be at least 1")
	}
	if c.AlertRetention < 0 {
		add("alert_retention", c.AlertRetention, "must not be negative")
	}
	if c.MaxAlerts < 0 {
		add("max_alerts", c.MaxAlerts, "must not be negative")
	}
	if c.Hysteresis < 0 || c.Hysteresis >= 1 {
		add("hysteresis", c.Hysteresis, "must be in [0, 1)")
	}

	if len(problems) > 0 {
		return errors.New().WithData(errors.ErrInvalidConfig, problems)
	}

	return nil
}
