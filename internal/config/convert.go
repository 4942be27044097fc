package config

import (
	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/governor"
	"codeberg.org/mutker/framegov/internal/metrics"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/profile"
	"codeberg.org/mutker/framegov/internal/rules"
	"codeberg.org/mutker/framegov/internal/sampler"
	"codeberg.org/mutker/framegov/internal/telemetry"
	"codeberg.org/mutker/framegov/internal/threshold"
)

// GovernorConfig converts the loaded settings into a governor.Config.
// Unknown metric names are reported as ErrUnknownMetric.
func (c *Config) GovernorConfig() (governor.Config, error) {
	cadence := make(map[sampler.Metric]int, len(c.Governor.Cadence))
	for name, every := range c.Governor.Cadence {
		m, err := sampler.ParseMetric(name)
		if err != nil {
			return governor.Config{}, err
		}
		cadence[m] = every
	}

	thresholds := make([]threshold.Threshold, 0, len(c.Thresholds))
	for _, t := range c.Thresholds {
		m, err := sampler.ParseMetric(t.Metric)
		if err != nil {
			return governor.Config{}, err
		}
		thresholds = append(thresholds, t.threshold(m))
	}

	specs := make([]rules.Spec, 0, len(c.Rules))
	for _, r := range c.Rules {
		specs = append(specs, rules.Spec{
			Name:     r.Name,
			Kind:     rules.Kind(r.Kind),
			Priority: r.Priority,
			Cooldown: r.Cooldown,
			Steps:    r.Steps,
		})
	}

	profiles := make([]profile.QualityProfile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		profiles = append(profiles, profile.QualityProfile{
			ID:     p.ID,
			Name:   p.Name,
			Level:  p.Level,
			Params: p.Params,
		})
	}

	tiers := make([]pacer.Tier, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		tiers = append(tiers, pacer.Tier(t))
	}

	return governor.Config{
		HistorySize:        c.Governor.HistorySize,
		Cadence:            cadence,
		Thresholds:         thresholds,
		Hysteresis:         c.Governor.Hysteresis,
		AlertRetention:     c.Governor.AlertRetention,
		MaxAlerts:          c.Governor.MaxAlerts,
		Rules:              specs,
		MaxActionsPerCycle: c.Governor.MaxActionsPerCycle,
		Profiles:           profiles,
		InitialProfile:     c.Governor.InitialProfile,
		Pacer:              c.PacerConfig(),
		Tiers:              tiers,
		EvaluateEvery:      c.Governor.EvaluateEvery,
		ReportEvery:        c.Governor.ReportEvery,
	}, nil
}

func (t ThresholdEntry) threshold(m sampler.Metric) threshold.Threshold {
	enabled := true
	if t.Enabled != nil {
		enabled = *t.Enabled
	}

	return threshold.Threshold{
		Name:      t.Name,
		Metric:    m,
		Warning:   t.Warning,
		Critical:  t.Critical,
		Direction: threshold.Direction(t.Direction),
		Statistic: threshold.Statistic(t.Statistic),
		Enabled:   enabled,
		Cooldown:  t.Cooldown,
	}
}

func (c *Config) PacerConfig() pacer.Config {
	p := c.Pacer
	return pacer.Config{
		TargetFPS:     p.TargetFPS,
		BackgroundFPS: p.BackgroundFPS,
		LowBand:       p.LowBand,
		HighBand:      p.HighBand,
		DegradeDwell:  p.DegradeDwell,
		RecoverDwell:  p.RecoverDwell,
		Smoothing:     p.Smoothing,
		Weights: pacer.Weights{
			Frame:  p.Weights.Frame,
			Memory: p.Weights.Memory,
			CPU:    p.Weights.CPU,
			GPU:    p.Weights.GPU,
		},
		MemoryBudget:    p.MemoryBudget,
		BatteryCritical: p.BatteryCritical,
	}
}

func (c *Config) TelemetryConfig() (telemetry.Config, error) {
	format, err := telemetry.ParseFormat(c.Report.Format)
	if err != nil {
		return telemetry.Config{}, err
	}

	return telemetry.Config{
		Enabled:  c.Report.Enabled,
		Format:   format,
		Path:     c.Report.Path,
		Interval: c.Report.Interval,
	}, nil
}

func (c *Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled: c.Metrics.Enabled,
		Listen:  c.Metrics.Listen,
		Path:    c.Metrics.Path,
	}
}

// fieldErrors extracts validation details from a component error, falling
// back to a single entry under section.
func fieldErrors(section string, err error) errors.FieldErrors {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		if fe, ok := appErr.GetData().(errors.FieldErrors); ok {
			out := make(errors.FieldErrors, 0, len(fe))
			for _, f := range fe {
				f.Field = section + "." + f.Field
				out = append(out, f)
			}
			return out
		}
	}

	return errors.FieldErrors{{Field: section, Value: nil, Reason: err.Error()}}
}
