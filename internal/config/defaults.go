package config

import (
	"time"

	"github.com/spf13/viper"

	"codeberg.org/mutker/framegov/internal/governor"
	"codeberg.org/mutker/framegov/internal/metrics"
	"codeberg.org/mutker/framegov/internal/telemetry"
)

const (
	defaultTick           = 16 * time.Millisecond
	defaultTargetFPS      = 0.0
	defaultReportFormat   = string(telemetry.FormatText)
	defaultReportPath     = telemetry.StdoutPath
	defaultReportInterval = 5 * time.Second
	defaultMetricsListen  = "127.0.0.1:9464"
)

func setDefaults(v *viper.Viper) {
	gov := governor.DefaultConfig()
	pc := gov.Pacer
	report := telemetry.DefaultConfig()
	mc := metrics.DefaultConfig()

	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("simulate", false)
	v.SetDefault("tick", defaultTick)
	v.SetDefault("gpu_index", 0)

	v.SetDefault("governor.history_size", gov.HistorySize)
	v.SetDefault("governor.evaluate_every", gov.EvaluateEvery)
	v.SetDefault("governor.report_every", gov.ReportEvery)
	v.SetDefault("governor.max_actions_per_cycle", gov.MaxActionsPerCycle)
	v.SetDefault("governor.hysteresis", gov.Hysteresis)
	v.SetDefault("governor.alert_retention", gov.AlertRetention)
	v.SetDefault("governor.max_alerts", gov.MaxAlerts)
	v.SetDefault("governor.initial_profile", "")

	v.SetDefault("pacer.target_fps", defaultTargetFPS)
	v.SetDefault("pacer.background_fps", pc.BackgroundFPS)
	v.SetDefault("pacer.low_band", pc.LowBand)
	v.SetDefault("pacer.high_band", pc.HighBand)
	v.SetDefault("pacer.degrade_dwell", pc.DegradeDwell)
	v.SetDefault("pacer.recover_dwell", pc.RecoverDwell)
	v.SetDefault("pacer.smoothing", pc.Smoothing)
	v.SetDefault("pacer.memory_budget", pc.MemoryBudget)
	v.SetDefault("pacer.battery_critical", pc.BatteryCritical)
	v.SetDefault("pacer.weights.frame", pc.Weights.Frame)
	v.SetDefault("pacer.weights.memory", pc.Weights.Memory)
	v.SetDefault("pacer.weights.cpu", pc.Weights.CPU)
	v.SetDefault("pacer.weights.gpu", pc.Weights.GPU)

	v.SetDefault("report.enabled", report.Enabled)
	v.SetDefault("report.format", string(report.Format))
	v.SetDefault("report.path", report.Path)
	v.SetDefault("report.interval", report.Interval)

	v.SetDefault("metrics.enabled", mc.Enabled)
	v.SetDefault("metrics.listen", mc.Listen)
	v.SetDefault("metrics.path", mc.Path)

	v.SetDefault("simulation.period", 30*time.Second)
	v.SetDefault("simulation.amplitude", 0.6)
	v.SetDefault("simulation.seed", 1)
}

// fillLists supplies the stock thresholds, rules, profiles, tiers and
// cadences for every list the configuration left empty. Lists are replaced
// whole, never merged.
func (c *Config) fillLists() {
	gov := governor.DefaultConfig()

	if len(c.Governor.Cadence) == 0 {
		c.Governor.Cadence = make(map[string]int, len(gov.Cadence))
		for m, every := range gov.Cadence {
			c.Governor.Cadence[string(m)] = every
		}
	}

	if len(c.Thresholds) == 0 {
		for _, t := range gov.Thresholds {
			enabled := t.Enabled
			c.Thresholds = append(c.Thresholds, ThresholdEntry{
				Name:      t.Name,
				Metric:    string(t.Metric),
				Direction: string(t.Direction),
				Statistic: string(t.Statistic),
				Warning:   t.Warning,
				Critical:  t.Critical,
				Enabled:   &enabled,
				Cooldown:  t.Cooldown,
			})
		}
	}

	if len(c.Rules) == 0 {
		for _, r := range gov.Rules {
			c.Rules = append(c.Rules, RuleEntry{
				Name:     r.Name,
				Kind:     string(r.Kind),
				Priority: r.Priority,
				Cooldown: r.Cooldown,
				Steps:    r.Steps,
			})
		}
	}

	if len(c.Profiles) == 0 {
		for _, p := range gov.Profiles {
			c.Profiles = append(c.Profiles, ProfileEntry{
				ID:     p.ID,
				Name:   p.Name,
				Level:  p.Level,
				Params: p.Params,
			})
		}
	}

	if len(c.Tiers) == 0 {
		for _, t := range gov.Tiers {
			c.Tiers = append(c.Tiers, TierEntry(t))
		}
	}
}
