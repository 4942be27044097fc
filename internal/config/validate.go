package config

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/rules"
)

// Validate checks every section and reports all problems at once. Threshold
// bounds in the wrong order are reported as ErrThresholdMisconfigured, log
// levels as ErrInvalidLogLevel, everything else as ErrInvalidConfig.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	var (
		problems   errors.FieldErrors
		misordered errors.FieldErrors
	)
	add := func(field string, value any, reason string) {
		problems = append(problems, errors.FieldError{Field: field, Value: value, Reason: reason})
	}

	if c.Tick <= 0 {
		add("tick", c.Tick, "must be positive")
	}
	if c.GPUIndex < 0 {
		add("gpu_index", c.GPUIndex, "must not be negative")
	}

	gov, err := c.GovernorConfig()
	if err != nil {
		problems = append(problems, fieldErrors("governor", err)...)
	} else {
		if err := gov.Validate(); err != nil {
			problems = append(problems, fieldErrors("governor", err)...)
		}
		if err := gov.Pacer.Validate(); err != nil {
			problems = append(problems, fieldErrors("pacer", err)...)
		}
		for i, t := range gov.Thresholds {
			err := t.Validate()
			switch {
			case err == nil:
			case errors.HasCode(err, errors.ErrThresholdMisconfigured):
				misordered = append(misordered, fieldErrors(fmt.Sprintf("thresholds[%d]", i), err)...)
			default:
				problems = append(problems, fieldErrors(fmt.Sprintf("thresholds[%d]", i), err)...)
			}
		}
	}

	kinds := make(map[string]bool)
	for _, k := range rules.Kinds() {
		kinds[string(k)] = true
	}
	for i, r := range c.Rules {
		if !kinds[r.Kind] {
			add(fmt.Sprintf("rules[%d].kind", i), r.Kind, "unknown rule kind")
		}
		if r.Cooldown < 0 {
			add(fmt.Sprintf("rules[%d].cooldown", i), r.Cooldown, "must not be negative")
		}
	}
	if c.Governor.MaxActionsPerCycle < 1 {
		add("governor.max_actions_per_cycle", c.Governor.MaxActionsPerCycle, "must be at least 1")
	}

	problems = append(problems, c.validateProfiles()...)

	if _, err := c.TelemetryConfig(); err != nil {
		add("report.format", c.Report.Format, "must be text, json, yaml or csv")
	} else if c.Report.Enabled && c.Report.Interval <= 0 {
		add("report.interval", c.Report.Interval, "must be positive")
	} else if c.Report.Enabled && c.Report.Path == "" {
		add("report.path", c.Report.Path, "must not be empty")
	}
	if err := c.MetricsConfig().Validate(); err != nil {
		problems = append(problems, fieldErrors("metrics", err)...)
	}

	if len(misordered) > 0 {
		return errFactory.WithData(errors.ErrThresholdMisconfigured, misordered)
	}
	if len(problems) > 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, problems)
	}

	return nil
}

func (c *Config) validateProfiles() errors.FieldErrors {
	var problems errors.FieldErrors

	if len(c.Profiles) == 0 {
		return errors.FieldErrors{{Field: "profiles", Value: 0, Reason: "at least one profile is required"}}
	}

	ids := make(map[string]bool, len(c.Profiles))
	levels := make(map[int]string, len(c.Profiles))
	for i, p := range c.Profiles {
		field := fmt.Sprintf("profiles[%d]", i)
		if p.ID == "" {
			problems = append(problems, errors.FieldError{Field: field + ".id", Value: p.ID, Reason: "must not be empty"})
		}
		if ids[p.ID] {
			problems = append(problems, errors.FieldError{Field: field + ".id", Value: p.ID, Reason: "duplicate profile id"})
		}
		if other, ok := levels[p.Level]; ok {
			problems = append(problems, errors.FieldError{
				Field:  field + ".level",
				Value:  p.Level,
				Reason: "level already used by " + other,
			})
		}
		ids[p.ID] = true
		levels[p.Level] = p.ID
	}

	if c.Governor.InitialProfile != "" && !ids[c.Governor.InitialProfile] {
		problems = append(problems, errors.FieldError{
			Field:  "governor.initial_profile",
			Value:  c.Governor.InitialProfile,
			Reason: "no such profile",
		})
	}

	return problems
}
