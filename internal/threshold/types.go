package threshold

import (
	"fmt"
	"math"
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/sampler"
)

// Direction is the comparison applied between a metric and its bounds.
type Direction string

const (
	Above    Direction = "above"
	Below    Direction = "below"
	Equal    Direction = "equal"
	NotEqual Direction = "not_equal"
)

// Severity of an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Statistic selects which window aggregate a threshold compares.
type Statistic string

const (
	StatCurrent Statistic = "current"
	StatMean    Statistic = "mean"
	StatMin     Statistic = "min"
	StatMax     Statistic = "max"
)

// Threshold binds a metric to warning and critical bounds.
type Threshold struct {
	Name      string
	Metric    sampler.Metric
	Warning   float64
	Critical  float64
	Direction Direction
	Statistic Statistic
	Enabled   bool
	Cooldown  time.Duration
}

// Validate rejects contradictory bounds. For Above the warning bound must not
// exceed the critical bound, for Below it must not fall under it.
func (t Threshold) Validate() error {
	errFactory := errors.New()

	var problems errors.FieldErrors
	if t.Name == "" {
		problems = append(problems, errors.FieldError{Field: "name", Value: t.Name, Reason: "must not be empty"})
	}
	if _, err := sampler.ParseMetric(string(t.Metric)); err != nil {
		problems = append(problems, errors.FieldError{Field: "metric", Value: t.Metric, Reason: "unknown metric"})
	}
	if t.Cooldown < 0 {
		problems = append(problems, errors.FieldError{Field: "cooldown", Value: t.Cooldown, Reason: "must not be negative"})
	}
	if math.IsNaN(t.Warning) || math.IsNaN(t.Critical) {
		problems = append(problems, errors.FieldError{Field: "bounds", Value: "NaN", Reason: "bounds must be numbers"})
	}
	switch t.Statistic {
	case "", StatCurrent, StatMean, StatMin, StatMax:
	default:
		problems = append(problems, errors.FieldError{Field: "statistic", Value: t.Statistic, Reason: "must be current, mean, min or max"})
	}
	if len(problems) > 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, problems).
			WithMessage(fmt.Sprintf("threshold %q is invalid", t.Name))
	}

	switch t.Direction {
	case Above:
		if t.Warning > t.Critical {
			return errFactory.WithData(errors.ErrThresholdMisconfigured, errors.FieldErrors{{
				Field:  t.Name,
				Value:  fmt.Sprintf("warning=%g critical=%g", t.Warning, t.Critical),
				Reason: "direction above requires warning <= critical",
			}})
		}
	case Below:
		if t.Warning < t.Critical {
			return errFactory.WithData(errors.ErrThresholdMisconfigured, errors.FieldErrors{{
				Field:  t.Name,
				Value:  fmt.Sprintf("warning=%g critical=%g", t.Warning, t.Critical),
				Reason: "direction below requires warning >= critical",
			}})
		}
	case Equal, NotEqual:
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, errors.FieldErrors{{
			Field:  t.Name + ".direction",
			Value:  t.Direction,
			Reason: "must be above, below, equal or not_equal",
		}})
	}

	return nil
}

func (t Threshold) crossed(value, bound float64) bool {
	switch t.Direction {
	case Above:
		return value >= bound
	case Below:
		return value <= bound
	case Equal:
		return value == bound
	case NotEqual:
		return value != bound
	default:
		return false
	}
}

// recovered reports whether value has moved back past the warning bound by
// at least margin (a fraction of the bound's magnitude).
func (t Threshold) recovered(value, margin float64) bool {
	band := math.Abs(t.Warning) * margin

	switch t.Direction {
	case Above:
		return value < t.Warning-band
	case Below:
		return value > t.Warning+band
	case Equal:
		return value != t.Warning && value != t.Critical
	case NotEqual:
		return value == t.Warning
	default:
		return false
	}
}

func (t Threshold) observe(st sampler.MetricStat) float64 {
	switch t.Statistic {
	case StatMean:
		return st.Mean
	case StatMin:
		return st.Min
	case StatMax:
		return st.Max
	default:
		return st.Current
	}
}

// Alert is an immutable record of a threshold crossing.
type Alert struct {
	ID         string         `json:"id" yaml:"id"`
	Threshold  string         `json:"threshold" yaml:"threshold"`
	Metric     sampler.Metric `json:"metric" yaml:"metric"`
	Observed   float64        `json:"observed" yaml:"observed"`
	Bound      float64        `json:"bound" yaml:"bound"`
	Severity   Severity       `json:"severity" yaml:"severity"`
	Timestamp  time.Time      `json:"timestamp" yaml:"timestamp"`
	Resolved   bool           `json:"resolved" yaml:"resolved"`
	ResolvedAt time.Time      `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
}

// Resolve returns a copy of the alert marked resolved at t.
func (a Alert) Resolve(t time.Time) Alert {
	a.Resolved = true
	a.ResolvedAt = t

	return a
}
