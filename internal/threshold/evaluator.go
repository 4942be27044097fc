package threshold

import (
	"time"

	"github.com/google/uuid"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/sampler"
)

// DefaultHysteresis is the fraction of the warning bound a metric has to
// retreat past before an alert resolves.
const DefaultHysteresis = 0.1

type cooldownKey struct {
	threshold string
	severity  Severity
}

// Evaluator compares window statistics against a fixed threshold set.
type Evaluator struct {
	thresholds []Threshold
	byName     map[string]Threshold
	hysteresis float64
	log        logger.Logger
	newID      func() string

	lastFired map[cooldownKey]time.Time
	unmapped  map[string]struct{}
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the evaluator logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Evaluator) { e.log = log }
}

// WithHysteresis overrides the resolve margin.
func WithHysteresis(fraction float64) Option {
	return func(e *Evaluator) {
		if fraction >= 0 {
			e.hysteresis = fraction
		}
	}
}

// WithIDGenerator replaces the random alert ID source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Evaluator) { e.newID = fn }
}

// New validates thresholds and builds an Evaluator. Threshold names must be
// unique.
func New(thresholds []Threshold, opts ...Option) (*Evaluator, error) {
	errFactory := errors.New()

	e := &Evaluator{
		thresholds: make([]Threshold, 0, len(thresholds)),
		byName:     make(map[string]Threshold, len(thresholds)),
		hysteresis: DefaultHysteresis,
		log:        logger.Default(),
		newID:      func() string { return uuid.NewString() },
		lastFired:  make(map[cooldownKey]time.Time),
		unmapped:   make(map[string]struct{}),
	}

	for _, t := range thresholds {
		if t.Statistic == "" {
			t.Statistic = StatCurrent
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.byName[t.Name]; dup {
			return nil, errFactory.WithData(errors.ErrInvalidConfig, errors.FieldErrors{{
				Field:  "name",
				Value:  t.Name,
				Reason: "duplicate threshold name",
			}})
		}
		e.byName[t.Name] = t
		e.thresholds = append(e.thresholds, t)
	}

	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("threshold")

	return e, nil
}

// Thresholds returns a copy of the configured thresholds.
func (e *Evaluator) Thresholds() []Threshold {
	out := make([]Threshold, len(e.thresholds))
	copy(out, e.thresholds)

	return out
}

// Evaluate emits at most one alert per enabled threshold: critical when the
// critical bound is crossed, warning when only the warning bound is. A
// (threshold, severity) pair that fired less than Cooldown ago is skipped.
// Unavailable metrics never alert.
func (e *Evaluator) Evaluate(now time.Time, stats sampler.Stats) []Alert {
	var alerts []Alert

	for _, t := range e.thresholds {
		if !t.Enabled {
			continue
		}

		st, ok := stats[t.Metric]
		if !ok {
			e.noteUnmapped(t)
			continue
		}
		if !st.Available {
			continue
		}

		value := t.observe(st)

		var (
			severity Severity
			bound    float64
		)
		switch {
		case t.crossed(value, t.Critical):
			severity, bound = SeverityCritical, t.Critical
		case t.crossed(value, t.Warning):
			severity, bound = SeverityWarning, t.Warning
		default:
			continue
		}

		key := cooldownKey{threshold: t.Name, severity: severity}
		if last, fired := e.lastFired[key]; fired && now.Sub(last) < t.Cooldown {
			continue
		}
		e.lastFired[key] = now

		alert := Alert{
			ID:        e.newID(),
			Threshold: t.Name,
			Metric:    t.Metric,
			Observed:  value,
			Bound:     bound,
			Severity:  severity,
			Timestamp: now,
		}
		alerts = append(alerts, alert)

		e.log.Warn().
			Str("threshold", t.Name).
			Str("metric", string(t.Metric)).
			Str("severity", string(severity)).
			Float64("observed", value).
			Float64("bound", bound).
			Msg("Threshold crossed")
	}

	return alerts
}

// Resolve returns active with every alert whose metric has recovered past
// the warning bound (plus the hysteresis margin) marked resolved at now.
// Alerts for unknown thresholds or unavailable metrics are left untouched.
func (e *Evaluator) Resolve(active []Alert, stats sampler.Stats, now time.Time) []Alert {
	out := make([]Alert, len(active))
	copy(out, active)

	for i, a := range out {
		if a.Resolved {
			continue
		}

		t, ok := e.byName[a.Threshold]
		if !ok {
			continue
		}
		st, ok := stats[t.Metric]
		if !ok || !st.Available {
			continue
		}

		value := t.observe(st)
		if !t.recovered(value, e.hysteresis) {
			continue
		}

		out[i] = a.Resolve(now)
		e.log.Info().
			Str("threshold", a.Threshold).
			Str("severity", string(a.Severity)).
			Float64("observed", value).
			Msg("Alert resolved")
	}

	return out
}

// LastFired reports when the given threshold last emitted at severity.
func (e *Evaluator) LastFired(name string, severity Severity) (time.Time, bool) {
	t, ok := e.lastFired[cooldownKey{threshold: name, severity: severity}]
	return t, ok
}

func (e *Evaluator) noteUnmapped(t Threshold) {
	if _, seen := e.unmapped[t.Name]; seen {
		return
	}
	e.unmapped[t.Name] = struct{}{}

	e.log.Info().
		Str("threshold", t.Name).
		Str("metric", string(t.Metric)).
		Msgf("No statistics for metric %s, threshold skipped", t.Metric)
}
