package rules

import (
	"context"
	"sort"
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/sampler"
)

// Engine runs rules in priority order, at most maxActions per tick, each
// subject to its own cooldown. It is not safe for concurrent use.
type Engine struct {
	rules      []Rule
	maxActions int
	log        logger.Logger

	lastApplied map[string]time.Time
	counts      map[string]uint64
	failures    map[string]uint64
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(log logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine validates rules and orders them by ascending priority, ties
// broken by name.
func NewEngine(rules []Rule, maxActionsPerCycle int, opts ...Option) (*Engine, error) {
	var problems errors.FieldErrors
	add := func(field string, value any, reason string) {
		problems = append(problems, errors.FieldError{Field: field, Value: value, Reason: reason})
	}

	if maxActionsPerCycle < 1 {
		add("max_actions_per_cycle", maxActionsPerCycle, "must be at least 1")
	}

	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		switch {
		case r.Name == "":
			add("name", r.Name, "must not be empty")
		case r.Condition == nil:
			add(r.Name+".condition", nil, "must be set")
		case r.Action == nil:
			add(r.Name+".action", nil, "must be set")
		case r.Cooldown < 0:
			add(r.Name+".cooldown", r.Cooldown, "must not be negative")
		}
		if _, dup := seen[r.Name]; dup && r.Name != "" {
			add("name", r.Name, "duplicate rule name")
		}
		seen[r.Name] = struct{}{}
	}
	if len(problems) > 0 {
		return nil, errors.New().WithData(errors.ErrInvalidRule, problems)
	}

	e := &Engine{
		rules:       append([]Rule(nil), rules...),
		maxActions:  maxActionsPerCycle,
		log:         logger.Default(),
		lastApplied: make(map[string]time.Time, len(rules)),
		counts:      make(map[string]uint64, len(rules)),
		failures:    make(map[string]uint64, len(rules)),
	}
	sort.SliceStable(e.rules, func(i, j int) bool {
		if e.rules[i].Priority != e.rules[j].Priority {
			return e.rules[i].Priority < e.rules[j].Priority
		}
		return e.rules[i].Name < e.rules[j].Name
	})

	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("rules")

	return e, nil
}

// Tick applies eligible rules. A rule is eligible when its condition holds
// and its cooldown has elapsed. Once maxActions rules have been applied the
// rest are deferred to a later tick. A failing action is logged and counted,
// its cooldown still starts, and the tick continues with the next rule.
func (e *Engine) Tick(ctx context.Context, now time.Time, stats sampler.Stats, board Scoreboard) []AppliedAction {
	var applied []AppliedAction

	for _, r := range e.rules {
		if last, ok := e.lastApplied[r.Name]; ok && now.Sub(last) < r.Cooldown {
			continue
		}
		if !r.Condition(stats, board) {
			continue
		}
		if len(applied) >= e.maxActions {
			e.log.Debug().Str("rule", r.Name).Msg("Rule deferred, action budget spent")
			continue
		}

		err := r.Action(ctx)
		e.lastApplied[r.Name] = now
		e.counts[r.Name]++

		if err != nil {
			e.failures[r.Name]++
			e.log.Error().Err(err).Str("rule", r.Name).Msg("Rule action failed")
		} else {
			e.log.Info().Str("rule", r.Name).Int("priority", r.Priority).Msg("Rule applied")
		}

		applied = append(applied, AppliedAction{
			Rule:    r.Name,
			At:      now,
			Handles: r.Handles,
			Err:     err,
		})
	}

	return applied
}

// Rules returns rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Counts returns how often each rule has been applied, failures included.
func (e *Engine) Counts() map[string]uint64 {
	return copyCounts(e.counts)
}

// Failures returns how often each rule's action has failed.
func (e *Engine) Failures() map[string]uint64 {
	return copyCounts(e.failures)
}

func (e *Engine) LastApplied(name string) (time.Time, bool) {
	t, ok := e.lastApplied[name]
	return t, ok
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
