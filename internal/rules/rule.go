package rules

import (
	"context"
	"time"

	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/profile"
	"codeberg.org/mutker/framegov/internal/sampler"
	"codeberg.org/mutker/framegov/internal/threshold"
)

// Scoreboard is the read-only view of the tick rules decide on.
type Scoreboard struct {
	Score   pacer.Score
	State   pacer.State
	Pending pacer.Recommendation
	Alerts  []threshold.Alert
	Profile profile.QualityProfile
}

// HasUnresolved reports whether an unresolved alert of severity is present.
func (b Scoreboard) HasUnresolved(severity threshold.Severity) bool {
	for _, a := range b.Alerts {
		if !a.Resolved && a.Severity == severity {
			return true
		}
	}
	return false
}

// Condition decides whether a rule applies this tick.
type Condition func(stats sampler.Stats, board Scoreboard) bool

// Action mutates the quality profile.
type Action func(ctx context.Context) error

// Rule pairs a condition with an action. Lower Priority runs first.
type Rule struct {
	Name      string
	Priority  int
	Cooldown  time.Duration
	Condition Condition
	Action    Action
	// Handles is the pacer recommendation this rule answers, if any.
	Handles pacer.Recommendation
}

// AppliedAction records one rule application in a tick.
type AppliedAction struct {
	Rule    string
	At      time.Time
	Handles pacer.Recommendation
	Err     error
}

func (a AppliedAction) Failed() bool {
	return a.Err != nil
}
