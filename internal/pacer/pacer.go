package pacer

import (
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/sampler"
)

const (
	maxTransitions   = 64
	nsPerMillisecond = float64(time.Millisecond)
)

// run tracks how long the score has stayed on one side of a band.
type run struct {
	since  time.Time
	active bool
}

func (r *run) mark(now time.Time) {
	if !r.active {
		r.since = now
		r.active = true
	}
}

func (r *run) reset() {
	r.active = false
}

func (r *run) restart(now time.Time) {
	r.since = now
	r.active = true
}

func (r run) lasted(now time.Time, d time.Duration) bool {
	return r.active && now.Sub(r.since) >= d
}

// Pacer scores achieved frame pacing and drives the Nominal, Degraded,
// Throttled, Recovering state machine. It is not safe for concurrent use.
type Pacer struct {
	cfg  Config
	tier Tier
	log  logger.Logger

	baseTarget float64
	target     float64

	primed   bool
	smoothed float64
	variance float64
	score    Score

	state      State
	low        run
	high       run
	background bool
	forced     bool
	pending    Recommendation

	transitions []Transition
	count       uint64
}

// Option configures a Pacer.
type Option func(*Pacer)

func WithLogger(log logger.Logger) Option {
	return func(p *Pacer) { p.log = log }
}

// New validates cfg and builds a Pacer. A zero cfg.TargetFPS is seeded from
// the tier target; an explicit value always wins.
func New(cfg Config, tier Tier, opts ...Option) (*Pacer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TargetFPS == 0 {
		cfg.TargetFPS = tier.TargetFPS
	}
	if cfg.TargetFPS <= 0 {
		return nil, errors.New().WithData(errors.ErrInvalidPacer, errors.FieldErrors{{
			Field: "target_fps", Value: cfg.TargetFPS, Reason: "must be positive or seeded by a tier",
		}})
	}

	p := &Pacer{
		cfg:        cfg,
		tier:       tier,
		log:        logger.Default(),
		baseTarget: cfg.TargetFPS,
		target:     cfg.TargetFPS,
		score:      1,
		state:      Nominal,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("pacer")

	return p, nil
}

// Update folds one sample into the smoothed frame interval, recomputes the
// score and advances the state machine. Battery and thermal conditions force
// Throttled regardless of score; backgrounding switches to the background
// frame rate and freezes the state machine until the app returns.
func (p *Pacer) Update(now time.Time, sample sampler.Sample, stats sampler.Stats) Score {
	p.follow(sample.Foreground)
	p.smooth(sample.FrameTime)
	p.score = p.compute(stats)

	if reason, forced := p.forcedBy(sample, stats); forced {
		if !p.forced {
			p.forced = true
			p.low.reset()
			p.high.reset()
			p.transition(now, Throttled, Floor, reason)
		}
		return p.score
	}
	if p.forced {
		p.forced = false
		p.transition(now, Degraded, None, "forced condition cleared")
	}

	if !p.background {
		p.step(now)
	}

	return p.score
}

// follow switches between the target and background frame rates.
func (p *Pacer) follow(foreground bool) {
	switch {
	case !foreground && !p.background:
		p.background = true
		p.target = p.cfg.BackgroundFPS
		p.low.reset()
		p.high.reset()
		p.log.Info().Float64("target_fps", p.target).Msg("Backgrounded, pacing at background frame rate")
	case foreground && p.background:
		p.background = false
		p.target = p.baseTarget
		// Background intervals would read as a huge slowdown.
		p.primed = false
		p.log.Info().Float64("target_fps", p.target).Msg("Foregrounded, target frame rate restored")
	}
}

func (p *Pacer) smooth(frame time.Duration) {
	if frame <= 0 {
		return
	}

	ms := float64(frame) / nsPerMillisecond
	if !p.primed {
		p.smoothed = ms
		p.variance = 0
		p.primed = true
		return
	}

	alpha := p.cfg.Smoothing
	diff := ms - p.smoothed
	p.smoothed += alpha * diff
	p.variance = (1 - alpha) * (p.variance + alpha*diff*diff)
}

func (p *Pacer) compute(stats sampler.Stats) Score {
	w := p.cfg.Weights

	var total, weight float64
	add := func(value, wt float64) {
		if wt <= 0 {
			return
		}
		total += clamp01(value) * wt
		weight += wt
	}

	if p.primed && p.smoothed > 0 {
		targetMs := 1000 / p.target
		add(targetMs/p.smoothed, w.Frame)
	}
	if st, ok := stats[sampler.MetricMemory]; ok && st.Available && p.cfg.MemoryBudget > 0 {
		add(1-st.Current/p.cfg.MemoryBudget, w.Memory)
	}
	if st, ok := stats[sampler.MetricCPU]; ok && st.Available {
		add(1-st.Current/100, w.CPU)
	}
	if st, ok := stats[sampler.MetricGPU]; ok && st.Available {
		add(1-st.Current/100, w.GPU)
	}

	if weight == 0 {
		return p.score
	}

	return Score(total / weight)
}

func (p *Pacer) forcedBy(sample sampler.Sample, stats sampler.Stats) (string, bool) {
	if st, ok := stats[sampler.MetricThermal]; ok && st.Available && st.Current >= 1 {
		return "thermal throttling", true
	}
	if st, ok := stats[sampler.MetricBattery]; ok && st.Available && !sample.Charging &&
		st.Current <= p.cfg.BatteryCritical {
		return "battery critical", true
	}

	return "", false
}

func (p *Pacer) step(now time.Time) {
	switch {
	case p.score < Score(p.cfg.LowBand):
		p.low.mark(now)
		p.high.reset()
	case p.score > Score(p.cfg.HighBand):
		p.high.mark(now)
		p.low.reset()
	default:
		p.low.reset()
		p.high.reset()
	}

	degrade := p.low.lasted(now, p.cfg.DegradeDwell)

	switch p.state {
	case Nominal:
		if degrade {
			p.low.restart(now)
			p.transition(now, Degraded, Reduce, "sustained low score")
		}
	case Degraded:
		switch {
		case degrade:
			p.low.restart(now)
			p.transition(now, Throttled, Reduce, "sustained low score")
		case p.high.lasted(now, p.cfg.RecoverDwell):
			p.high.restart(now)
			p.transition(now, Recovering, Increase, "score recovering")
		}
	case Throttled:
		if p.high.lasted(now, p.cfg.RecoverDwell) {
			p.high.restart(now)
			p.transition(now, Recovering, Increase, "score recovering")
		}
	case Recovering:
		switch {
		case degrade:
			p.low.restart(now)
			p.transition(now, Degraded, Reduce, "relapse during recovery")
		case p.high.lasted(now, p.cfg.RecoverDwell):
			p.high.reset()
			p.transition(now, Nominal, Increase, "sustained high score")
		}
	}
}

func (p *Pacer) transition(now time.Time, to State, rec Recommendation, reason string) {
	t := Transition{
		From:           p.state,
		To:             to,
		Recommendation: rec,
		Score:          p.score,
		At:             now,
		Reason:         reason,
	}
	p.state = to
	p.pending = rec
	p.count++

	if len(p.transitions) == maxTransitions {
		copy(p.transitions, p.transitions[1:])
		p.transitions = p.transitions[:maxTransitions-1]
	}
	p.transitions = append(p.transitions, t)

	p.log.Info().
		Str("from", t.From.String()).
		Str("to", t.To.String()).
		Str("recommendation", rec.String()).
		Float64("score", float64(p.score)).
		Str("reason", reason).
		Msg("Pacing state changed")
}

// State returns the current state.
func (p *Pacer) State() State {
	return p.state
}

// Score returns the last computed score.
func (p *Pacer) Score() Score {
	return p.score
}

// Pending returns the recommendation of the latest transition until it is
// acknowledged.
func (p *Pacer) Pending() Recommendation {
	return p.pending
}

// Acknowledge clears the pending recommendation if it equals rec.
func (p *Pacer) Acknowledge(rec Recommendation) {
	if p.pending == rec {
		p.pending = None
	}
}

// Transition returns the most recent transition.
func (p *Pacer) Transition() (Transition, bool) {
	if len(p.transitions) == 0 {
		return Transition{}, false
	}
	return p.transitions[len(p.transitions)-1], true
}

// TransitionCount counts every transition since construction, including those
// no longer retained.
func (p *Pacer) TransitionCount() uint64 {
	return p.count
}

// Transitions returns the retained transition log, oldest first.
func (p *Pacer) Transitions() []Transition {
	out := make([]Transition, len(p.transitions))
	copy(out, p.transitions)

	return out
}

func (p *Pacer) Tier() Tier {
	return p.tier
}

func (p *Pacer) Status() Status {
	return Status{
		State:           p.state,
		Score:           p.score,
		TargetFPS:       p.target,
		SmoothedFrameMs: p.smoothed,
		FrameVariance:   p.variance,
		Background:      p.background,
		Forced:          p.forced,
		Pending:         p.pending,
		Tier:            p.tier.Name,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
