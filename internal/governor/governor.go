package governor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/profile"
	"codeberg.org/mutker/framegov/internal/rules"
	"codeberg.org/mutker/framegov/internal/sampler"
	"codeberg.org/mutker/framegov/internal/telemetry"
	"codeberg.org/mutker/framegov/internal/threshold"
)

// capabilitySource is implemented by providers that know static hardware
// capabilities.
type capabilitySource interface {
	Capabilities() (pacer.Capabilities, error)
}

// TickResult is everything one tick produced.
type TickResult struct {
	Tick       uint64
	Now        time.Time
	Sample     sampler.Sample
	Score      pacer.Score
	State      pacer.State
	Transition *pacer.Transition
	Alerts     []threshold.Alert
	Resolved   []threshold.Alert
	Actions    []rules.AppliedAction
	Report     *telemetry.Report
}

// Governor owns every component and runs the fixed per-tick pipeline:
// sample, evaluate and pace, apply rules, report. Tick must be driven by a
// single loop; Snapshot may be read from anywhere.
type Governor struct {
	cfg Config
	log logger.Logger

	sampler   *sampler.Sampler
	evaluator *threshold.Evaluator
	alerts    *threshold.Log
	engine    *rules.Engine
	store     *profile.Store
	pacer     *pacer.Pacer
	reporter  *telemetry.Reporter
	tier      pacer.Tier

	mu    sync.Mutex
	clock time.Time
	ticks uint64
	seen  uint64

	latest atomic.Pointer[telemetry.Report]
}

type options struct {
	log   logger.Logger
	epoch time.Time
	caps  *pacer.Capabilities
}

// Option configures a Governor.
type Option func(*options)

func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithEpoch sets the starting point of the internal clock.
func WithEpoch(t time.Time) Option {
	return func(o *options) { o.epoch = t }
}

// WithCapabilities overrides capability discovery through the provider.
func WithCapabilities(caps pacer.Capabilities) Option {
	return func(o *options) { o.caps = &caps }
}

// New validates cfg and builds every component. This is the only place a
// misconfiguration fails hard.
func New(cfg Config, provider sampler.Provider, applier profile.Applier, opts ...Option) (*Governor, error) {
	errFactory := errors.New()

	o := options{log: logger.Default(), epoch: time.Now()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log

	if provider == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "counter provider is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	caps := discover(provider, o.caps, log)
	tier := pacer.ClassifyTier(caps, cfg.Tiers)

	initial := cfg.InitialProfile
	if initial == "" {
		initial = profileForLevel(cfg.Profiles, tier.InitialLevel)
	}
	store, err := profile.NewStore(cfg.Profiles, applier,
		profile.WithInitial(initial),
		profile.WithFloor(tier.FloorLevel),
		profile.WithLogger(log))
	if err != nil {
		return nil, err
	}

	evaluator, err := threshold.New(cfg.Thresholds,
		threshold.WithHysteresis(cfg.Hysteresis),
		threshold.WithLogger(log))
	if err != nil {
		return nil, err
	}

	p, err := pacer.New(cfg.Pacer, tier, pacer.WithLogger(log))
	if err != nil {
		return nil, err
	}

	built, err := rules.Build(cfg.Rules, store)
	if err != nil {
		return nil, err
	}
	engine, err := rules.NewEngine(built, cfg.MaxActionsPerCycle, rules.WithLogger(log))
	if err != nil {
		return nil, err
	}

	s := sampler.New(sampler.Config{HistorySize: cfg.HistorySize, Cadence: cfg.Cadence}, provider,
		sampler.WithLogger(log))
	alerts := threshold.NewLog(cfg.AlertRetention, cfg.MaxAlerts)
	reporter := telemetry.NewReporter(telemetry.Sources{
		Samples:  s,
		Alerts:   alerts,
		Profiles: store,
		Pacer:    p,
		Rules:    engine,
	})

	g := &Governor{
		cfg:       cfg,
		log:       log.With("governor"),
		sampler:   s,
		evaluator: evaluator,
		alerts:    alerts,
		engine:    engine,
		store:     store,
		pacer:     p,
		reporter:  reporter,
		tier:      tier,
		clock:     o.epoch,
	}

	g.log.Info().
		Str("tier", tier.Name).
		Float64("target_fps", p.Status().TargetFPS).
		Str("profile", store.Current().ID).
		Str("floor", store.Floor().ID).
		Int("thresholds", len(cfg.Thresholds)).
		Strs("rules", engine.Rules()).
		Msg("Governor initialized")

	return g, nil
}

func discover(provider sampler.Provider, override *pacer.Capabilities, log logger.Logger) pacer.Capabilities {
	if override != nil {
		return *override
	}

	src, ok := provider.(capabilitySource)
	if !ok {
		return pacer.Capabilities{}
	}

	caps, err := src.Capabilities()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read device capabilities, assuming lowest tier")
		return pacer.Capabilities{}
	}

	return caps
}

// profileForLevel picks the highest profile at or below level, or the
// lowest profile when none is.
func profileForLevel(profiles []profile.QualityProfile, level int) string {
	var (
		best   string
		bestLv int
		lowest string
		lowLv  int
	)
	for i, p := range profiles {
		if i == 0 || p.Level < lowLv {
			lowest, lowLv = p.ID, p.Level
		}
		if p.Level <= level && (best == "" || p.Level > bestLv) {
			best, bestLv = p.ID, p.Level
		}
	}
	if best == "" {
		return lowest
	}
	return best
}

// Sync pushes the active profile to the renderer.
func (g *Governor) Sync(ctx context.Context) error {
	return g.store.Reapply(ctx)
}

// Tick advances the internal clock by frame, the host's measured frame
// interval, and runs one pass of the pipeline.
func (g *Governor) Tick(ctx context.Context, frame time.Duration) TickResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame > 0 {
		g.clock = g.clock.Add(frame)
	}
	g.ticks++
	now := g.clock

	res := TickResult{Tick: g.ticks, Now: now}

	res.Sample = g.sampler.Sample(now, frame)
	stats := g.sampler.Stats()

	if due(g.ticks, g.cfg.EvaluateEvery) {
		res.Resolved, res.Alerts = g.evaluate(now, stats)
	}

	res.Score = g.pacer.Update(now, res.Sample, stats)
	res.State = g.pacer.State()
	if n := g.pacer.TransitionCount(); n != g.seen {
		g.seen = n
		if t, ok := g.pacer.Transition(); ok {
			res.Transition = &t
		}
	}

	board := rules.Scoreboard{
		Score:   res.Score,
		State:   res.State,
		Pending: g.pacer.Pending(),
		Alerts:  g.alerts.Unresolved(),
		Profile: g.store.Current(),
	}
	res.Actions = g.engine.Tick(ctx, now, stats, board)
	for _, a := range res.Actions {
		if !a.Failed() && a.Handles != pacer.None {
			g.pacer.Acknowledge(a.Handles)
		}
	}

	if due(g.ticks, g.cfg.ReportEvery) {
		res.Report = g.reporter.Snapshot(now, g.ticks, stats)
		g.latest.Store(res.Report)
	}

	return res
}

func (g *Governor) evaluate(now time.Time, stats sampler.Stats) (resolved, fired []threshold.Alert) {
	updated := g.evaluator.Resolve(g.alerts.Unresolved(), stats, now)
	for _, a := range updated {
		if a.Resolved {
			resolved = append(resolved, a)
		}
	}
	g.alerts.Replace(resolved)

	fired = g.evaluator.Evaluate(now, stats)
	g.alerts.Add(fired...)

	if n := g.alerts.Prune(now); n > 0 {
		g.log.Debug().Int("pruned", n).Msg("Alert log pruned")
	}

	return resolved, fired
}

func due(tick uint64, every int) bool {
	return every <= 1 || (tick-1)%uint64(every) == 0
}

// Snapshot returns the latest report, or nil before the first one.
func (g *Governor) Snapshot() *telemetry.Report {
	return g.latest.Load()
}

// Report builds a fresh report outside the reporting cadence.
func (g *Governor) Report() *telemetry.Report {
	g.mu.Lock()
	defer g.mu.Unlock()

	report := g.reporter.Snapshot(g.clock, g.ticks, g.sampler.Stats())
	g.latest.Store(report)

	return report
}

// Alerts returns every retained alert, resolved ones included.
func (g *Governor) Alerts() []threshold.Alert {
	return g.alerts.Alerts()
}

func (g *Governor) Profile() profile.QualityProfile {
	return g.store.Current()
}

func (g *Governor) PacerStatus() pacer.Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.pacer.Status()
}

func (g *Governor) Tier() pacer.Tier {
	return g.tier
}

// Now is the internal clock.
func (g *Governor) Now() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.clock
}
