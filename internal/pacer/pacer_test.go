package pacer

import (
	"testing"
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newPacer(t *testing.T) *Pacer {
	t.Helper()

	p, err := New(DefaultConfig(), Tier{Name: "test"}, WithLogger(logger.Nop()))
	require.NoError(t, err)

	return p
}

func foreground(frame time.Duration) sampler.Sample {
	return sampler.Sample{FrameTime: frame, Foreground: true}
}

// drive feeds constant frames until until has elapsed and returns the new
// clock.
func drive(p *Pacer, now time.Time, frame time.Duration, until time.Duration, stats sampler.Stats) time.Time {
	end := now.Add(until)
	for ; now.Before(end); now = now.Add(frame) {
		p.Update(now, foreground(frame), stats)
	}
	return now
}

func TestSustainedSlowFramesDegradeOnce(t *testing.T) {
	p := newPacer(t)

	drive(p, epoch, 33*time.Millisecond, 1500*time.Millisecond, nil)

	transitions := p.Transitions()
	require.Len(t, transitions, 1)
	assert.Equal(t, Nominal, transitions[0].From)
	assert.Equal(t, Degraded, transitions[0].To)
	assert.Equal(t, Reduce, transitions[0].Recommendation)
	assert.GreaterOrEqual(t, transitions[0].At.Sub(epoch), time.Second)
	assert.Less(t, float64(p.Score()), 0.75)
	assert.Equal(t, Reduce, p.Pending())
}

func TestContinuedSlowFramesThrottle(t *testing.T) {
	p := newPacer(t)

	drive(p, epoch, 33*time.Millisecond, 2500*time.Millisecond, nil)

	var path []State
	for _, tr := range p.Transitions() {
		path = append(path, tr.To)
		assert.Equal(t, Reduce, tr.Recommendation)
	}
	assert.Equal(t, []State{Degraded, Throttled}, path)
}

func TestSingleSlowSampleNeverTransitions(t *testing.T) {
	p := newPacer(t)

	now := drive(p, epoch, 16*time.Millisecond, time.Second, nil)
	p.Update(now, foreground(200*time.Millisecond), nil)
	drive(p, now.Add(16*time.Millisecond), 16*time.Millisecond, 2*time.Second, nil)

	assert.Equal(t, Nominal, p.State())
	assert.Empty(t, p.Transitions())
}

func TestAlternatingFramesDoNotFlap(t *testing.T) {
	p := newPacer(t)

	now := epoch
	for i := 0; i < 1000; i++ {
		frame := 10 * time.Millisecond
		if i%2 == 1 {
			frame = 30 * time.Millisecond
		}
		p.Update(now, foreground(frame), nil)
		now = now.Add(frame)
	}

	assert.Empty(t, p.Transitions())
	assert.Equal(t, Nominal, p.State())
	assert.InDelta(t, 20, p.Status().SmoothedFrameMs, 1.5)
	assert.Greater(t, float64(p.Score()), 0.75)
	assert.Less(t, float64(p.Score()), 0.9)
}

func TestRecoveryIsSlowerThanDegradation(t *testing.T) {
	p := newPacer(t)
	cfg := DefaultConfig()

	now := epoch
	for p.State() != Degraded {
		p.Update(now, foreground(33*time.Millisecond), nil)
		now = now.Add(33 * time.Millisecond)
		require.True(t, now.Sub(epoch) < 5*time.Second, "never degraded")
	}
	degradedAfter := now.Sub(epoch)

	good := now
	for p.State() != Nominal {
		p.Update(now, foreground(16*time.Millisecond), nil)
		now = now.Add(16 * time.Millisecond)
		require.True(t, now.Sub(good) < 15*time.Second, "never recovered")
	}
	recoveredAfter := now.Sub(good)

	assert.GreaterOrEqual(t, recoveredAfter, 2*cfg.RecoverDwell, "both recovery steps wait a full recover dwell")
	assert.Greater(t, recoveredAfter, degradedAfter)

	var path []State
	var recs []Recommendation
	for _, tr := range p.Transitions() {
		path = append(path, tr.To)
		recs = append(recs, tr.Recommendation)
	}
	assert.Equal(t, []State{Degraded, Recovering, Nominal}, path)
	assert.Equal(t, []Recommendation{Reduce, Increase, Increase}, recs)
}

func TestNoIncreaseBeforeRecoverDwell(t *testing.T) {
	p := newPacer(t)
	cfg := DefaultConfig()

	now := drive(p, epoch, 33*time.Millisecond, 1100*time.Millisecond, nil)
	require.Equal(t, Degraded, p.State())

	var highSince time.Time
	for i := 0; i < 500 && p.State() == Degraded; i++ {
		p.Update(now, foreground(16*time.Millisecond), nil)
		if highSince.IsZero() && float64(p.Score()) > cfg.HighBand {
			highSince = now
		}
		if p.State() == Degraded {
			assert.NotEqual(t, Increase, p.Pending(), "increase after %s of high score", now.Sub(highSince))
		}
		now = now.Add(16 * time.Millisecond)
	}

	require.Equal(t, Recovering, p.State())
	require.False(t, highSince.IsZero())
	last, ok := p.Transition()
	require.True(t, ok)
	assert.Equal(t, Increase, last.Recommendation)
	assert.GreaterOrEqual(t, last.At.Sub(highSince), cfg.RecoverDwell)
}

func TestSwingingLoadDoesNotOscillate(t *testing.T) {
	p := newPacer(t)

	now := epoch
	for phase := 0; phase < 12; phase++ {
		frame := 33 * time.Millisecond
		if phase%2 == 1 {
			frame = 16 * time.Millisecond
		}
		now = drive(p, now, frame, 1600*time.Millisecond, nil)
	}

	var recs []Recommendation
	for _, tr := range p.Transitions() {
		recs = append(recs, tr.Recommendation)
	}
	assert.NotContains(t, recs, Increase)
	assert.Equal(t, []Recommendation{Reduce, Reduce}, recs)
	assert.Equal(t, Throttled, p.State())
}

func TestRelapseDuringRecovery(t *testing.T) {
	p := newPacer(t)

	now := drive(p, epoch, 33*time.Millisecond, 1100*time.Millisecond, nil)
	require.Equal(t, Degraded, p.State())

	for p.State() != Recovering {
		p.Update(now, foreground(16*time.Millisecond), nil)
		now = now.Add(16 * time.Millisecond)
	}

	for p.State() == Recovering {
		p.Update(now, foreground(40*time.Millisecond), nil)
		now = now.Add(40 * time.Millisecond)
	}

	last, ok := p.Transition()
	require.True(t, ok)
	assert.Equal(t, Recovering, last.From)
	assert.Equal(t, Degraded, last.To)
	assert.Equal(t, Reduce, last.Recommendation)
}

func TestBatteryCriticalForcesFloor(t *testing.T) {
	p := newPacer(t)
	low := sampler.Stats{sampler.MetricBattery: {Current: 5, Available: true}}

	p.Update(epoch, foreground(16*time.Millisecond), low)

	assert.Equal(t, Throttled, p.State())
	assert.Equal(t, Floor, p.Pending())
	assert.True(t, p.Status().Forced)

	p.Update(epoch.Add(time.Second), foreground(16*time.Millisecond), low)
	assert.Len(t, p.Transitions(), 1, "a held forced condition emits once")

	charging := sampler.Sample{FrameTime: 16 * time.Millisecond, Foreground: true, Charging: true}
	p.Update(epoch.Add(2*time.Second), charging, low)

	last, _ := p.Transition()
	assert.Equal(t, Degraded, last.To)
	assert.Equal(t, None, last.Recommendation)
	assert.False(t, p.Status().Forced)
}

func TestThermalForcesThrottle(t *testing.T) {
	p := newPacer(t)
	hot := sampler.Stats{sampler.MetricThermal: {Current: 1, Available: true}}

	p.Update(epoch, foreground(16*time.Millisecond), hot)

	last, ok := p.Transition()
	require.True(t, ok)
	assert.Equal(t, Nominal, last.From)
	assert.Equal(t, Throttled, last.To)
	assert.Equal(t, Floor, last.Recommendation)
	assert.Equal(t, "thermal throttling", last.Reason)
}

func TestUnavailableBatteryIsIgnored(t *testing.T) {
	p := newPacer(t)
	missing := sampler.Stats{sampler.MetricBattery: {Current: 0, Available: false}}

	p.Update(epoch, foreground(16*time.Millisecond), missing)

	assert.Equal(t, Nominal, p.State())
}

func TestBackgroundFreezesStateMachine(t *testing.T) {
	p := newPacer(t)
	cfg := DefaultConfig()

	now := epoch
	for i := 0; i < 200; i++ {
		p.Update(now, sampler.Sample{FrameTime: 500 * time.Millisecond}, nil)
		now = now.Add(500 * time.Millisecond)
	}

	status := p.Status()
	assert.True(t, status.Background)
	assert.Equal(t, cfg.BackgroundFPS, status.TargetFPS)
	assert.Equal(t, Nominal, p.State())
	assert.Empty(t, p.Transitions())

	p.Update(now, foreground(16*time.Millisecond), nil)
	assert.False(t, p.Status().Background)
	assert.Equal(t, cfg.TargetFPS, p.Status().TargetFPS)
	assert.InDelta(t, 16, p.Status().SmoothedFrameMs, 0.001, "background intervals are discarded")
}

func TestAcknowledgeClearsMatchingRecommendation(t *testing.T) {
	p := newPacer(t)
	drive(p, epoch, 33*time.Millisecond, 1100*time.Millisecond, nil)
	require.Equal(t, Reduce, p.Pending())

	p.Acknowledge(Increase)
	assert.Equal(t, Reduce, p.Pending())

	p.Acknowledge(Reduce)
	assert.Equal(t, None, p.Pending())
}

func TestScoreRenormalizesAvailableInputs(t *testing.T) {
	tests := []struct {
		name  string
		stats sampler.Stats
		want  float64
	}{
		{
			name:  "no inputs keeps the initial score",
			stats: sampler.Stats{},
			want:  1,
		},
		{
			name:  "cpu only",
			stats: sampler.Stats{sampler.MetricCPU: {Current: 20, Available: true}},
			want:  0.8,
		},
		{
			name: "cpu and gpu share weight evenly",
			stats: sampler.Stats{
				sampler.MetricCPU: {Current: 20, Available: true},
				sampler.MetricGPU: {Current: 60, Available: true},
			},
			want: 0.6,
		},
		{
			name: "unavailable gpu drops out",
			stats: sampler.Stats{
				sampler.MetricCPU: {Current: 20, Available: true},
				sampler.MetricGPU: {Current: 0, Available: false},
			},
			want: 0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPacer(t)
			score := p.Update(epoch, foreground(0), tt.stats)
			assert.InDelta(t, tt.want, float64(score), 1e-9)
		})
	}
}

func TestScoreIncludesMemoryAgainstBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryBudget = 1000
	cfg.Weights = Weights{Memory: 1}

	p, err := New(cfg, Tier{}, WithLogger(logger.Nop()))
	require.NoError(t, err)

	score := p.Update(epoch, foreground(0), sampler.Stats{sampler.MetricMemory: {Current: 750, Available: true}})
	assert.InDelta(t, 0.25, float64(score), 1e-9)
}

func TestTierSeedsTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetFPS = 0

	p, err := New(cfg, Tier{Name: "low", TargetFPS: 30}, WithLogger(logger.Nop()))
	require.NoError(t, err)

	assert.Equal(t, 30.0, p.Status().TargetFPS)
	assert.Equal(t, "low", p.Status().Tier)

	// 33ms frames meet a 30 FPS target.
	drive(p, epoch, 33*time.Millisecond, 2*time.Second, nil)
	assert.Equal(t, Nominal, p.State())
}

func TestConfiguredTargetOverridesTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetFPS = 120

	p, err := New(cfg, Tier{Name: "high", TargetFPS: 60}, WithLogger(logger.Nop()))
	require.NoError(t, err)
	assert.Equal(t, 120.0, p.Status().TargetFPS)
}

func TestNoTargetWithoutTierIsRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetFPS = 0

	_, err := New(cfg, Tier{Name: "bare"}, WithLogger(logger.Nop()))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidPacer))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{name: "recover not slower than degrade", mod: func(c *Config) { c.RecoverDwell = c.DegradeDwell }},
		{name: "inverted bands", mod: func(c *Config) { c.LowBand, c.HighBand = 0.9, 0.75 }},
		{name: "zero dwell", mod: func(c *Config) { c.DegradeDwell = 0 }},
		{name: "smoothing out of range", mod: func(c *Config) { c.Smoothing = 1.5 }},
		{name: "zero weights", mod: func(c *Config) { c.Weights = Weights{} }},
		{name: "negative weight", mod: func(c *Config) { c.Weights.CPU = -1 }},
		{name: "negative target", mod: func(c *Config) { c.TargetFPS = -1 }},
		{name: "battery over 100", mod: func(c *Config) { c.BatteryCritical = 120 }},
	}

	require.NoError(t, DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidPacer))
		})
	}
}

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want string
	}{
		{name: "nothing known", caps: Capabilities{}, want: "low"},
		{name: "mid phone", caps: Capabilities{MemoryBytes: 6 * gib, Cores: 8}, want: "medium"},
		{name: "desktop", caps: Capabilities{MemoryBytes: 32 * gib, Cores: 16, GPUMemoryBytes: 8 * gib}, want: "high"},
		{name: "no dedicated gpu memory", caps: Capabilities{MemoryBytes: 32 * gib, Cores: 16}, want: "medium"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTier(tt.caps, nil).Name)
		})
	}
}
