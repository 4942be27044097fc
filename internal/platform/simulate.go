package platform

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/sampler"
)

const (
	paramRenderScale = "render_scale"
	gib              = 1 << 30
)

// SimConfig shapes the synthetic load.
type SimConfig struct {
	TargetFPS float64
	// Period of one full load cycle.
	Period time.Duration
	// Amplitude of the load swing in [0, 1].
	Amplitude float64
	Seed      int64
}

// Simulator stands in for a game host. Load follows a sine wave, and the
// render_scale parameter it receives as a profile Applier lowers frame cost,
// closing the loop for local runs.
type Simulator struct {
	*Static

	cfg     SimConfig
	mu      sync.Mutex
	elapsed time.Duration
	scale   float64
	rng     *rand.Rand
}

func NewSimulator(cfg SimConfig) *Simulator {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.Period <= 0 {
		cfg.Period = 30 * time.Second
	}
	cfg.Amplitude = math.Min(math.Max(cfg.Amplitude, 0), 1)

	s := &Simulator{
		Static: NewStatic(map[sampler.Metric]float64{
			sampler.MetricMemory:    2 * gib,
			sampler.MetricBattery:   100,
			sampler.MetricThermal:   0,
			sampler.MetricDrawCalls: 0,
			sampler.MetricTriangles: 0,
		}),
		cfg:   cfg,
		scale: 1,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
	s.SetCharging(true)
	s.SetCapabilities(pacer.Capabilities{MemoryBytes: 16 * gib, Cores: 8, GPUMemoryBytes: 8 * gib})

	return s
}

// Frame advances the simulation by dt and returns the frame interval the
// simulated renderer achieved.
func (s *Simulator) Frame(dt time.Duration) time.Duration {
	s.mu.Lock()
	s.elapsed += dt
	phase := 2 * math.Pi * float64(s.elapsed) / float64(s.cfg.Period)
	load := 0.5 + 0.5*s.cfg.Amplitude*math.Sin(phase)
	scale := s.scale
	jitter := 1 + 0.05*(s.rng.Float64()-0.5)
	base := float64(time.Second) / s.cfg.TargetFPS
	s.mu.Unlock()

	cost := (0.5 + load) * (0.4 + 0.6*scale)

	s.Set(sampler.MetricCPU, 20+70*load)
	s.Set(sampler.MetricGPU, math.Min(100, 30+65*load*scale))
	s.Set(sampler.MetricDrawCalls, math.Round(1500*scale*(0.5+load)))
	s.Set(sampler.MetricTriangles, math.Round(400000*scale*scale*(0.5+load)))
	s.Set(sampler.MetricTextureMemory, 512*(1<<20)*scale)

	return time.Duration(base * cost * jitter)
}

// SetTargetFPS retargets the simulated renderer. Non-positive values are
// ignored.
func (s *Simulator) SetTargetFPS(fps float64) {
	if fps <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.TargetFPS = fps
}

// ApplyParameter records render_scale; other parameters are accepted and
// ignored.
func (s *Simulator) ApplyParameter(_ context.Context, name string, value float64) error {
	if name != paramRenderScale {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scale = math.Min(math.Max(value, 0.1), 2)

	return nil
}
