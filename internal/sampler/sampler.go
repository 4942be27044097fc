package sampler

import (
	"time"

	"codeberg.org/mutker/framegov/internal/logger"
)

const (
	defaultHistorySize = 120
	nsPerMillisecond   = float64(time.Millisecond)
)

// Config controls the history window and per-metric polling cadence.
type Config struct {
	HistorySize int
	// Cadence polls a metric only every Nth cycle and reuses the cached value
	// in between. Zero or one means every cycle.
	Cadence map[Metric]int
}

type cachedCounter struct {
	value float64
	ok    bool
	set   bool
}

// Sampler polls a Provider once per cycle and keeps a bounded sample history.
type Sampler struct {
	cfg      Config
	provider Provider
	log      logger.Logger

	history  *ring[Sample]
	cache    map[Metric]cachedCounter
	reported map[Metric]struct{}
	notes    []Metric
	cycle    uint64
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger used for missing-counter notes.
func WithLogger(log logger.Logger) Option {
	return func(s *Sampler) { s.log = log }
}

// New creates a Sampler reading from provider.
func New(cfg Config, provider Provider, opts ...Option) *Sampler {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}

	s := &Sampler{
		cfg:      cfg,
		provider: provider,
		log:      logger.Default(),
		history:  newRing[Sample](cfg.HistorySize),
		cache:    make(map[Metric]cachedCounter, len(allMetrics)),
		reported: make(map[Metric]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("sampler")

	return s
}

// Sample reads the current cycle and appends it to the history, evicting the
// oldest entry when the window is full. frame is the host's measured frame
// interval; a non-positive frame leaves the frame time metric unavailable.
func (s *Sampler) Sample(now time.Time, frame time.Duration) Sample {
	s.cycle++

	sample := Sample{
		Seq:        s.cycle,
		Timestamp:  now,
		FrameTime:  frame,
		Foreground: s.provider.Foreground(),
		Charging:   s.provider.Charging(),
		values:     make(map[Metric]float64, len(allMetrics)),
	}

	for _, m := range allMetrics {
		var (
			v  float64
			ok bool
		)

		if m == MetricFrameTime {
			v, ok = float64(frame)/nsPerMillisecond, frame > 0
		} else {
			v, ok = s.poll(m)
		}

		if !ok {
			v = 0
			if sample.missing == nil {
				sample.missing = make(map[Metric]struct{})
			}
			sample.missing[m] = struct{}{}
			s.noteMissing(m)
		}
		sample.values[m] = v
	}

	s.history.push(sample)

	return sample
}

func (s *Sampler) poll(m Metric) (float64, bool) {
	cached := s.cache[m]
	if cached.set && !s.due(m) {
		return cached.value, cached.ok
	}

	v, ok := s.provider.Counter(m)
	s.cache[m] = cachedCounter{value: v, ok: ok, set: true}

	return v, ok
}

func (s *Sampler) due(m Metric) bool {
	every := s.cfg.Cadence[m]
	if every <= 1 {
		return true
	}

	return (s.cycle-1)%uint64(every) == 0
}

func (s *Sampler) noteMissing(m Metric) {
	if _, seen := s.reported[m]; seen {
		return
	}
	s.reported[m] = struct{}{}
	s.notes = append(s.notes, m)

	s.log.Info().
		Str("metric", m.String()).
		Msg("Platform counter unavailable, reporting sentinel 0")
}

// History returns the window oldest first. The slice is a copy.
func (s *Sampler) History() []Sample {
	return s.history.items()
}

// Last returns the most recent sample.
func (s *Sampler) Last() (Sample, bool) {
	return s.history.last()
}

// Stats recomputes every metric's aggregate over the current window.
func (s *Sampler) Stats() Stats {
	return computeStats(s.history)
}

// Notes lists metrics that have been unavailable at least once, in the order first seen.
func (s *Sampler) Notes() []Metric {
	out := make([]Metric, len(s.notes))
	copy(out, s.notes)

	return out
}

// Len returns the number of samples in the window.
func (s *Sampler) Len() int {
	return s.history.len()
}

// Capacity returns the configured window size.
func (s *Sampler) Capacity() int {
	return s.history.capacity()
}
