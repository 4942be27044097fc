package platform

import (
	"sync"

	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/sampler"
)

// Static is a settable Provider for tests, simulation and hosts that push
// their own counters.
type Static struct {
	mu         sync.RWMutex
	values     map[sampler.Metric]float64
	background bool
	charging   bool
	caps       pacer.Capabilities
}

func NewStatic(values map[sampler.Metric]float64) *Static {
	s := &Static{values: make(map[sampler.Metric]float64, len(values))}
	for m, v := range values {
		s.values[m] = v
	}
	return s
}

func (s *Static) Counter(m sampler.Metric) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[m]
	return v, ok
}

func (s *Static) Set(m sampler.Metric, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[m] = v
}

// Unset makes m unavailable.
func (s *Static) Unset(m sampler.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, m)
}

func (s *Static) Foreground() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return !s.background
}

func (s *Static) Charging() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.charging
}

func (s *Static) SetForeground(foreground bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.background = !foreground
}

func (s *Static) SetCharging(charging bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.charging = charging
}

func (s *Static) SetCapabilities(caps pacer.Capabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.caps = caps
}

func (s *Static) Capabilities() (pacer.Capabilities, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.caps, nil
}
