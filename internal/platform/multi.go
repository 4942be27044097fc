package platform

import (
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/sampler"
)

// Multi merges providers. Each counter comes from the first provider that
// supplies it; foreground and charging come from the first provider.
type Multi struct {
	providers []sampler.Provider
}

func NewMulti(primary sampler.Provider, rest ...sampler.Provider) *Multi {
	return &Multi{providers: append([]sampler.Provider{primary}, rest...)}
}

func (m *Multi) Counter(metric sampler.Metric) (float64, bool) {
	for _, p := range m.providers {
		if v, ok := p.Counter(metric); ok {
			return v, true
		}
	}
	return 0, false
}

func (m *Multi) Foreground() bool { return m.providers[0].Foreground() }
func (m *Multi) Charging() bool   { return m.providers[0].Charging() }

// CapabilitySource reports static hardware capabilities.
type CapabilitySource interface {
	Capabilities() (pacer.Capabilities, error)
}

// Capabilities merges every provider that reports capabilities, keeping the
// largest value per field. Failing sources are logged and skipped.
func (m *Multi) Capabilities() (pacer.Capabilities, error) {
	var caps pacer.Capabilities

	for _, p := range m.providers {
		src, ok := p.(CapabilitySource)
		if !ok {
			continue
		}

		c, err := src.Capabilities()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read device capabilities")
			continue
		}

		caps.MemoryBytes = max(caps.MemoryBytes, c.MemoryBytes)
		caps.Cores = max(caps.Cores, c.Cores)
		caps.GPUMemoryBytes = max(caps.GPUMemoryBytes, c.GPUMemoryBytes)
	}

	return caps, nil
}
