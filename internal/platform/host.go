package platform

import (
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/sampler"
)

// Host reads process-independent CPU and memory counters from the OS.
// Foreground and charging state are set by the embedding application.
type Host struct {
	percent func() ([]float64, error)
	vmem    func() (*mem.VirtualMemoryStat, error)
	cores   func() (int, error)

	background atomic.Bool
	charging   atomic.Bool
}

func NewHost() *Host {
	return &Host{
		// Zero interval compares against the previous call.
		percent: func() ([]float64, error) { return cpu.Percent(0, false) },
		vmem:    mem.VirtualMemory,
		cores:   func() (int, error) { return cpu.Counts(true) },
	}
}

func (h *Host) Counter(m sampler.Metric) (float64, bool) {
	switch m {
	case sampler.MetricCPU:
		pct, err := h.percent()
		if err != nil || len(pct) == 0 {
			return 0, false
		}
		return pct[0], true
	case sampler.MetricMemory:
		vm, err := h.vmem()
		if err != nil || vm == nil {
			return 0, false
		}
		return float64(vm.Used), true
	default:
		return 0, false
	}
}

func (h *Host) Foreground() bool { return !h.background.Load() }
func (h *Host) Charging() bool   { return h.charging.Load() }

func (h *Host) SetForeground(foreground bool) { h.background.Store(!foreground) }
func (h *Host) SetCharging(charging bool)     { h.charging.Store(charging) }

// Capabilities reports total memory and logical core count.
func (h *Host) Capabilities() (pacer.Capabilities, error) {
	errFactory := errors.New()

	vm, err := h.vmem()
	if err != nil {
		return pacer.Capabilities{}, errFactory.Wrap(ErrHostInfoFailed, err)
	}
	cores, err := h.cores()
	if err != nil {
		return pacer.Capabilities{}, errFactory.Wrap(ErrHostInfoFailed, err)
	}

	return pacer.Capabilities{MemoryBytes: vm.Total, Cores: cores}, nil
}
