package platform

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/shirou/gopsutil/v3/mem"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	util     nvml.Utilization
	memory   nvml.Memory
	temp     uint32
	slowdown uint32
	ret      nvml.Return
}

func (d *fakeDevice) GetName() (string, nvml.Return) { return "Fake RTX", nvml.SUCCESS }

func (d *fakeDevice) GetUtilizationRates() (nvml.Utilization, nvml.Return) { return d.util, d.ret }

func (d *fakeDevice) GetMemoryInfo() (nvml.Memory, nvml.Return) { return d.memory, d.ret }

func (d *fakeDevice) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	return d.temp, d.ret
}

func (d *fakeDevice) GetTemperatureThreshold(nvml.TemperatureThresholds) (uint32, nvml.Return) {
	if d.slowdown == 0 {
		return 0, nvml.ERROR_NOT_SUPPORTED
	}
	return d.slowdown, nvml.SUCCESS
}

type fakeController struct {
	device   *fakeDevice
	initErr  error
	shutdown int
}

func (c *fakeController) Initialize() error { return c.initErr }

func (c *fakeController) Shutdown() error {
	c.shutdown++
	return nil
}

func (c *fakeController) GetDevice(index int) (gpuDevice, error) {
	if c.device == nil || index != 0 {
		return nil, errors.New().New(ErrDeviceNotFound)
	}
	return c.device, nil
}

func TestNVMLCounters(t *testing.T) {
	dev := &fakeDevice{
		util:     nvml.Utilization{Gpu: 73},
		memory:   nvml.Memory{Total: 8 << 30, Used: 3 << 30},
		temp:     70,
		slowdown: 90,
	}
	n, err := newNVML(&fakeController{device: dev}, 0, logger.Nop())
	require.NoError(t, err)

	v, ok := n.Counter(sampler.MetricGPU)
	assert.True(t, ok)
	assert.Equal(t, 73.0, v)

	v, ok = n.Counter(sampler.MetricTextureMemory)
	assert.True(t, ok)
	assert.Equal(t, float64(3<<30), v)

	v, ok = n.Counter(sampler.MetricThermal)
	assert.True(t, ok)
	assert.Zero(t, v)

	dev.temp = 95
	v, _ = n.Counter(sampler.MetricThermal)
	assert.Equal(t, 1.0, v)

	_, ok = n.Counter(sampler.MetricCPU)
	assert.False(t, ok, "NVML does not know host CPU")

	caps, err := n.Capabilities()
	require.NoError(t, err)
	assert.Equal(t, uint64(8<<30), caps.GPUMemoryBytes)
}

func TestNVMLThermalUnavailableWithoutThreshold(t *testing.T) {
	n, err := newNVML(&fakeController{device: &fakeDevice{temp: 99}}, 0, logger.Nop())
	require.NoError(t, err)

	_, ok := n.Counter(sampler.MetricThermal)
	assert.False(t, ok)
}

func TestNVMLReadFailuresAreLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	dev := &fakeDevice{ret: nvml.ERROR_GPU_IS_LOST}
	n, err := newNVML(&fakeController{device: dev}, 0, logger.New(&buf))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, ok := n.Counter(sampler.MetricGPU)
		assert.False(t, ok)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "NVML read failed"))

	_, err = n.Capabilities()
	assert.True(t, errors.HasCode(err, ErrDeviceInfoFailed))
}

func TestNewNVMLFailures(t *testing.T) {
	ctrl := &fakeController{initErr: errors.New().New(ErrInitFailed)}
	_, err := newNVML(ctrl, 0, logger.Nop())
	assert.True(t, errors.HasCode(err, ErrInitFailed))

	ctrl = &fakeController{}
	_, err = newNVML(ctrl, 0, logger.Nop())
	assert.True(t, errors.HasCode(err, ErrDeviceNotFound))
	assert.Equal(t, 1, ctrl.shutdown, "library is released when no device opens")
}

func TestHostCounters(t *testing.T) {
	h := &Host{
		percent: func() ([]float64, error) { return []float64{37.5}, nil },
		vmem: func() (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 16 << 30, Used: 6 << 30}, nil
		},
		cores: func() (int, error) { return 12, nil },
	}

	v, ok := h.Counter(sampler.MetricCPU)
	assert.True(t, ok)
	assert.Equal(t, 37.5, v)

	v, ok = h.Counter(sampler.MetricMemory)
	assert.True(t, ok)
	assert.Equal(t, float64(6<<30), v)

	_, ok = h.Counter(sampler.MetricGPU)
	assert.False(t, ok)

	caps, err := h.Capabilities()
	require.NoError(t, err)
	assert.Equal(t, pacer.Capabilities{MemoryBytes: 16 << 30, Cores: 12}, caps)

	assert.True(t, h.Foreground())
	h.SetForeground(false)
	h.SetCharging(true)
	assert.False(t, h.Foreground())
	assert.True(t, h.Charging())
}

func TestHostCounterErrorsAreUnavailable(t *testing.T) {
	h := &Host{
		percent: func() ([]float64, error) { return nil, fmt.Errorf("no /proc") },
		vmem:    func() (*mem.VirtualMemoryStat, error) { return nil, fmt.Errorf("no /proc") },
		cores:   func() (int, error) { return 0, fmt.Errorf("no /proc") },
	}

	_, ok := h.Counter(sampler.MetricCPU)
	assert.False(t, ok)
	_, ok = h.Counter(sampler.MetricMemory)
	assert.False(t, ok)

	_, err := h.Capabilities()
	assert.True(t, errors.HasCode(err, ErrHostInfoFailed))
}

func TestStaticProvider(t *testing.T) {
	s := NewStatic(map[sampler.Metric]float64{sampler.MetricBattery: 80})

	v, ok := s.Counter(sampler.MetricBattery)
	assert.True(t, ok)
	assert.Equal(t, 80.0, v)

	s.Unset(sampler.MetricBattery)
	_, ok = s.Counter(sampler.MetricBattery)
	assert.False(t, ok)

	s.SetForeground(false)
	assert.False(t, s.Foreground())
}

func TestMultiPrefersFirstSupplier(t *testing.T) {
	signals := NewStatic(map[sampler.Metric]float64{sampler.MetricBattery: 50})
	signals.SetCharging(true)
	signals.SetCapabilities(pacer.Capabilities{MemoryBytes: 4 << 30, Cores: 4})

	gpu := NewStatic(map[sampler.Metric]float64{sampler.MetricGPU: 80, sampler.MetricBattery: 10})
	gpu.SetForeground(false)
	gpu.SetCapabilities(pacer.Capabilities{GPUMemoryBytes: 6 << 30, Cores: 2})

	m := NewMulti(signals, gpu)

	v, _ := m.Counter(sampler.MetricBattery)
	assert.Equal(t, 50.0, v)
	v, _ = m.Counter(sampler.MetricGPU)
	assert.Equal(t, 80.0, v)
	_, ok := m.Counter(sampler.MetricCPU)
	assert.False(t, ok)

	assert.True(t, m.Foreground(), "signals come from the primary provider")
	assert.True(t, m.Charging())

	caps, err := m.Capabilities()
	require.NoError(t, err)
	assert.Equal(t, pacer.Capabilities{MemoryBytes: 4 << 30, Cores: 4, GPUMemoryBytes: 6 << 30}, caps)
}

func TestSimulatorRenderScaleLowersFrameCost(t *testing.T) {
	sim := NewSimulator(SimConfig{TargetFPS: 60, Period: time.Second, Amplitude: 0, Seed: 1})

	full := sim.Frame(16 * time.Millisecond)
	require.NoError(t, sim.ApplyParameter(context.Background(), "render_scale", 0.5))
	require.NoError(t, sim.ApplyParameter(context.Background(), "shadow_quality", 0))
	half := sim.Frame(16 * time.Millisecond)

	assert.Less(t, half, full)

	v, ok := sim.Counter(sampler.MetricCPU)
	assert.True(t, ok)
	assert.InDelta(t, 55, v, 1e-9, "zero amplitude holds load at the midpoint")
}

func TestSimulatorRetarget(t *testing.T) {
	cfg := SimConfig{TargetFPS: 60, Period: time.Second, Amplitude: 0, Seed: 1}
	base := NewSimulator(cfg)
	fast := NewSimulator(cfg)

	fast.SetTargetFPS(0)
	fast.SetTargetFPS(120)

	assert.InDelta(t, float64(base.Frame(16*time.Millisecond))/2, float64(fast.Frame(16*time.Millisecond)), 2)
}
