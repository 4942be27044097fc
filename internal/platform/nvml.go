package platform

import (
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/sampler"
)

// gpuDevice is the subset of nvml.Device the provider reads.
type gpuDevice interface {
	GetName() (string, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return)
	GetTemperatureThreshold(threshold nvml.TemperatureThresholds) (uint32, nvml.Return)
}

// nvmlController abstracts NVML library lifecycle for testing
type nvmlController interface {
	Initialize() error
	Shutdown() error
	GetDevice(index int) (gpuDevice, error)
}

type nvmlWrapper struct {
	initialized bool
}

func (w *nvmlWrapper) Initialize() error {
	errFactory := errors.New()
	if w.initialized {
		return nil
	}

	ret := nvml.Init()
	if !isNVMLSuccess(ret) {
		return errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	w.initialized = true

	return nil
}

func (w *nvmlWrapper) Shutdown() error {
	errFactory := errors.New()
	if !w.initialized {
		return nil
	}

	ret := nvml.Shutdown()
	if !isNVMLSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	w.initialized = false

	return nil
}

func (w *nvmlWrapper) GetDevice(index int) (gpuDevice, error) {
	errFactory := errors.New()
	if !w.initialized {
		return nil, errFactory.New(ErrNotInitialized)
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !isNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return device, nil
}

// NVML supplies GPU utilization, GPU memory and a thermal slowdown flag from
// the NVIDIA management library. Metrics it does not know are unavailable.
type NVML struct {
	ctrl     nvmlController
	device   gpuDevice
	slowdown uint32
	log      logger.Logger

	mu       sync.Mutex
	failures map[sampler.Metric]struct{}
}

// NewNVML initializes NVML and opens the GPU at index.
func NewNVML(index int, log logger.Logger) (*NVML, error) {
	return newNVML(&nvmlWrapper{}, index, log)
}

func newNVML(ctrl nvmlController, index int, log logger.Logger) (*NVML, error) {
	if err := ctrl.Initialize(); err != nil {
		return nil, err
	}

	device, err := ctrl.GetDevice(index)
	if err != nil {
		_ = ctrl.Shutdown()
		return nil, err
	}

	n := &NVML{
		ctrl:     ctrl,
		device:   device,
		log:      log.With("nvml"),
		failures: make(map[sampler.Metric]struct{}),
	}

	if name, ret := device.GetName(); isNVMLSuccess(ret) {
		n.log.Info().Msgf("Detected GPU: %v", name)
	} else {
		n.log.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	if t, ret := device.GetTemperatureThreshold(nvml.TEMPERATURE_THRESHOLD_SLOWDOWN); isNVMLSuccess(ret) {
		n.slowdown = t
		n.log.Debug().Msgf("GPU slowdown temperature: %d°C", t)
	}

	return n, nil
}

func (n *NVML) Counter(m sampler.Metric) (float64, bool) {
	switch m {
	case sampler.MetricGPU:
		util, ret := n.device.GetUtilizationRates()
		if !n.ok(m, ret) {
			return 0, false
		}
		return float64(util.Gpu), true
	case sampler.MetricTextureMemory:
		info, ret := n.device.GetMemoryInfo()
		if !n.ok(m, ret) {
			return 0, false
		}
		return float64(info.Used), true
	case sampler.MetricThermal:
		if n.slowdown == 0 {
			return 0, false
		}
		temp, ret := n.device.GetTemperature(nvml.TEMPERATURE_GPU)
		if !n.ok(m, ret) {
			return 0, false
		}
		if temp >= n.slowdown {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Foreground and Charging are not observable through NVML.
func (*NVML) Foreground() bool { return true }
func (*NVML) Charging() bool   { return false }

// Capabilities reports total GPU memory.
func (n *NVML) Capabilities() (pacer.Capabilities, error) {
	info, ret := n.device.GetMemoryInfo()
	if !isNVMLSuccess(ret) {
		return pacer.Capabilities{}, errors.New().Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	return pacer.Capabilities{GPUMemoryBytes: info.Total}, nil
}

func (n *NVML) Shutdown() error {
	return n.ctrl.Shutdown()
}

// ok logs the first failure per metric.
func (n *NVML) ok(m sampler.Metric, ret nvml.Return) bool {
	if isNVMLSuccess(ret) {
		return true
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, seen := n.failures[m]; !seen {
		n.failures[m] = struct{}{}
		n.log.Warn().Str("metric", m.String()).Msgf("NVML read failed: %v", nvml.ErrorString(ret))
	}

	return false
}
