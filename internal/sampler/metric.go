package sampler

import "codeberg.org/mutker/framegov/internal/errors"

// Metric names one telemetry channel of a Sample.
type Metric string

const (
	MetricFrameTime     Metric = "frame_time_ms"
	MetricMemory        Metric = "memory_bytes"
	MetricCPU           Metric = "cpu_percent"
	MetricGPU           Metric = "gpu_percent"
	MetricDrawCalls     Metric = "draw_calls"
	MetricTriangles     Metric = "triangles"
	MetricBattery       Metric = "battery_percent"
	MetricThermal       Metric = "thermal"
	MetricTextureMemory Metric = "texture_memory_bytes"
)

var allMetrics = []Metric{
	MetricFrameTime,
	MetricMemory,
	MetricCPU,
	MetricGPU,
	MetricDrawCalls,
	MetricTriangles,
	MetricBattery,
	MetricThermal,
	MetricTextureMemory,
}

// AllMetrics returns every known metric in a stable order.
func AllMetrics() []Metric {
	out := make([]Metric, len(allMetrics))
	copy(out, allMetrics)

	return out
}

// ParseMetric validates a configured metric name.
func ParseMetric(name string) (Metric, error) {
	for _, m := range allMetrics {
		if string(m) == name {
			return m, nil
		}
	}

	return "", errors.New().WithData(errors.ErrUnknownMetric, name)
}

func (m Metric) String() string {
	return string(m)
}
