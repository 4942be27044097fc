package sampler

import "time"

// Sample is one cycle's reading of every metric. It has no mutators; accessors
// hand out copies so a Sample can be shared with readers on other goroutines.
type Sample struct {
	Seq        uint64
	Timestamp  time.Time
	FrameTime  time.Duration
	Foreground bool
	Charging   bool

	values  map[Metric]float64
	missing map[Metric]struct{}
}

// Value returns the metric value, or the sentinel 0 when the platform could not supply it.
func (s Sample) Value(m Metric) float64 {
	return s.values[m]
}

// Available reports whether the platform supplied m for this sample.
func (s Sample) Available(m Metric) bool {
	if _, ok := s.values[m]; !ok {
		return false
	}
	_, missing := s.missing[m]

	return !missing
}

// Values returns a copy of all metric values, sentinels included.
func (s Sample) Values() map[Metric]float64 {
	out := make(map[Metric]float64, len(s.values))
	for m, v := range s.values {
		out[m] = v
	}

	return out
}

// Missing lists the metrics that carry a sentinel in this sample.
func (s Sample) Missing() []Metric {
	var out []Metric
	for _, m := range allMetrics {
		if _, ok := s.missing[m]; ok {
			out = append(out, m)
		}
	}

	return out
}
