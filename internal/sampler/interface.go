package sampler

// Provider supplies raw platform counters. Every getter is synchronous and must
// return quickly; ok=false means the platform cannot supply the metric.
type Provider interface {
	Counter(m Metric) (value float64, ok bool)
	Foreground() bool
	Charging() bool
}
