package sampler

import "math"

// MetricStat aggregates one metric over the history window.
type MetricStat struct {
	Current   float64
	Min       float64
	Max       float64
	Mean      float64
	Variance  float64
	Count     int
	Available bool
}

// StdDev returns the standard deviation of the window.
func (s MetricStat) StdDev() float64 {
	return math.Sqrt(s.Variance)
}

// Stats maps each metric to its window aggregate.
type Stats map[Metric]MetricStat

// Clone returns an independent copy.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s))
	for m, v := range s {
		out[m] = v
	}

	return out
}

func computeStats(history *ring[Sample]) Stats {
	stats := make(Stats, len(allMetrics))
	last, ok := history.last()

	for _, m := range allMetrics {
		st := MetricStat{}
		if ok {
			st.Current = last.Value(m)
			st.Available = last.Available(m)
		}

		var sum float64
		for i := 0; i < history.len(); i++ {
			s := history.at(i)
			if !s.Available(m) {
				continue
			}
			v := s.Value(m)
			if st.Count == 0 || v < st.Min {
				st.Min = v
			}
			if st.Count == 0 || v > st.Max {
				st.Max = v
			}
			sum += v
			st.Count++
		}

		if st.Count > 0 {
			st.Mean = clamp(sum/float64(st.Count), st.Min, st.Max)

			var sq float64
			for i := 0; i < history.len(); i++ {
				s := history.at(i)
				if !s.Available(m) {
					continue
				}
				d := s.Value(m) - st.Mean
				sq += d * d
			}
			st.Variance = math.Max(0, sq/float64(st.Count))
		}

		stats[m] = st
	}

	return stats
}

// clamp bounds the mean; float rounding of sum/n can land just past the
// window extremes.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
