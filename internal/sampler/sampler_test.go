package sampler

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/framegov/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	values     map[Metric]float64
	calls      map[Metric]int
	foreground bool
	charging   bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		values: map[Metric]float64{
			MetricMemory:    512 << 20,
			MetricCPU:       40,
			MetricGPU:       55,
			MetricDrawCalls: 300,
			MetricTriangles: 120000,
			MetricBattery:   80,
			MetricThermal:   0,
		},
		calls:      make(map[Metric]int),
		foreground: true,
	}
}

func (p *fakeProvider) Counter(m Metric) (float64, bool) {
	p.calls[m]++
	v, ok := p.values[m]
	return v, ok
}

func (p *fakeProvider) Foreground() bool { return p.foreground }
func (p *fakeProvider) Charging() bool   { return p.charging }

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSampleHistoryIsBoundedFIFO(t *testing.T) {
	s := New(Config{HistorySize: 5}, newFakeProvider(), WithLogger(logger.Nop()))

	for i := 1; i <= 12; i++ {
		s.Sample(epoch.Add(time.Duration(i)*time.Second), time.Duration(i)*time.Millisecond)
		assert.LessOrEqual(t, s.Len(), 5)
	}

	history := s.History()
	require.Len(t, history, 5)
	for i, sample := range history {
		assert.Equal(t, uint64(8+i), sample.Seq, "oldest entries must be evicted first")
	}
	assert.Equal(t, 5, s.Capacity())
}

func TestSampleDefaultsHistorySize(t *testing.T) {
	s := New(Config{}, newFakeProvider(), WithLogger(logger.Nop()))
	assert.Equal(t, defaultHistorySize, s.Capacity())
}

func TestStatsOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := newFakeProvider()
	s := New(Config{HistorySize: 60}, p, WithLogger(logger.Nop()))

	for i := 0; i < 500; i++ {
		p.values[MetricCPU] = rng.Float64() * 100
		p.values[MetricMemory] = float64(rng.Int63n(4 << 30))
		// identical values stress rounding of the mean
		p.values[MetricGPU] = 0.1
		frame := time.Duration(5+rng.Intn(40)) * time.Millisecond
		s.Sample(epoch.Add(time.Duration(i)*16*time.Millisecond), frame)

		for m, st := range s.Stats() {
			if !st.Available {
				continue
			}
			require.LessOrEqual(t, st.Min, st.Mean, "metric %s", m)
			require.LessOrEqual(t, st.Mean, st.Max, "metric %s", m)
			require.GreaterOrEqual(t, st.Variance, 0.0, "metric %s", m)
			require.LessOrEqual(t, st.Count, 60)
		}
	}
}

func TestStatsValues(t *testing.T) {
	p := newFakeProvider()
	s := New(Config{HistorySize: 4}, p, WithLogger(logger.Nop()))

	for _, cpu := range []float64{10, 20, 30, 40} {
		p.values[MetricCPU] = cpu
		s.Sample(epoch, 16*time.Millisecond)
	}

	st := s.Stats()[MetricCPU]
	assert.True(t, st.Available)
	assert.Equal(t, 40.0, st.Current)
	assert.Equal(t, 10.0, st.Min)
	assert.Equal(t, 40.0, st.Max)
	assert.InDelta(t, 25.0, st.Mean, 1e-9)
	assert.InDelta(t, 125.0, st.Variance, 1e-9)
	assert.Equal(t, 4, st.Count)

	ft := s.Stats()[MetricFrameTime]
	assert.InDelta(t, 16.0, ft.Current, 1e-9)
}

func TestExpensiveCountersUseCadence(t *testing.T) {
	p := newFakeProvider()
	p.values[MetricTextureMemory] = 64 << 20
	s := New(Config{
		HistorySize: 100,
		Cadence:     map[Metric]int{MetricTextureMemory: 10},
	}, p, WithLogger(logger.Nop()))

	for i := 0; i < 25; i++ {
		if i == 5 {
			p.values[MetricTextureMemory] = 128 << 20
		}
		sample := s.Sample(epoch, 16*time.Millisecond)
		if i < 10 {
			assert.Equal(t, float64(64<<20), sample.Value(MetricTextureMemory), "cycle %d should reuse the cached value", i+1)
		}
	}

	assert.Equal(t, 3, p.calls[MetricTextureMemory], "polled on cycles 1, 11 and 21")
	assert.Equal(t, 25, p.calls[MetricCPU])

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, float64(128<<20), last.Value(MetricTextureMemory))
}

func TestMissingCounterReportsSentinelOnce(t *testing.T) {
	p := newFakeProvider()
	delete(p.values, MetricMemory)

	var buf bytes.Buffer
	s := New(Config{HistorySize: 10}, p, WithLogger(logger.New(&buf)))

	for i := 0; i < 5; i++ {
		sample := s.Sample(epoch, 16*time.Millisecond)
		assert.Equal(t, 0.0, sample.Value(MetricMemory))
		assert.False(t, sample.Available(MetricMemory))
		assert.Contains(t, sample.Missing(), MetricMemory)
		assert.True(t, sample.Available(MetricCPU))
	}

	assert.Equal(t, 1, strings.Count(buf.String(), `"metric":"memory_bytes"`))
	assert.Contains(t, s.Notes(), MetricMemory)

	st := s.Stats()[MetricMemory]
	assert.False(t, st.Available)
	assert.Equal(t, 0, st.Count)
	assert.Equal(t, 0.0, st.Current)
}

func TestZeroFrameIntervalIsUnavailable(t *testing.T) {
	s := New(Config{}, newFakeProvider(), WithLogger(logger.Nop()))
	sample := s.Sample(epoch, 0)
	assert.False(t, sample.Available(MetricFrameTime))
}

func TestSampleValuesAreCopies(t *testing.T) {
	s := New(Config{}, newFakeProvider(), WithLogger(logger.Nop()))
	sample := s.Sample(epoch, 16*time.Millisecond)

	values := sample.Values()
	values[MetricCPU] = 999

	assert.Equal(t, 40.0, sample.Value(MetricCPU))
	history := s.History()
	history[0] = Sample{}
	first := s.History()[0]
	assert.Equal(t, uint64(1), first.Seq)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("gpu_percent")
	require.NoError(t, err)
	assert.Equal(t, MetricGPU, m)

	_, err = ParseMetric("fps")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fps")
}
