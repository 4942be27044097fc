package threshold

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func frameThreshold() Threshold {
	return Threshold{
		Name:      "frame_time",
		Metric:    sampler.MetricFrameTime,
		Warning:   20,
		Critical:  33,
		Direction: Above,
		Enabled:   true,
		Cooldown:  time.Second,
	}
}

func statsWith(m sampler.Metric, current float64) sampler.Stats {
	return sampler.Stats{
		m: {Current: current, Min: current, Max: current, Mean: current, Count: 1, Available: true},
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}
}

func newEvaluator(t *testing.T, thresholds ...Threshold) *Evaluator {
	t.Helper()

	e, err := New(thresholds, WithLogger(logger.Nop()), WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)

	return e
}

func TestNewRejectsMisconfiguredThresholds(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Threshold)
		code errors.ErrorCode
	}{
		{
			name: "above with warning past critical",
			mod:  func(th *Threshold) { th.Warning, th.Critical = 40, 30 },
			code: errors.ErrThresholdMisconfigured,
		},
		{
			name: "below with warning under critical",
			mod: func(th *Threshold) {
				th.Direction = Below
				th.Warning, th.Critical = 10, 20
			},
			code: errors.ErrThresholdMisconfigured,
		},
		{
			name: "unknown metric",
			mod:  func(th *Threshold) { th.Metric = "fps_of_doom" },
			code: errors.ErrInvalidConfig,
		},
		{
			name: "empty name",
			mod:  func(th *Threshold) { th.Name = "" },
			code: errors.ErrInvalidConfig,
		},
		{
			name: "negative cooldown",
			mod:  func(th *Threshold) { th.Cooldown = -time.Second },
			code: errors.ErrInvalidConfig,
		},
		{
			name: "unknown direction",
			mod:  func(th *Threshold) { th.Direction = "sideways" },
			code: errors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := frameThreshold()
			tt.mod(&th)

			_, err := New([]Threshold{th})
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New([]Threshold{frameThreshold(), frameThreshold()})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "duplicate")
}

func TestEvaluateSeverity(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		severity Severity
		bound    float64
		alert    bool
	}{
		{name: "under warning", value: 16, alert: false},
		{name: "at warning", value: 20, severity: SeverityWarning, bound: 20, alert: true},
		{name: "between", value: 25, severity: SeverityWarning, bound: 20, alert: true},
		{name: "critical wins", value: 50, severity: SeverityCritical, bound: 33, alert: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(t, frameThreshold())

			alerts := e.Evaluate(epoch, statsWith(sampler.MetricFrameTime, tt.value))
			if !tt.alert {
				assert.Empty(t, alerts)
				return
			}

			require.Len(t, alerts, 1, "one alert per threshold per evaluation")
			assert.Equal(t, tt.severity, alerts[0].Severity)
			assert.Equal(t, tt.bound, alerts[0].Bound)
			assert.Equal(t, tt.value, alerts[0].Observed)
			assert.Equal(t, "frame_time", alerts[0].Threshold)
			assert.False(t, alerts[0].Resolved)
		})
	}
}

func TestEvaluateBelowDirection(t *testing.T) {
	e := newEvaluator(t, Threshold{
		Name:      "battery_low",
		Metric:    sampler.MetricBattery,
		Warning:   20,
		Critical:  5,
		Direction: Below,
		Enabled:   true,
	})

	alerts := e.Evaluate(epoch, statsWith(sampler.MetricBattery, 12))
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)

	alerts = e.Evaluate(epoch.Add(time.Second), statsWith(sampler.MetricBattery, 3))
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestEvaluateEqualityDirections(t *testing.T) {
	e := newEvaluator(t,
		Threshold{Name: "thermal_on", Metric: sampler.MetricThermal, Warning: 1, Critical: 1, Direction: Equal, Enabled: true},
		Threshold{Name: "fg", Metric: sampler.MetricCPU, Warning: 50, Critical: 100, Direction: NotEqual, Enabled: true},
	)

	stats := sampler.Stats{
		sampler.MetricThermal: {Current: 1, Available: true},
		sampler.MetricCPU:     {Current: 100, Available: true},
	}

	alerts := e.Evaluate(epoch, stats)
	require.Len(t, alerts, 2)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
	assert.Equal(t, SeverityWarning, alerts[1].Severity, "not_equal crosses warning when value differs")
}

func TestEvaluateUsesSelectedStatistic(t *testing.T) {
	th := frameThreshold()
	th.Statistic = StatMean
	e := newEvaluator(t, th)

	stats := sampler.Stats{
		sampler.MetricFrameTime: {Current: 50, Min: 10, Max: 50, Mean: 18, Count: 10, Available: true},
	}
	assert.Empty(t, e.Evaluate(epoch, stats), "a single spike must not move the mean past warning")

	th.Statistic = StatMax
	e = newEvaluator(t, th)
	alerts := e.Evaluate(epoch, stats)
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestEvaluateDisabledThresholdIsSilent(t *testing.T) {
	th := frameThreshold()
	th.Enabled = false
	e := newEvaluator(t, th)

	assert.Empty(t, e.Evaluate(epoch, statsWith(sampler.MetricFrameTime, 100)))
}

func TestCooldownNeverReemitsWithinWindow(t *testing.T) {
	e := newEvaluator(t, frameThreshold())
	stats := statsWith(sampler.MetricFrameTime, 25)

	var emitted []Alert
	for i := 0; i < 20; i++ {
		now := epoch.Add(time.Duration(i) * 100 * time.Millisecond)
		emitted = append(emitted, e.Evaluate(now, stats)...)
	}

	require.Len(t, emitted, 2)
	assert.Equal(t, epoch, emitted[0].Timestamp)
	assert.Equal(t, epoch.Add(time.Second), emitted[1].Timestamp)
	for i := 1; i < len(emitted); i++ {
		gap := emitted[i].Timestamp.Sub(emitted[i-1].Timestamp)
		assert.GreaterOrEqual(t, gap, time.Second)
	}
}

func TestCooldownIsPerSeverity(t *testing.T) {
	e := newEvaluator(t, frameThreshold())

	warn := e.Evaluate(epoch, statsWith(sampler.MetricFrameTime, 25))
	crit := e.Evaluate(epoch.Add(100*time.Millisecond), statsWith(sampler.MetricFrameTime, 40))

	require.Len(t, warn, 1)
	require.Len(t, crit, 1, "escalation to critical is not suppressed by the warning cooldown")
	assert.Equal(t, SeverityCritical, crit[0].Severity)

	last, ok := e.LastFired("frame_time", SeverityCritical)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(100*time.Millisecond), last)
}

func TestUnavailableMetricNeverAlerts(t *testing.T) {
	e := newEvaluator(t, Threshold{
		Name:      "memory",
		Metric:    sampler.MetricMemory,
		Warning:   0,
		Critical:  1,
		Direction: Above,
		Enabled:   true,
	})

	stats := sampler.Stats{sampler.MetricMemory: {Available: false}}
	assert.Empty(t, e.Evaluate(epoch, stats), "sentinel zero must not cross a zero bound")
}

func TestMissingMetricMappingIsLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	e, err := New([]Threshold{frameThreshold()}, WithLogger(logger.New(&buf)))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.Empty(t, e.Evaluate(epoch.Add(time.Duration(i)*time.Second), sampler.Stats{}))
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "threshold skipped"))
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestResolveAppliesHysteresis(t *testing.T) {
	e := newEvaluator(t, frameThreshold())

	active := e.Evaluate(epoch, statsWith(sampler.MetricFrameTime, 25))
	require.Len(t, active, 1)

	// 19 is under warning (20) but within the 10% margin.
	still := e.Resolve(active, statsWith(sampler.MetricFrameTime, 19), epoch.Add(time.Second))
	require.Len(t, still, 1)
	assert.False(t, still[0].Resolved)
	assert.False(t, active[0].Resolved, "input must not be mutated")

	done := e.Resolve(still, statsWith(sampler.MetricFrameTime, 17.5), epoch.Add(2*time.Second))
	require.Len(t, done, 1)
	assert.True(t, done[0].Resolved)
	assert.Equal(t, epoch.Add(2*time.Second), done[0].ResolvedAt)
	assert.Equal(t, active[0].ID, done[0].ID)
}

func TestResolveLeavesUnavailableMetricsAlone(t *testing.T) {
	e := newEvaluator(t, frameThreshold())
	active := e.Evaluate(epoch, statsWith(sampler.MetricFrameTime, 25))

	out := e.Resolve(active, sampler.Stats{sampler.MetricFrameTime: {Available: false}}, epoch.Add(time.Second))
	require.Len(t, out, 1)
	assert.False(t, out[0].Resolved)
}

func TestFlappingFrameTimeProducesBoundedAlerts(t *testing.T) {
	e := newEvaluator(t, frameThreshold())
	log := NewLog(0, 0)

	for i := 0; i < 100; i++ {
		now := epoch.Add(time.Duration(i) * 50 * time.Millisecond)
		value := 10.0
		if i%2 == 1 {
			value = 30
		}
		stats := statsWith(sampler.MetricFrameTime, value)

		log.Replace(e.Resolve(log.Unresolved(), stats, now))
		log.Add(e.Evaluate(now, stats)...)
	}

	// 5 seconds of flapping at a 1s cooldown.
	assert.LessOrEqual(t, log.Len(), 5)
	assert.Positive(t, log.Len())
}
