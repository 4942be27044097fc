package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/telemetry"
	"codeberg.org/mutker/framegov/internal/threshold"
)

const namespace = "framegov"

var pacerStates = []pacer.State{pacer.Nominal, pacer.Degraded, pacer.Throttled, pacer.Recovering}

type service struct {
	registry *prometheus.Registry

	tick            prometheus.Gauge
	score           prometheus.Gauge
	state           *prometheus.GaugeVec
	targetFPS       prometheus.Gauge
	smoothedFrame   prometheus.Gauge
	metricCurrent   *prometheus.GaugeVec
	metricMean      *prometheus.GaugeVec
	metricAvailable *prometheus.GaugeVec
	alerts          *prometheus.GaugeVec
	profileLevel    prometheus.Gauge
	profileSwitches prometheus.Gauge
	ruleApplied     *prometheus.GaugeVec
	ruleFailures    *prometheus.GaugeVec
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op collector
	if !cfg.Enabled {
		logger.Debug().Msg("Metrics collection disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	s := newService()
	if err := s.register(); err != nil {
		return nil, errFactory.Wrap(ErrRegister, err)
	}

	logger.Debug().
		Str("listen", cfg.Listen).
		Str("path", cfg.Path).
		Msg("Metrics service initialized successfully")

	return s, nil
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

func gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func newService() *service {
	return &service{
		registry:        prometheus.NewRegistry(),
		tick:            gauge("report_tick", "Tick number of the latest report"),
		score:           gauge("pacer_score", "Frame pacing performance score (0 = poor, 1 = on target)"),
		state:           gaugeVec("pacer_state", "Current pacer state (1 for the active state)", "state"),
		targetFPS:       gauge("pacer_target_fps", "Frame rate the pacer is aiming for"),
		smoothedFrame:   gauge("pacer_smoothed_frame_ms", "Smoothed frame interval in milliseconds"),
		metricCurrent:   gaugeVec("metric_current", "Latest sampled value per metric", "metric"),
		metricMean:      gaugeVec("metric_window_mean", "Mean over the sampling window per metric", "metric"),
		metricAvailable: gaugeVec("metric_available", "Whether the platform supplies the metric", "metric"),
		alerts:          gaugeVec("alerts_active", "Unresolved alerts by severity", "severity"),
		profileLevel:    gauge("profile_level", "Level of the active quality profile"),
		profileSwitches: gauge("profile_switches", "Quality profile switches since start"),
		ruleApplied:     gaugeVec("rule_applications", "Rule applications since start", "rule"),
		ruleFailures:    gaugeVec("rule_failures", "Failed rule actions since start", "rule"),
	}
}

func (s *service) register() error {
	collectors := []prometheus.Collector{
		s.tick, s.score, s.state, s.targetFPS, s.smoothedFrame,
		s.metricCurrent, s.metricMean, s.metricAvailable,
		s.alerts, s.profileLevel, s.profileSwitches,
		s.ruleApplied, s.ruleFailures,
	}
	for _, c := range collectors {
		if err := s.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Record(ctx context.Context, report *telemetry.Report) error {
	errFactory := errors.New()

	if report == nil {
		return errFactory.New(ErrInvalidMetrics)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	s.tick.Set(float64(report.Tick))
	s.score.Set(report.Pacer.Score)
	for _, st := range pacerStates {
		s.state.WithLabelValues(st.String()).Set(boolToFloat(st.String() == report.Pacer.State))
	}
	s.targetFPS.Set(report.Pacer.TargetFPS)
	s.smoothedFrame.Set(report.Pacer.SmoothedFrameMs)

	for _, st := range report.Stats {
		s.metricCurrent.WithLabelValues(st.Metric).Set(st.Current)
		s.metricMean.WithLabelValues(st.Metric).Set(st.Mean)
		s.metricAvailable.WithLabelValues(st.Metric).Set(boolToFloat(st.Available))
	}

	counts := map[threshold.Severity]int{threshold.SeverityWarning: 0, threshold.SeverityCritical: 0}
	for _, a := range report.Alerts {
		if !a.Resolved {
			counts[a.Severity]++
		}
	}
	for severity, n := range counts {
		s.alerts.WithLabelValues(string(severity)).Set(float64(n))
	}

	s.profileLevel.Set(float64(report.Profile.Level))
	s.profileSwitches.Set(float64(report.Profile.Switches))

	for _, r := range report.Rules {
		s.ruleApplied.WithLabelValues(r.Name).Set(float64(r.Applied))
		s.ruleFailures.WithLabelValues(r.Name).Set(float64(r.Failures))
	}

	return nil
}

func (s *service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (*service) Enabled() bool {
	return true
}

// No-op implementation
func (*noopCollector) Record(_ context.Context, _ *telemetry.Report) error {
	return nil
}

func (*noopCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (*noopCollector) Enabled() bool {
	return false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
