package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"codeberg.org/mutker/framegov/internal/config"
	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/governor"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/metrics"
	"codeberg.org/mutker/framegov/internal/platform"
	"codeberg.org/mutker/framegov/internal/profile"
	"codeberg.org/mutker/framegov/internal/sampler"
	"codeberg.org/mutker/framegov/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// host is the frame source the governor is attached to.
type host struct {
	provider sampler.Provider
	applier  profile.Applier
	// frame returns the interval of the frame that ended at now.
	frame func(now time.Time) time.Duration
	// retarget follows the frame rate the pacer settled on.
	retarget func(fps float64)
	close    func() error
}

func newHost(cfg *config.Config, log logger.Logger) *host {
	if cfg.Simulate {
		sim := platform.NewSimulator(platform.SimConfig{
			TargetFPS: cfg.Pacer.TargetFPS,
			Period:    cfg.Simulation.Period,
			Amplitude: cfg.Simulation.Amplitude,
			Seed:      cfg.Simulation.Seed,
		})
		next := cfg.Tick

		log.Info().Msg("Running against simulated frame source")

		return &host{
			provider: sim,
			applier:  sim,
			frame: func(time.Time) time.Duration {
				dt := next
				next = sim.Frame(dt)
				return dt
			},
			retarget: sim.SetTargetFPS,
			close:    func() error { return nil },
		}
	}

	var (
		providers []sampler.Provider
		closers   []func() error
	)

	gpu, err := platform.NewNVML(cfg.GPUIndex, log)
	if err != nil {
		log.Warn().Err(err).Msg("NVML unavailable, GPU counters disabled")
	} else {
		providers = append(providers, gpu)
		closers = append(closers, gpu.Shutdown)
	}

	var last time.Time

	return &host{
		provider: platform.NewMulti(platform.NewHost(), providers...),
		applier:  logApplier(log),
		frame: func(now time.Time) time.Duration {
			if last.IsZero() {
				last = now
				return cfg.Tick
			}
			dt := now.Sub(last)
			last = now
			return dt
		},
		retarget: func(float64) {},
		close: func() error {
			var firstErr error
			for _, c := range closers {
				if err := c(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		},
	}
}

// logApplier stands in for a renderer when framegov watches the host
// without one attached.
func logApplier(log logger.Logger) profile.Applier {
	return profile.ApplierFunc(func(_ context.Context, name string, value float64) error {
		log.Info().Str("param", name).Float64("value", value).Msg("Renderer parameter")
		return nil
	})
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	errFactory := errors.New()

	govCfg, err := cfg.GovernorConfig()
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}
	reportCfg, err := cfg.TelemetryConfig()
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	h := newHost(cfg, log)
	defer func() {
		if err := h.close(); err != nil {
			log.Error().Err(err).Msg("Failed to release platform")
		}
	}()

	gov, err := governor.New(govCfg, h.provider, h.applier, governor.WithLogger(log))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}
	h.retarget(gov.PacerStatus().TargetFPS)
	if err := gov.Sync(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to push initial profile")
	}

	recorder, err := telemetry.NewService(reportCfg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close report sink")
		}
	}()

	collector, err := metrics.NewService(cfg.MetricsConfig())
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	var ln net.Listener
	if collector.Enabled() {
		ln, err = net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			return errFactory.Wrap(errors.ErrInitFailed, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop(gctx, cfg, gov, h, recorder, collector, log)
	})
	if ln != nil {
		g.Go(func() error {
			return serveMetrics(gctx, ln, cfg.Metrics.Path, collector.Handler(), log)
		})
	}

	if err := g.Wait(); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	return nil
}

func loop(ctx context.Context, cfg *config.Config, gov *governor.Governor, h *host,
	recorder telemetry.Recorder, collector metrics.Collector, log logger.Logger,
) error {
	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	var exports <-chan time.Time
	if cfg.Report.Enabled {
		t := time.NewTicker(cfg.Report.Interval)
		defer t.Stop()
		exports = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			res := gov.Tick(ctx, h.frame(now))
			logTick(log, res)

			if res.Report != nil {
				if err := collector.Record(ctx, res.Report); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Msg("Failed to record metrics")
				}
			}
		case <-exports:
			if err := recorder.Record(ctx, gov.Report()); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// logTick traces fired rules. Alerts and transitions are logged by the
// evaluator and the pacer.
func logTick(log logger.Logger, res governor.TickResult) {
	for _, a := range res.Actions {
		if a.Failed() {
			continue
		}
		log.Debug().Str("rule", a.Rule).Uint64("tick", res.Tick).Msg("Rule fired")
	}
}

func serveMetrics(ctx context.Context, ln net.Listener, path string, handler http.Handler, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", ln.Addr().String()).Str("path", path).Msg("Serving metrics")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return <-errCh
}
