package telemetry

import (
	"context"
	"io"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
)

type service struct {
	exporter Exporter
	sink     *sink
	cfg      Config
}

// No-op implementation
type noopRecorder struct{}

// NewService builds the report recorder described by cfg. A disabled config
// yields a recorder that drops every report.
func NewService(cfg Config) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Report export disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	exporter, err := NewExporter(string(cfg.Format))
	if err != nil {
		return nil, err
	}

	return newService(cfg, exporter)
}

// NewWriterService records reports to w instead of a path. w is not closed.
func NewWriterService(w io.Writer, format Format) (Recorder, error) {
	exporter, err := NewExporter(string(format))
	if err != nil {
		return nil, err
	}

	return &service{
		exporter: exporter,
		sink:     &sink{w: w},
		cfg:      Config{Enabled: true, Format: format},
	}, nil
}

func newService(cfg Config, exporter Exporter) (*service, error) {
	s, err := newSink(cfg.Path)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("path", cfg.Path).
		Str("format", string(cfg.Format)).
		Dur("interval", cfg.Interval).
		Msg("Report export initialized")

	return &service{
		exporter: exporter,
		sink:     s,
		cfg:      cfg,
	}, nil
}

func (s *service) Record(ctx context.Context, report *Report) error {
	errFactory := errors.New()

	if report == nil {
		return errFactory.New(ErrInvalidReport)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		return s.sink.write(func(w io.Writer) error {
			return s.exporter.Export(w, report)
		})
	}
}

func (s *service) Close() error {
	return s.sink.Close()
}

func (*noopRecorder) Record(_ context.Context, _ *Report) error {
	return nil
}

func (*noopRecorder) Close() error {
	return nil
}
