package telemetry

import (
	"time"

	"codeberg.org/mutker/framegov/internal/errors"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
	// StdoutPath writes reports to standard output.
	StdoutPath = "-"
)

// Config controls periodic report export.
type Config struct {
	Enabled  bool
	Format   Format
	Path     string
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:  false,
		Format:   FormatText,
		Path:     StdoutPath,
		Interval: 5 * time.Second,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return errFactory.New(ErrInvalidPath)
	}
	if _, err := ParseFormat(string(c.Format)); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return errFactory.WithData(ErrInvalidConfig, errors.FieldErrors{{
			Field:  "report.interval",
			Value:  c.Interval,
			Reason: "must be positive",
		}})
	}

	return nil
}
