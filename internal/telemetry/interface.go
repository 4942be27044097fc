package telemetry

import (
	"context"
	"io"

	"codeberg.org/mutker/framegov/internal/pacer"
	"codeberg.org/mutker/framegov/internal/profile"
	"codeberg.org/mutker/framegov/internal/sampler"
	"codeberg.org/mutker/framegov/internal/threshold"
)

// Recorder persists reports outside the process.
type Recorder interface {
	Record(ctx context.Context, report *Report) error
	Close() error
}

// Exporter serializes a report. It never mutates governor state.
type Exporter interface {
	Export(w io.Writer, report *Report) error
	Format() Format
}

// Component views the Reporter reads from.
type (
	SampleSource interface {
		Last() (sampler.Sample, bool)
	}

	AlertSource interface {
		Unresolved() []threshold.Alert
	}

	ProfileSource interface {
		Current() profile.QualityProfile
		Switches() uint64
	}

	PacerSource interface {
		Status() pacer.Status
	}

	RuleSource interface {
		Counts() map[string]uint64
		Failures() map[string]uint64
	}
)

// Sources wires the Reporter to live components.
type Sources struct {
	Samples  SampleSource
	Alerts   AlertSource
	Profiles ProfileSource
	Pacer    PacerSource
	Rules    RuleSource
}
