package metrics

import (
	"context"
	"net/http"

	"codeberg.org/mutker/framegov/internal/telemetry"
)

// Collector mirrors governor reports into Prometheus gauges.
type Collector interface {
	Record(ctx context.Context, report *telemetry.Report) error
	Handler() http.Handler
	Enabled() bool
}
