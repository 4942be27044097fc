package telemetry

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"codeberg.org/mutker/framegov/internal/errors"
)

// Format names a report serialization.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat validates a configured format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatCSV, FormatJSON, FormatYAML, FormatText:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", errors.New().WithData(ErrUnknownFormat, name)
	}
}

// NewExporter returns the exporter for format.
func NewExporter(format string) (Exporter, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch f {
	case FormatCSV:
		return csvExporter{}, nil
	case FormatJSON:
		return jsonExporter{}, nil
	case FormatYAML:
		return yamlExporter{}, nil
	default:
		return textExporter{}, nil
	}
}

var csvHeader = []string{
	"generated_at", "tick", "profile", "pacer_state", "score",
	"metric", "current", "min", "max", "mean", "stddev", "count", "available",
}

// csvExporter writes one row per metric.
type csvExporter struct{}

func (csvExporter) Format() Format { return FormatCSV }

func (csvExporter) Export(w io.Writer, r *Report) error {
	if r == nil {
		return errors.New().New(ErrInvalidReport)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.New().Wrap(ErrExportReport, err)
	}

	generated := r.GeneratedAt.UTC().Format(time.RFC3339Nano)
	for _, st := range r.Stats {
		row := []string{
			generated,
			strconv.FormatUint(r.Tick, 10),
			r.Profile.ID,
			r.Pacer.State,
			formatFloat(r.Pacer.Score),
			st.Metric,
			formatFloat(st.Current),
			formatFloat(st.Min),
			formatFloat(st.Max),
			formatFloat(st.Mean),
			formatFloat(st.StdDev),
			strconv.Itoa(st.Count),
			strconv.FormatBool(st.Available),
		}
		if err := cw.Write(row); err != nil {
			return errors.New().Wrap(ErrExportReport, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.New().Wrap(ErrExportReport, err)
	}

	return nil
}

type jsonExporter struct{}

func (jsonExporter) Format() Format { return FormatJSON }

func (jsonExporter) Export(w io.Writer, r *Report) error {
	if r == nil {
		return errors.New().New(ErrInvalidReport)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return errors.New().Wrap(ErrExportReport, err)
	}

	return nil
}

// yamlExporter writes each report as its own YAML document.
type yamlExporter struct{}

func (yamlExporter) Format() Format { return FormatYAML }

func (yamlExporter) Export(w io.Writer, r *Report) error {
	if r == nil {
		return errors.New().New(ErrInvalidReport)
	}

	if _, err := io.WriteString(w, "---\n"); err != nil {
		return errors.New().Wrap(ErrExportReport, err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.New().Wrap(ErrExportReport, err)
	}
	if err := enc.Close(); err != nil {
		return errors.New().Wrap(ErrExportReport, err)
	}

	return nil
}

type textExporter struct{}

func (textExporter) Format() Format { return FormatText }

func (textExporter) Export(w io.Writer, r *Report) error {
	if r == nil {
		return errors.New().New(ErrInvalidReport)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Report #%d at %s\n", r.Tick, r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Pacer:   %s (score %.3f, target %.0f fps, frame %.2f ms, tier %s)\n",
		r.Pacer.State, r.Pacer.Score, r.Pacer.TargetFPS, r.Pacer.SmoothedFrameMs, r.Pacer.Tier)
	fmt.Fprintf(&b, "Profile: %s (level %d, %d switches)\n", r.Profile.ID, r.Profile.Level, r.Profile.Switches)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tCURRENT\tMIN\tMAX\tMEAN\tSTDDEV")
	for _, st := range r.Stats {
		if !st.Available {
			fmt.Fprintf(tw, "%s\tn/a\t\t\t\t\n", st.Metric)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			st.Metric, st.Current, st.Min, st.Max, st.Mean, st.StdDev)
	}
	if err := tw.Flush(); err != nil {
		return errors.New().Wrap(ErrExportReport, err)
	}

	if len(r.Alerts) > 0 {
		b.WriteString("Alerts:\n")
		for _, a := range r.Alerts {
			fmt.Fprintf(&b, "  [%s] %s %s=%.2f (bound %.2f)\n", a.Severity, a.Threshold, a.Metric, a.Observed, a.Bound)
		}
	}
	if len(r.Rules) > 0 {
		b.WriteString("Rules:\n")
		for _, rv := range r.Rules {
			fmt.Fprintf(&b, "  %s applied=%d failed=%d\n", rv.Name, rv.Applied, rv.Failures)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.New().Wrap(ErrExportReport, err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
