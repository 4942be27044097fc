package telemetry

import (
	"time"

	"codeberg.org/mutker/framegov/internal/sampler"
)

// Reporter assembles Reports from live components. Snapshot only reads.
type Reporter struct {
	src Sources
}

func NewReporter(src Sources) *Reporter {
	return &Reporter{src: src}
}

// Snapshot builds a report for the given tick. stats is the window the tick
// evaluated; nil sources leave their section empty.
func (r *Reporter) Snapshot(now time.Time, tick uint64, stats sampler.Stats) *Report {
	report := &Report{
		GeneratedAt: now,
		Tick:        tick,
		Stats:       statViews(stats),
	}

	if r.src.Samples != nil {
		if s, ok := r.src.Samples.Last(); ok {
			report.Sample = sampleView(s)
		}
	}
	if r.src.Alerts != nil {
		report.Alerts = r.src.Alerts.Unresolved()
	}
	if r.src.Profiles != nil {
		p := r.src.Profiles.Current()
		report.Profile = ProfileView{
			ID:       p.ID,
			Name:     p.Name,
			Level:    p.Level,
			Params:   p.Params,
			Switches: r.src.Profiles.Switches(),
		}
	}
	if r.src.Pacer != nil {
		st := r.src.Pacer.Status()
		report.Pacer = PacerView{
			State:           st.State.String(),
			Score:           float64(st.Score),
			TargetFPS:       st.TargetFPS,
			SmoothedFrameMs: st.SmoothedFrameMs,
			FrameVariance:   st.FrameVariance,
			Background:      st.Background,
			Forced:          st.Forced,
			Pending:         st.Pending.String(),
			Tier:            st.Tier,
		}
	}
	if r.src.Rules != nil {
		report.Rules = ruleViews(r.src.Rules.Counts(), r.src.Rules.Failures())
	}

	return report
}
