package telemetry

import (
	"sort"
	"time"

	"codeberg.org/mutker/framegov/internal/sampler"
	"codeberg.org/mutker/framegov/internal/threshold"
)

// Report is an immutable point-in-time view of the governor.
type Report struct {
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Tick        uint64            `json:"tick" yaml:"tick"`
	Sample      SampleView        `json:"sample" yaml:"sample"`
	Stats       []StatView        `json:"stats" yaml:"stats"`
	Alerts      []threshold.Alert `json:"alerts" yaml:"alerts"`
	Profile     ProfileView       `json:"profile" yaml:"profile"`
	Pacer       PacerView         `json:"pacer" yaml:"pacer"`
	Rules       []RuleView        `json:"rules" yaml:"rules"`
}

type SampleView struct {
	Seq         uint64             `json:"seq" yaml:"seq"`
	Timestamp   time.Time          `json:"timestamp" yaml:"timestamp"`
	FrameTimeMs float64            `json:"frame_time_ms" yaml:"frame_time_ms"`
	Foreground  bool               `json:"foreground" yaml:"foreground"`
	Charging    bool               `json:"charging" yaml:"charging"`
	Values      map[string]float64 `json:"values" yaml:"values"`
	Missing     []string           `json:"missing,omitempty" yaml:"missing,omitempty"`
}

type StatView struct {
	Metric    string  `json:"metric" yaml:"metric"`
	Current   float64 `json:"current" yaml:"current"`
	Min       float64 `json:"min" yaml:"min"`
	Max       float64 `json:"max" yaml:"max"`
	Mean      float64 `json:"mean" yaml:"mean"`
	StdDev    float64 `json:"stddev" yaml:"stddev"`
	Count     int     `json:"count" yaml:"count"`
	Available bool    `json:"available" yaml:"available"`
}

type ProfileView struct {
	ID       string             `json:"id" yaml:"id"`
	Name     string             `json:"name" yaml:"name"`
	Level    int                `json:"level" yaml:"level"`
	Params   map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
	Switches uint64             `json:"switches" yaml:"switches"`
}

type PacerView struct {
	State           string  `json:"state" yaml:"state"`
	Score           float64 `json:"score" yaml:"score"`
	TargetFPS       float64 `json:"target_fps" yaml:"target_fps"`
	SmoothedFrameMs float64 `json:"smoothed_frame_ms" yaml:"smoothed_frame_ms"`
	FrameVariance   float64 `json:"frame_variance" yaml:"frame_variance"`
	Background      bool    `json:"background" yaml:"background"`
	Forced          bool    `json:"forced" yaml:"forced"`
	Pending         string  `json:"pending" yaml:"pending"`
	Tier            string  `json:"tier" yaml:"tier"`
}

type RuleView struct {
	Name     string `json:"name" yaml:"name"`
	Applied  uint64 `json:"applied" yaml:"applied"`
	Failures uint64 `json:"failures" yaml:"failures"`
}

func sampleView(s sampler.Sample) SampleView {
	view := SampleView{
		Seq:         s.Seq,
		Timestamp:   s.Timestamp,
		FrameTimeMs: float64(s.FrameTime) / float64(time.Millisecond),
		Foreground:  s.Foreground,
		Charging:    s.Charging,
		Values:      make(map[string]float64),
	}
	for m, v := range s.Values() {
		view.Values[string(m)] = v
	}
	for _, m := range s.Missing() {
		view.Missing = append(view.Missing, string(m))
	}

	return view
}

func statViews(stats sampler.Stats) []StatView {
	views := make([]StatView, 0, len(stats))
	for m, st := range stats {
		views = append(views, StatView{
			Metric:    string(m),
			Current:   st.Current,
			Min:       st.Min,
			Max:       st.Max,
			Mean:      st.Mean,
			StdDev:    st.StdDev(),
			Count:     st.Count,
			Available: st.Available,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Metric < views[j].Metric })

	return views
}

func ruleViews(counts, failures map[string]uint64) []RuleView {
	views := make([]RuleView, 0, len(counts))
	for name, n := range counts {
		views = append(views, RuleView{Name: name, Applied: n, Failures: failures[name]})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })

	return views
}
