package pacer

import "time"

// State of the pacing state machine.
type State int

const (
	Nominal State = iota
	Degraded
	Throttled
	Recovering
)

func (s State) String() string {
	switch s {
	case Nominal:
		return "nominal"
	case Degraded:
		return "degraded"
	case Throttled:
		return "throttled"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// Recommendation is what a transition asks of the quality profile.
type Recommendation int

const (
	None Recommendation = iota
	Reduce
	Increase
	Floor
)

func (r Recommendation) String() string {
	switch r {
	case None:
		return "none"
	case Reduce:
		return "reduce"
	case Increase:
		return "increase"
	case Floor:
		return "floor"
	default:
		return "unknown"
	}
}

// ParseRecommendation maps a configured name onto a Recommendation.
func ParseRecommendation(name string) (Recommendation, bool) {
	for _, r := range []Recommendation{None, Reduce, Increase, Floor} {
		if r.String() == name {
			return r, true
		}
	}
	return None, false
}

// Transition records one state change and the single recommendation it
// emitted.
type Transition struct {
	From           State
	To             State
	Recommendation Recommendation
	Score          Score
	At             time.Time
	Reason         string
}

// Score is the normalized performance score in [0, 1].
type Score float64

// Status is a read-only view of the pacer.
type Status struct {
	State           State
	Score           Score
	TargetFPS       float64
	SmoothedFrameMs float64
	FrameVariance   float64
	Background      bool
	Forced          bool
	Pending         Recommendation
	Tier            string
}
