package pacer

// Capabilities are static hardware counters read once at startup.
type Capabilities struct {
	MemoryBytes    uint64
	Cores          int
	GPUMemoryBytes uint64
}

// Tier is a device class with the minimum capabilities it requires and the
// targets it seeds.
type Tier struct {
	Name              string
	MinMemoryBytes    uint64
	MinCores          int
	MinGPUMemoryBytes uint64
	TargetFPS         float64
	// FloorLevel and InitialLevel are quality profile levels.
	FloorLevel   int
	InitialLevel int
}

func (t Tier) admits(caps Capabilities) bool {
	return caps.MemoryBytes >= t.MinMemoryBytes &&
		caps.Cores >= t.MinCores &&
		caps.GPUMemoryBytes >= t.MinGPUMemoryBytes
}

const gib = 1 << 30

// DefaultTiers returns the stock low, medium and high classes.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "low", TargetFPS: 30, FloorLevel: 0, InitialLevel: 0},
		{Name: "medium", MinMemoryBytes: 4 * gib, MinCores: 4, TargetFPS: 60, FloorLevel: 0, InitialLevel: 1},
		{Name: "high", MinMemoryBytes: 8 * gib, MinCores: 8, MinGPUMemoryBytes: 4 * gib, TargetFPS: 60, FloorLevel: 1, InitialLevel: 2},
	}
}

// ClassifyTier returns the last tier in tiers whose minimums caps meets.
// Tiers are listed from least to most demanding; the first tier is the
// fallback when none admits caps.
func ClassifyTier(caps Capabilities, tiers []Tier) Tier {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}

	chosen := tiers[0]
	for _, t := range tiers[1:] {
		if t.admits(caps) {
			chosen = t
		}
	}

	return chosen
}
