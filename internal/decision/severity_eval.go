package decision

type ThreatLevel uint8

const (
	ThreatLow ThreatLevel = iota
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

// Fixed cut points between levels. These are independent of the configurable
// auto-mod thresholds.
const (
	MediumCut   = 0.6
	HighCut     = 0.8
	CriticalCut = 0.95
)

func LevelFromScore(score float64) ThreatLevel {
	switch {
	case score >= CriticalCut:
		return ThreatCritical
	case score >= HighCut:
		return ThreatHigh
	case score >= MediumCut:
		return ThreatMedium
	default:
		return ThreatLow
	}
}

func (l ThreatLevel) String() string {
	switch l {
	case ThreatLow:
		return "low"
	case ThreatMedium:
		return "medium"
	case ThreatHigh:
		return "high"
	case ThreatCritical:
		return "critical"
	default:
		return "unknown"
	}
}
