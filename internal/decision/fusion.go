package decision

const (
	RaidWeight       = 0.4
	BehaviorWeight   = 0.4
	HoneypotWeight   = 0.3
	NewAccountWeight = 0.1
)

// CombineThreat fuses the independent detector outputs into one score in [0,1].
// The honeypot term only contributes when the multiplier is positive.
func CombineThreat(raidScore, behaviorScore, honeypotMultiplier float64, isNewAccount bool) float64 {
	combined := RaidWeight*raidScore + BehaviorWeight*behaviorScore

	if honeypotMultiplier > 0 {
		combined += HoneypotWeight * honeypotMultiplier
	}
	if isNewAccount {
		combined += NewAccountWeight
	}

	switch {
	case !(combined > 0):
		return 0
	case combined > 1:
		return 1
	default:
		return combined
	}
}
