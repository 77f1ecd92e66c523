package decision

import (
	"fmt"
	"time"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
)

const (
	TimeoutMinutes   = 10
	BanDeleteDays    = 7
	LockdownBanCount = 3
)

// Policy maps a fused score to a moderation action. It reads the auto-mod
// configuration on every call so reloads apply immediately.
type Policy struct {
	cfg *config.Store
}

func NewPolicy(cfg *config.Store) *Policy {
	return &Policy{cfg: cfg}
}

// DetermineAction returns false when no action should be taken.
func (p *Policy) DetermineAction(score float64, level ThreatLevel) (models.Action, bool) {
	am := p.cfg.AutoMod()
	if !am.Enabled {
		return models.Action{}, false
	}

	switch level {
	case ThreatLow:
		if score >= am.LowThreatThreshold {
			return models.MonitorAction(), true
		}
		return models.Action{}, false
	case ThreatMedium:
		return models.TimeoutAction(TimeoutMinutes), true
	case ThreatHigh:
		return models.KickAction(fmt.Sprintf("High threat score: %.2f", score)), true
	case ThreatCritical:
		return models.BanAction(fmt.Sprintf("Critical threat detected: %.2f", score), BanDeleteDays), true
	default:
		return models.Action{}, false
	}
}

// Decide discretizes score and picks the action in one step.
func (p *Policy) Decide(score float64) (ThreatLevel, models.Action, bool) {
	level := LevelFromScore(score)
	action, ok := p.DetermineAction(score, level)
	return level, action, ok
}

// ShouldLockdown requires both a critical raid score and repeated bans inside
// the lockdown window.
func (p *Policy) ShouldLockdown(raidScore float64, recentBans int) bool {
	return raidScore >= p.cfg.AutoMod().CriticalThreatThreshold && recentBans >= LockdownBanCount
}

func (p *Policy) LockdownWindow() time.Duration {
	return time.Duration(p.cfg.AutoMod().LockdownWindowMinutes) * time.Minute
}

// ForensicWorthy reports whether a score is above the low threshold.
func (p *Policy) ForensicWorthy(score float64) bool {
	return score > p.cfg.AutoMod().LowThreatThreshold
}

// IncidentWorthy reports whether a score reaches the medium threshold.
func (p *Policy) IncidentWorthy(score float64) bool {
	return score >= p.cfg.AutoMod().MediumThreatThreshold
}
