package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SecurityConfig holds the raid and spam detection thresholds.
type SecurityConfig struct {
	RaidThreshold5s             uint32  `toml:"raid_threshold_5s" validate:"min=1"`
	RaidThreshold30s            uint32  `toml:"raid_threshold_30s" validate:"min=1"`
	RaidThreshold1m             uint32  `toml:"raid_threshold_1m" validate:"min=1"`
	RaidThreshold5m             uint32  `toml:"raid_threshold_5m" validate:"min=1"`
	NewAccountDays              int     `toml:"new_account_days" validate:"min=0"`
	UsernameSimilarityThreshold float64 `toml:"username_similarity_threshold" validate:"gte=0,lte=1"`
	SpamSimilarityThreshold     float64 `toml:"spam_similarity_threshold" validate:"gte=0,lte=1"`
	SuspiciousReactionMs        int     `toml:"suspicious_reaction_ms" validate:"min=0"`
}

// AutoModConfig holds the escalation bands and the lockdown window.
type AutoModConfig struct {
	Enabled                 bool    `toml:"enabled"`
	LowThreatThreshold      float64 `toml:"low_threat_threshold" validate:"gte=0,lte=1"`
	MediumThreatThreshold   float64 `toml:"medium_threat_threshold" validate:"gte=0,lte=1"`
	HighThreatThreshold     float64 `toml:"high_threat_threshold" validate:"gte=0,lte=1"`
	CriticalThreatThreshold float64 `toml:"critical_threat_threshold" validate:"gte=0,lte=1"`
	MessageBurstCount       int     `toml:"message_burst_count" validate:"min=1"`
	MessageBurstSeconds     int     `toml:"message_burst_seconds" validate:"min=1"`
	LockdownWindowMinutes   int     `toml:"lockdown_window_minutes" validate:"min=1,max=1440"`
	ActionCooldownSeconds   int     `toml:"action_cooldown_seconds" validate:"min=0"`
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		RaidThreshold5s:             5,
		RaidThreshold30s:            10,
		RaidThreshold1m:             15,
		RaidThreshold5m:             30,
		NewAccountDays:              7,
		UsernameSimilarityThreshold: 0.85,
		SpamSimilarityThreshold:     0.80,
		SuspiciousReactionMs:        100,
	}
}

func DefaultAutoModConfig() AutoModConfig {
	return AutoModConfig{
		Enabled:                 true,
		LowThreatThreshold:      0.3,
		MediumThreatThreshold:   0.6,
		HighThreatThreshold:     0.8,
		CriticalThreatThreshold: 0.95,
		MessageBurstCount:       10,
		MessageBurstSeconds:     10,
		LockdownWindowMinutes:   60,
		ActionCooldownSeconds:   300,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate rejects out-of-range thresholds and unordered auto-mod bands.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	am := c.AutoMod
	if am.LowThreatThreshold > am.MediumThreatThreshold ||
		am.MediumThreatThreshold > am.HighThreatThreshold ||
		am.HighThreatThreshold > am.CriticalThreatThreshold {
		return fmt.Errorf("invalid config: auto_mod thresholds must be ordered low <= medium <= high <= critical (got %.2f/%.2f/%.2f/%.2f)",
			am.LowThreatThreshold, am.MediumThreatThreshold, am.HighThreatThreshold, am.CriticalThreatThreshold)
	}

	sec := c.Security
	if sec.RaidThreshold5s > sec.RaidThreshold30s || sec.RaidThreshold30s > sec.RaidThreshold1m {
		return fmt.Errorf("invalid config: raid thresholds must not shrink as the window grows (got %d/%d/%d)",
			sec.RaidThreshold5s, sec.RaidThreshold30s, sec.RaidThreshold1m)
	}

	return nil
}
