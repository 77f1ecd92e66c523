package database

import "time"

// GuildConfig is the per-guild row of guild_config.
type GuildConfig struct {
	GuildID        uint64
	LockdownActive bool
	LogChannelID   string
	CreatedAt      int64
	UpdatedAt      int64
}

// TrapRecord is a persisted honeypot trap registration.
type TrapRecord struct {
	GuildID  uint64
	TrapType string
	Value    string
}

// WhitelistedUser is an exempt guild member.
type WhitelistedUser struct {
	GuildID   uint64
	UserID    uint64
	Reason    string
	AddedBy   uint64
	CreatedAt time.Time
}

// BehaviorProfile is the latest metrics snapshot stored for a member.
type BehaviorProfile struct {
	GuildID         uint64
	UserID          uint64
	MessageCount    int
	LastMessageTime time.Time
	SpamScore       float64
	LinkDensity     float64
	MentionRatio    float64
	CapsRatio       float64
	EmojiDensity    float64
	ThreatScore     float64
	UpdatedAt       time.Time
}
