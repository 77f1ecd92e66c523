package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	IncidentRaidDetection    = "raid_detection"
	IncidentBehavioralThreat = "behavioral_threat"

	ForensicMemberJoin = "member_join"
	ForensicMessage    = "message"
)

// Incident is written once per triggering event.
type Incident struct {
	ID           string
	GuildID      uint64
	UserID       uint64
	IncidentType string
	Severity     string
	ThreatScore  float64
	Description  string
	Evidence     map[string]interface{}
	ActionTaken  string
	CreatedAt    time.Time
}

func NewIncident(guildID, userID uint64, incidentType, severity string, score float64, description string) *Incident {
	return &Incident{
		ID:           uuid.NewString(),
		GuildID:      guildID,
		UserID:       userID,
		IncidentType: incidentType,
		Severity:     severity,
		ThreatScore:  score,
		Description:  description,
		Evidence:     make(map[string]interface{}),
		CreatedAt:    time.Now().UTC(),
	}
}

// ForensicEvent is a lower-severity audit record kept for retention_days.
type ForensicEvent struct {
	ID          string
	GuildID     uint64
	UserID      uint64
	EventType   string
	Content     string
	Metadata    map[string]interface{}
	ThreatScore float64
	Tags        []string
	CreatedAt   time.Time
}

func NewForensicEvent(guildID, userID uint64, eventType, content string, score float64) *ForensicEvent {
	return &ForensicEvent{
		ID:          uuid.NewString(),
		GuildID:     guildID,
		UserID:      userID,
		EventType:   eventType,
		Content:     content,
		Metadata:    make(map[string]interface{}),
		ThreatScore: score,
		CreatedAt:   time.Now().UTC(),
	}
}

type TrapType string

const (
	TrapHiddenChannel    TrapType = "hidden_channel"
	TrapFakeCommand      TrapType = "fake_command"
	TrapSuspiciousTiming TrapType = "suspicious_timing"
)

// HoneypotCatch records one trap trigger by an actor.
type HoneypotCatch struct {
	TrapType TrapType
	TrapID   string
	Severity float64
	CaughtAt time.Time
}
