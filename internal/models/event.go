package models

import "time"

// MemberJoin is the inbound join notification from the gateway. It carries
// no timestamp; the router stamps joins when it handles them.
type MemberJoin struct {
	GuildID        uint64
	UserID         uint64
	Username       string
	AvatarHash     string
	AccountCreated time.Time
	Bot            bool
}

// MessageEvent is the inbound guild message notification from the gateway.
type MessageEvent struct {
	GuildID   uint64
	ChannelID uint64
	UserID    uint64
	MessageID uint64
	Content   string
	Bot       bool
}

// JoinEvent is the ledger's immutable copy of a join.
type JoinEvent struct {
	UserID         uint64
	Username       string
	AccountCreated time.Time
	JoinedAt       time.Time
	AvatarHash     string
}

// ToJoinEvent stamps the join with the time it was handled.
func (m MemberJoin) ToJoinEvent(joinedAt time.Time) JoinEvent {
	return JoinEvent{
		UserID:         m.UserID,
		Username:       m.Username,
		AccountCreated: m.AccountCreated,
		JoinedAt:       joinedAt,
		AvatarHash:     m.AvatarHash,
	}
}

func (j JoinEvent) AccountAgeAt(now time.Time) time.Duration {
	return now.Sub(j.AccountCreated)
}

// MessageRecord is one retained entry of an actor's message history.
type MessageRecord struct {
	Content      string
	Timestamp    time.Time
	ChannelID    uint64
	HasLink      bool
	LinkCount    int
	MentionCount int
}
