package ingest

import (
	"time"

	"go-antiraid/internal/models"
)

type EventKind uint8

const (
	EventMemberJoin EventKind = iota + 1
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventMemberJoin:
		return "join"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is one gateway notification waiting for detection.
type Event struct {
	Kind       EventKind
	GuildID    uint64
	Join       models.MemberJoin
	Message    models.MessageEvent
	ReceivedAt time.Time
}

func JoinEvent(j models.MemberJoin) Event {
	return Event{Kind: EventMemberJoin, GuildID: j.GuildID, Join: j, ReceivedAt: time.Now()}
}

func MessageEvent(m models.MessageEvent) Event {
	return Event{Kind: EventMessage, GuildID: m.GuildID, Message: m, ReceivedAt: time.Now()}
}
