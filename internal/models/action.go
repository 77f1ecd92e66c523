package models

import "fmt"

type ActionType uint8

const (
	ActionTypeNone ActionType = iota
	ActionTypeMonitor
	ActionTypeTimeout
	ActionTypeKick
	ActionTypeBan
	ActionTypeLockdown
)

func (t ActionType) String() string {
	switch t {
	case ActionTypeMonitor:
		return "monitor"
	case ActionTypeTimeout:
		return "timeout"
	case ActionTypeKick:
		return "kick"
	case ActionTypeBan:
		return "ban"
	case ActionTypeLockdown:
		return "lockdown"
	default:
		return "none"
	}
}

// Action is a moderation decision. Only the fields of its Type are meaningful:
// Minutes for Timeout, Reason for Kick and Ban, DeleteDays for Ban.
type Action struct {
	Type       ActionType
	GuildID    uint64
	TargetID   uint64
	Minutes    int
	Reason     string
	DeleteDays int
}

func MonitorAction() Action {
	return Action{Type: ActionTypeMonitor}
}

func TimeoutAction(minutes int) Action {
	return Action{Type: ActionTypeTimeout, Minutes: minutes}
}

func KickAction(reason string) Action {
	return Action{Type: ActionTypeKick, Reason: reason}
}

func BanAction(reason string, deleteDays int) Action {
	return Action{Type: ActionTypeBan, Reason: reason, DeleteDays: deleteDays}
}

func LockdownAction() Action {
	return Action{Type: ActionTypeLockdown, Reason: "Emergency lockdown"}
}

// For binds the action to a guild and target user.
func (a Action) For(guildID, targetID uint64) Action {
	a.GuildID = guildID
	a.TargetID = targetID
	return a
}

func (a Action) Name() string {
	return a.Type.String()
}

func (a Action) String() string {
	switch a.Type {
	case ActionTypeTimeout:
		return fmt.Sprintf("Timeout(%dm)", a.Minutes)
	case ActionTypeKick:
		return fmt.Sprintf("Kick(%q)", a.Reason)
	case ActionTypeBan:
		return fmt.Sprintf("Ban(%q, %dd)", a.Reason, a.DeleteDays)
	case ActionTypeMonitor:
		return "Monitor"
	case ActionTypeLockdown:
		return "Lockdown"
	default:
		return "None"
	}
}

// IsEnforcing reports whether the executor must touch the platform.
func (a Action) IsEnforcing() bool {
	return a.Type != ActionTypeNone && a.Type != ActionTypeMonitor
}
