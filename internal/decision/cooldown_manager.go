package decision

import (
	"time"

	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

// CooldownManager suppresses repeating the same enforcement on the same member
// while a previous one is still fresh.
type CooldownManager struct {
	entries  *state.Keyed[state.ActorKey, map[models.ActionType]time.Time]
	duration time.Duration
	now      func() time.Time
}

func NewCooldownManager(duration time.Duration) *CooldownManager {
	return &CooldownManager{
		entries:  state.NewKeyed[state.ActorKey, map[models.ActionType]time.Time](),
		duration: duration,
		now:      time.Now,
	}
}

func (cm *CooldownManager) SetClock(now func() time.Time) {
	cm.now = now
}

// TryAcquire records an execution and reports true, or reports false while
// the same action type is still cooling down for this member.
func (cm *CooldownManager) TryAcquire(guildID, userID uint64, actionType models.ActionType) bool {
	now := cm.now()
	acquired := false
	cm.entries.Update(state.ActorKey{GuildID: guildID, UserID: userID}, func(m *map[models.ActionType]time.Time) {
		if *m == nil {
			*m = make(map[models.ActionType]time.Time)
		}
		if last, ok := (*m)[actionType]; ok && now.Sub(last) < cm.duration {
			return
		}
		(*m)[actionType] = now
		acquired = true
	})
	return acquired
}

func (cm *CooldownManager) GetRemainingCooldown(guildID, userID uint64, actionType models.ActionType) time.Duration {
	var remaining time.Duration
	cm.entries.View(state.ActorKey{GuildID: guildID, UserID: userID}, func(m *map[models.ActionType]time.Time) {
		if last, ok := (*m)[actionType]; ok {
			remaining = cm.duration - cm.now().Sub(last)
		}
	})
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (cm *CooldownManager) Reset(guildID, userID uint64) {
	cm.entries.Delete(state.ActorKey{GuildID: guildID, UserID: userID})
}

// Sweep drops members whose every cooldown has expired.
func (cm *CooldownManager) Sweep() int {
	now := cm.now()
	return cm.entries.Prune(func(_ state.ActorKey, m *map[models.ActionType]time.Time) bool {
		for _, last := range *m {
			if now.Sub(last) < cm.duration {
				return false
			}
		}
		return true
	})
}
