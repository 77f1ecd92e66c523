package decision

import (
	"context"
	"fmt"
	"time"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/state"
)

// LockdownStore persists the per-guild lockdown flag.
type LockdownStore interface {
	SetLockdown(ctx context.Context, guildID uint64, enabled bool) error
}

type lockdownState struct {
	active bool
	since  time.Time
	reason string
}

// LockdownStatus is a read-only view of a guild's lockdown.
type LockdownStatus struct {
	Active bool
	Since  time.Time
	Reason string
}

// LockdownManager is the in-memory authority for guild lockdowns. Memory is
// updated before persistence so a storage failure never reopens the guild.
type LockdownManager struct {
	guilds *state.Keyed[state.GuildKey, lockdownState]
	store  LockdownStore
	now    func() time.Time
}

func NewLockdownManager(store LockdownStore) *LockdownManager {
	return &LockdownManager{
		guilds: state.NewKeyed[state.GuildKey, lockdownState](),
		store:  store,
		now:    time.Now,
	}
}

// ActivateLockdown reports whether the guild was newly locked.
func (lm *LockdownManager) ActivateLockdown(ctx context.Context, guildID uint64, reason string) (bool, error) {
	changed := false
	lm.guilds.Update(state.GuildKey(guildID), func(s *lockdownState) {
		if !s.active {
			*s = lockdownState{active: true, since: lm.now(), reason: reason}
			changed = true
		}
	})
	if !changed {
		return false, nil
	}

	logging.Critical("Lockdown activated for guild %d: %s", guildID, reason)
	return true, lm.persist(ctx, guildID, true)
}

func (lm *LockdownManager) DeactivateLockdown(ctx context.Context, guildID uint64) (bool, error) {
	changed := false
	lm.guilds.View(state.GuildKey(guildID), func(s *lockdownState) {
		if s.active {
			*s = lockdownState{}
			changed = true
		}
	})
	if !changed {
		return false, nil
	}

	logging.Info("Lockdown lifted for guild %d", guildID)
	return true, lm.persist(ctx, guildID, false)
}

func (lm *LockdownManager) IsLockdown(guildID uint64) bool {
	return lm.Status(guildID).Active
}

func (lm *LockdownManager) Status(guildID uint64) LockdownStatus {
	var st LockdownStatus
	lm.guilds.View(state.GuildKey(guildID), func(s *lockdownState) {
		st = LockdownStatus{Active: s.active, Since: s.since, Reason: s.reason}
	})
	return st
}

// Restore marks guilds as locked without writing back to the store.
func (lm *LockdownManager) Restore(guildIDs []uint64) {
	for _, id := range guildIDs {
		lm.guilds.Update(state.GuildKey(id), func(s *lockdownState) {
			*s = lockdownState{active: true, since: lm.now(), reason: "restored"}
		})
	}
}

// Sweep forgets lifted lockdowns and returns the number still active.
func (lm *LockdownManager) Sweep() int {
	lm.guilds.Prune(func(_ state.GuildKey, s *lockdownState) bool {
		return !s.active
	})
	return lm.guilds.Len()
}

func (lm *LockdownManager) persist(ctx context.Context, guildID uint64, enabled bool) error {
	if lm.store == nil {
		return nil
	}
	if err := lm.store.SetLockdown(ctx, guildID, enabled); err != nil {
		return fmt.Errorf("failed to persist lockdown for guild %d: %w", guildID, err)
	}
	return nil
}
