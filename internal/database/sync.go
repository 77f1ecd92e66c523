package database

import (
	"context"

	"go-antiraid/internal/models"
	"go-antiraid/pkg/util"
)

// TrapRegistrar receives persisted honeypot traps at startup.
type TrapRegistrar interface {
	RegisterHiddenChannel(guildID, channelID uint64) bool
	RegisterFakeCommand(guildID uint64, command string) bool
}

// LockdownRestorer receives guilds that were locked when the process stopped.
type LockdownRestorer interface {
	Restore(guildIDs []uint64)
}

// SyncTrapsToRegistry loads every persisted trap into the in-memory registry.
func (d *Database) SyncTrapsToRegistry(ctx context.Context, reg TrapRegistrar) (int, error) {
	traps, err := d.LoadTraps(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, t := range traps {
		switch models.TrapType(t.TrapType) {
		case models.TrapHiddenChannel:
			channelID := util.ParseSnowflake(t.Value)
			if channelID == 0 {
				continue
			}
			reg.RegisterHiddenChannel(t.GuildID, channelID)
		case models.TrapFakeCommand:
			reg.RegisterFakeCommand(t.GuildID, t.Value)
		default:
			continue
		}
		loaded++
	}
	return loaded, nil
}

// SyncLockdownsToMemory restores active lockdowns.
func (d *Database) SyncLockdownsToMemory(ctx context.Context, r LockdownRestorer) (int, error) {
	ids, err := d.LockedGuilds(ctx)
	if err != nil {
		return 0, err
	}
	r.Restore(ids)
	return len(ids), nil
}
