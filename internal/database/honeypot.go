package database

import (
	"context"
	"fmt"

	"go-antiraid/internal/models"
	"go-antiraid/pkg/util"
)

func (d *Database) RecordHoneypotCatch(ctx context.Context, guildID, userID uint64, c models.HoneypotCatch) error {
	created := c.CaughtAt
	if created.IsZero() {
		created = d.now()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO honeypot_catches (guild_id, user_id, trap_type, trap_name, severity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		util.Uint64ToString(guildID), util.Uint64ToString(userID), string(c.TrapType), c.TrapID, c.Severity, created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record honeypot catch: %w", err)
	}
	return nil
}

func (d *Database) CountHoneypotCatches(ctx context.Context, guildID uint64) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM honeypot_catches WHERE guild_id = ?`,
		util.Uint64ToString(guildID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count honeypot catches: %w", err)
	}
	return count, nil
}

func (d *Database) SaveTrap(ctx context.Context, guildID uint64, trapType models.TrapType, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO honeypot_traps (guild_id, trap_type, value, created_at) VALUES (?, ?, ?, ?)`,
		util.Uint64ToString(guildID), string(trapType), value, d.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save trap: %w", err)
	}
	return nil
}

func (d *Database) DeleteTrap(ctx context.Context, guildID uint64, trapType models.TrapType, value string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM honeypot_traps WHERE guild_id = ? AND trap_type = ? AND value = ?`,
		util.Uint64ToString(guildID), string(trapType), value,
	)
	if err != nil {
		return fmt.Errorf("failed to delete trap: %w", err)
	}
	return nil
}

// LoadTraps returns every trap in registration order.
func (d *Database) LoadTraps(ctx context.Context) ([]TrapRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT guild_id, trap_type, value FROM honeypot_traps ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query traps: %w", err)
	}
	defer rows.Close()

	var traps []TrapRecord
	for rows.Next() {
		var (
			rec   TrapRecord
			guild string
		)
		if err := rows.Scan(&guild, &rec.TrapType, &rec.Value); err != nil {
			return nil, fmt.Errorf("failed to scan trap: %w", err)
		}
		rec.GuildID = util.ParseSnowflake(guild)
		traps = append(traps, rec)
	}
	return traps, rows.Err()
}
