package database

import (
	"context"
	"fmt"
	"time"

	"go-antiraid/pkg/util"
)

func (d *Database) AddWhitelist(ctx context.Context, guildID, userID uint64, reason string, addedBy uint64) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO whitelisted_users (guild_id, user_id, reason, added_by, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO UPDATE SET reason = excluded.reason, added_by = excluded.added_by`,
		util.Uint64ToString(guildID), util.Uint64ToString(userID), reason, util.Uint64ToString(addedBy), d.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to add whitelist entry: %w", err)
	}
	return nil
}

func (d *Database) RemoveWhitelist(ctx context.Context, guildID, userID uint64) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM whitelisted_users WHERE guild_id = ? AND user_id = ?`,
		util.Uint64ToString(guildID), util.Uint64ToString(userID),
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove whitelist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Database) IsWhitelisted(ctx context.Context, guildID, userID uint64) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM whitelisted_users WHERE guild_id = ? AND user_id = ?`,
		util.Uint64ToString(guildID), util.Uint64ToString(userID),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check whitelist: %w", err)
	}
	return count > 0, nil
}

func (d *Database) GetWhitelist(ctx context.Context, guildID uint64) ([]*WhitelistedUser, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, reason, added_by, created_at FROM whitelisted_users WHERE guild_id = ? ORDER BY created_at`,
		util.Uint64ToString(guildID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query whitelist: %w", err)
	}
	defer rows.Close()

	var users []*WhitelistedUser
	for rows.Next() {
		var (
			u              WhitelistedUser
			user, addedBy  string
			createdAtMilli int64
		)
		if err := rows.Scan(&user, &u.Reason, &addedBy, &createdAtMilli); err != nil {
			return nil, fmt.Errorf("failed to scan whitelist entry: %w", err)
		}
		u.GuildID = guildID
		u.UserID = util.ParseSnowflake(user)
		u.AddedBy = util.ParseSnowflake(addedBy)
		u.CreatedAt = time.UnixMilli(createdAtMilli).UTC()
		users = append(users, &u)
	}
	return users, rows.Err()
}
