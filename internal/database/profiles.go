package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-antiraid/pkg/util"
)

func (d *Database) UpsertBehaviorProfile(ctx context.Context, p *BehaviorProfile) error {
	now := d.now()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO behavior_profiles (guild_id, user_id, message_count, last_message_time, spam_score, link_density,
		   mention_ratio, caps_ratio, emoji_density, threat_score, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO UPDATE SET
		   message_count = excluded.message_count,
		   last_message_time = excluded.last_message_time,
		   spam_score = excluded.spam_score,
		   link_density = excluded.link_density,
		   mention_ratio = excluded.mention_ratio,
		   caps_ratio = excluded.caps_ratio,
		   emoji_density = excluded.emoji_density,
		   threat_score = excluded.threat_score,
		   updated_at = excluded.updated_at`,
		util.Uint64ToString(p.GuildID), util.Uint64ToString(p.UserID), p.MessageCount, p.LastMessageTime.UnixMilli(),
		p.SpamScore, p.LinkDensity, p.MentionRatio, p.CapsRatio, p.EmojiDensity, p.ThreatScore, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert behavior profile: %w", err)
	}
	return nil
}

// GetBehaviorProfile returns nil without error when no snapshot exists.
func (d *Database) GetBehaviorProfile(ctx context.Context, guildID, userID uint64) (*BehaviorProfile, error) {
	p := &BehaviorProfile{GuildID: guildID, UserID: userID}
	var lastMsg, updated int64
	err := d.db.QueryRowContext(ctx,
		`SELECT message_count, last_message_time, spam_score, link_density, mention_ratio, caps_ratio, emoji_density,
		   threat_score, updated_at
		 FROM behavior_profiles WHERE guild_id = ? AND user_id = ?`,
		util.Uint64ToString(guildID), util.Uint64ToString(userID),
	).Scan(&p.MessageCount, &lastMsg, &p.SpamScore, &p.LinkDensity, &p.MentionRatio, &p.CapsRatio, &p.EmojiDensity,
		&p.ThreatScore, &updated)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load behavior profile: %w", err)
	}

	p.LastMessageTime = time.UnixMilli(lastMsg).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return p, nil
}

func (d *Database) DeleteBehaviorProfile(ctx context.Context, guildID, userID uint64) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM behavior_profiles WHERE guild_id = ? AND user_id = ?`,
		util.Uint64ToString(guildID), util.Uint64ToString(userID),
	)
	if err != nil {
		return fmt.Errorf("failed to delete behavior profile: %w", err)
	}
	return nil
}
