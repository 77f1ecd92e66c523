package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go-antiraid/internal/models"
	"go-antiraid/pkg/util"
)

func (d *Database) CreateIncident(ctx context.Context, inc *models.Incident) error {
	evidence, err := json.Marshal(inc.Evidence)
	if err != nil {
		return fmt.Errorf("failed to encode incident evidence: %w", err)
	}

	var action sql.NullString
	if inc.ActionTaken != "" {
		action = sql.NullString{String: inc.ActionTaken, Valid: true}
	}

	created := inc.CreatedAt
	if created.IsZero() {
		created = d.now()
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO incidents (id, guild_id, user_id, incident_type, severity, threat_score, description, evidence, action_taken, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, util.Uint64ToString(inc.GuildID), util.Uint64ToString(inc.UserID),
		inc.IncidentType, inc.Severity, inc.ThreatScore, inc.Description, string(evidence), action, created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

func (d *Database) GetRecentIncidents(ctx context.Context, guildID uint64, limit int) ([]*models.Incident, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, guild_id, user_id, incident_type, severity, threat_score, description, evidence, action_taken, created_at
		 FROM incidents WHERE guild_id = ? ORDER BY created_at DESC LIMIT ?`,
		util.Uint64ToString(guildID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		var (
			inc             models.Incident
			guild, user     string
			evidence        string
			action          sql.NullString
			createdAtUnixMs int64
		)
		if err := rows.Scan(&inc.ID, &guild, &user, &inc.IncidentType, &inc.Severity, &inc.ThreatScore,
			&inc.Description, &evidence, &action, &createdAtUnixMs); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		inc.GuildID = util.ParseSnowflake(guild)
		inc.UserID = util.ParseSnowflake(user)
		inc.ActionTaken = action.String
		inc.CreatedAt = time.UnixMilli(createdAtUnixMs).UTC()
		if err := json.Unmarshal([]byte(evidence), &inc.Evidence); err != nil {
			inc.Evidence = map[string]interface{}{}
		}
		incidents = append(incidents, &inc)
	}

	return incidents, rows.Err()
}

// CountRecentBans counts incidents that ended in a ban within the trailing window.
func (d *Database) CountRecentBans(ctx context.Context, guildID uint64, window time.Duration) (int, error) {
	since := d.now().Add(-window).UnixMilli()

	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE guild_id = ? AND action_taken = 'ban' AND created_at >= ?`,
		util.Uint64ToString(guildID), since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent bans: %w", err)
	}
	return count, nil
}

func (d *Database) LogForensicEvent(ctx context.Context, ev *models.ForensicEvent) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode forensic metadata: %w", err)
	}
	tags := ev.Tags
	if tags == nil {
		tags = []string{}
	}
	tagData, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode forensic tags: %w", err)
	}

	created := ev.CreatedAt
	if created.IsZero() {
		created = d.now()
	}

	user := ""
	if ev.UserID != 0 {
		user = util.Uint64ToString(ev.UserID)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO forensic_events (id, guild_id, user_id, event_type, content, metadata, threat_score, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, util.Uint64ToString(ev.GuildID), user, ev.EventType, ev.Content,
		string(metadata), ev.ThreatScore, string(tagData), created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to log forensic event: %w", err)
	}
	return nil
}

func (d *Database) CountForensicEvents(ctx context.Context, guildID uint64) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forensic_events WHERE guild_id = ?`,
		util.Uint64ToString(guildID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count forensic events: %w", err)
	}
	return count, nil
}

// PurgeForensicEvents deletes forensic events older than the retention period.
func (d *Database) PurgeForensicEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := d.now().Add(-retention).UnixMilli()
	res, err := d.db.ExecContext(ctx, `DELETE FROM forensic_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge forensic events: %w", err)
	}
	return res.RowsAffected()
}
