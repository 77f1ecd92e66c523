package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"go-antiraid/pkg/util"
)

type Database struct {
	db  *sql.DB
	now func() time.Time
}

var globalDB *Database

// Open creates or opens the SQLite database at dbPath and applies the schema.
func Open(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	d := &Database{db: db, now: time.Now}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return d, nil
}

// Initialize opens the process-wide database returned by GetDB.
func Initialize(dbPath string) (*Database, error) {
	d, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	globalDB = d
	return d, nil
}

// GetDB returns the process-wide database, or nil before Initialize.
func GetDB() *Database {
	return globalDB
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS guild_config (
		guild_id TEXT PRIMARY KEY,
		lockdown_active INTEGER NOT NULL DEFAULT 0,
		log_channel_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		incident_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		threat_score REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		evidence TEXT NOT NULL DEFAULT '{}',
		action_taken TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_guild_time ON incidents(guild_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_incidents_action ON incidents(guild_id, action_taken, created_at);

	CREATE TABLE IF NOT EXISTS forensic_events (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		threat_score REAL NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_forensic_guild_time ON forensic_events(guild_id, created_at);

	CREATE TABLE IF NOT EXISTS honeypot_traps (
		guild_id TEXT NOT NULL,
		trap_type TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (guild_id, trap_type, value)
	);

	CREATE TABLE IF NOT EXISTS honeypot_catches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		trap_type TEXT NOT NULL,
		trap_name TEXT NOT NULL,
		severity REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_honeypot_catches_user ON honeypot_catches(guild_id, user_id);

	CREATE TABLE IF NOT EXISTS whitelisted_users (
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		added_by TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		PRIMARY KEY (guild_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS behavior_profiles (
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		last_message_time INTEGER NOT NULL DEFAULT 0,
		spam_score REAL NOT NULL DEFAULT 0,
		link_density REAL NOT NULL DEFAULT 0,
		mention_ratio REAL NOT NULL DEFAULT 0,
		caps_ratio REAL NOT NULL DEFAULT 0,
		emoji_density REAL NOT NULL DEFAULT 0,
		threat_score REAL NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (guild_id, user_id)
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// GetGuildConfig returns defaults for a guild that has never been configured.
func (d *Database) GetGuildConfig(ctx context.Context, guildID uint64) (*GuildConfig, error) {
	cfg := &GuildConfig{GuildID: guildID}
	var lockdown int
	err := d.db.QueryRowContext(ctx,
		`SELECT lockdown_active, log_channel_id, created_at, updated_at FROM guild_config WHERE guild_id = ?`,
		util.Uint64ToString(guildID),
	).Scan(&lockdown, &cfg.LogChannelID, &cfg.CreatedAt, &cfg.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guild config: %w", err)
	}

	cfg.LockdownActive = lockdown != 0
	return cfg, nil
}

func (d *Database) SetLockdown(ctx context.Context, guildID uint64, enabled bool) error {
	now := d.now().UnixMilli()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO guild_config (guild_id, lockdown_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET lockdown_active = excluded.lockdown_active, updated_at = excluded.updated_at`,
		util.Uint64ToString(guildID), boolToInt(enabled), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to set lockdown: %w", err)
	}
	return nil
}

func (d *Database) LockedGuilds(ctx context.Context) ([]uint64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT guild_id FROM guild_config WHERE lockdown_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locked guilds: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan guild ID: %w", err)
		}
		if id := util.ParseSnowflake(raw); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (d *Database) SetLogChannel(ctx context.Context, guildID, channelID uint64) error {
	now := d.now().UnixMilli()
	channel := ""
	if channelID != 0 {
		channel = util.Uint64ToString(channelID)
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO guild_config (guild_id, log_channel_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET log_channel_id = excluded.log_channel_id, updated_at = excluded.updated_at`,
		util.Uint64ToString(guildID), channel, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to set log channel: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
