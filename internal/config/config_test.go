package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "antiraid.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint32(5), cfg.Security.RaidThreshold5s)
	assert.Equal(t, uint32(30), cfg.Security.RaidThreshold5m)
	assert.Equal(t, 7, cfg.Security.NewAccountDays)
	assert.InDelta(t, 0.85, cfg.Security.UsernameSimilarityThreshold, 1e-9)
	assert.True(t, cfg.AutoMod.Enabled)
	assert.InDelta(t, 0.95, cfg.AutoMod.CriticalThreatThreshold, 1e-9)
	assert.Equal(t, 60, cfg.AutoMod.LockdownWindowMinutes)
	assert.Equal(t, 90, cfg.Forensics.RetentionDays)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Security, cfg.Security)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[security]
raid_threshold_5s = 3
new_account_days = 14

[auto_mod]
enabled = false
medium_threat_threshold = 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), cfg.Security.RaidThreshold5s)
	assert.Equal(t, uint32(10), cfg.Security.RaidThreshold30s)
	assert.Equal(t, 14, cfg.Security.NewAccountDays)
	assert.False(t, cfg.AutoMod.Enabled)
	assert.InDelta(t, 0.5, cfg.AutoMod.MediumThreatThreshold, 1e-9)
}

func TestLoadRejectsUnorderedBands(t *testing.T) {
	path := writeConfig(t, `
[auto_mod]
high_threat_threshold = 0.99
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ordered")
}

func TestLoadRejectsOutOfRangeSimilarity(t *testing.T) {
	path := writeConfig(t, `
[security]
username_similarity_threshold = 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsLockdownWindowBeyondBanHistory(t *testing.T) {
	path := writeConfig(t, `
[auto_mod]
lockdown_window_minutes = 1441
`)
	_, err := Load(path)
	require.Error(t, err)

	path = writeConfig(t, `
[auto_mod]
lockdown_window_minutes = 1440
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1440, cfg.AutoMod.LockdownWindowMinutes)
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	path := writeConfig(t, "[security\nraid_threshold_5s = ")
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token-from-env")
	t.Setenv("DATABASE_PATH", "/tmp/env.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AUTOMOD_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "token-from-env", cfg.Bot.Token)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.AutoMod.Enabled)
}

func TestStoreReplaceKeepsPreviousOnError(t *testing.T) {
	store := NewStore(nil)
	before := store.Get()

	bad := DefaultConfig()
	bad.AutoMod.LowThreatThreshold = 0.9
	require.Error(t, store.Replace(bad))
	assert.Same(t, before, store.Get())

	good := DefaultConfig()
	good.Security.RaidThreshold5s = 2
	require.NoError(t, store.Replace(good))
	assert.Equal(t, uint32(2), store.Security().RaidThreshold5s)
}

func TestWatcherReloadKeepsOldConfigOnInvalidFile(t *testing.T) {
	path := writeConfig(t, "[security]\nraid_threshold_5s = 4\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	store := NewStore(cfg)
	w := NewWatcher(path, store)

	var reloaded *Config
	w.OnReload(func(c *Config) { reloaded = c })

	require.NoError(t, os.WriteFile(path, []byte("[security]\nraid_threshold_5s = 2\n"), 0o644))
	w.reload()
	require.NotNil(t, reloaded)
	assert.Equal(t, uint32(2), store.Security().RaidThreshold5s)

	require.NoError(t, os.WriteFile(path, []byte("[security]\nusername_similarity_threshold = 7.0\n"), 0o644))
	w.reload()
	assert.Equal(t, uint32(2), store.Security().RaidThreshold5s)
	assert.InDelta(t, 0.85, store.Security().UsernameSimilarityThreshold, 1e-9)
}
