package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-antiraid/internal/config"
	"go-antiraid/internal/ingest"
	"go-antiraid/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Bot.Token = "test-token"
	cfg.Database.Path = filepath.Join(dir, "antiraid.db")
	cfg.Forensics.IncidentLogPath = filepath.Join(dir, "incidents.jsonl")
	cfg.Metrics.Enabled = false
	cfg.Logging.Path = ""
	return cfg
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv("ANTIRAID_CONFIG", "")
	assert.Equal(t, "config.toml", ConfigPathFromEnv())

	t.Setenv("ANTIRAID_CONFIG", "/etc/antiraid.toml")
	assert.Equal(t, "/etc/antiraid.toml", ConfigPathFromEnv())
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[bot]\ntoken = \"\"\n"), 0o644))

	b := New(path)
	assert.Error(t, b.loadConfig())

	t.Setenv("DISCORD_TOKEN", "from-env")
	require.NoError(t, b.loadConfig())
	assert.Equal(t, "from-env", b.Config.Bot.Token)
}

func TestStartRequiresInitialize(t *testing.T) {
	assert.Error(t, New("config.toml").Start(context.Background()))
}

func TestWireBuildsComponents(t *testing.T) {
	c, err := Wire(testConfig(t), filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	t.Cleanup(func() { Shutdown(c) })

	assert.NotNil(t, c.Router)
	assert.NotNil(t, c.Dispatcher)
	assert.NotNil(t, c.Session)
	assert.NotNil(t, c.Journal)
	assert.NotNil(t, c.BanCache)
	assert.Equal(t, int(4), c.Store.Get().Network.WorkerCount)
}

func TestRestoreStateLoadsTrapsAndLockdowns(t *testing.T) {
	c, err := Wire(testConfig(t), "config.toml")
	require.NoError(t, err)
	t.Cleanup(func() { Shutdown(c) })

	ctx := context.Background()
	require.NoError(t, c.Database.SaveTrap(ctx, 1, models.TrapHiddenChannel, "555"))
	require.NoError(t, c.Database.SaveTrap(ctx, 1, models.TrapFakeCommand, "!nitro"))
	require.NoError(t, c.Database.SetLockdown(ctx, 2, true))

	require.NoError(t, restoreState(ctx, c))

	traps := c.Honeypot.Traps(1)
	assert.Equal(t, []uint64{555}, traps.HiddenChannels)
	assert.Equal(t, []string{"!nitro"}, traps.FakeCommands)
	assert.True(t, c.Lockdown.IsLockdown(2))
}

func TestRouteDispatchesEvents(t *testing.T) {
	c, err := Wire(testConfig(t), "config.toml")
	require.NoError(t, err)
	t.Cleanup(func() { Shutdown(c) })

	handle := Route(c.Router)
	now := time.Now()

	handle(context.Background(), ingest.JoinEvent(models.MemberJoin{
		GuildID:        1,
		UserID:         10,
		Username:       "alice",
		AccountCreated: now.Add(-365 * 24 * time.Hour),
	}))
	assert.Equal(t, uint32(1), c.Router.RaidStatus(1).JoinRate5s)

	handle(context.Background(), ingest.MessageEvent(models.MessageEvent{
		GuildID:   1,
		ChannelID: 2,
		UserID:    10,
		MessageID: 3,
		Content:   "hello there",
	}))
	assert.Equal(t, 1, c.Behavior.HistoryLen(1, 10))
}

func TestMaintenanceTasks(t *testing.T) {
	c, err := Wire(testConfig(t), "config.toml")
	require.NoError(t, err)
	t.Cleanup(func() { Shutdown(c) })

	ctx := context.Background()
	for _, name := range []string{"join_ledger", "cooldowns", "lockdowns", "forensic_retention", "database"} {
		assert.NoError(t, c.Watchdog.RunOnce(ctx, name), name)
		assert.True(t, c.Watchdog.IsHealthy(name), name)
	}

	assert.Error(t, c.Watchdog.RunOnce(ctx, "gateway"))
}

func TestShutdownWithoutStart(t *testing.T) {
	c, err := Wire(testConfig(t), "config.toml")
	require.NoError(t, err)

	assert.NoError(t, Shutdown(c))
	assert.NoError(t, Shutdown(nil))
}
