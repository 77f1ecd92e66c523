package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-antiraid/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestGuildConfigDefaultsAndLockdown(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	cfg, err := d.GetGuildConfig(ctx, 1)
	require.NoError(t, err)
	assert.False(t, cfg.LockdownActive)

	require.NoError(t, d.SetLockdown(ctx, 1, true))
	require.NoError(t, d.SetLockdown(ctx, 2, true))
	require.NoError(t, d.SetLockdown(ctx, 2, false))

	cfg, err = d.GetGuildConfig(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cfg.LockdownActive)

	ids, err := d.LockedGuilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)

	require.NoError(t, d.SetLogChannel(ctx, 1, 999))
	cfg, err = d.GetGuildConfig(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "999", cfg.LogChannelID)
	assert.True(t, cfg.LockdownActive)
}

func TestIncidentsRoundTripAndBanCount(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	for i, age := range []time.Duration{time.Minute, 10 * time.Minute, 2 * time.Hour} {
		inc := models.NewIncident(7, uint64(100+i), models.IncidentBehavioralThreat, "critical", 0.97, "ban")
		inc.ActionTaken = "ban"
		inc.CreatedAt = now.Add(-age)
		inc.Evidence["spam_score"] = 0.9
		require.NoError(t, d.CreateIncident(ctx, inc))
	}

	kick := models.NewIncident(7, 200, models.IncidentBehavioralThreat, "high", 0.85, "kick")
	kick.ActionTaken = "kick"
	kick.CreatedAt = now
	require.NoError(t, d.CreateIncident(ctx, kick))

	none := models.NewIncident(7, 201, models.IncidentRaidDetection, "medium", 0.65, "raid")
	none.CreatedAt = now
	require.NoError(t, d.CreateIncident(ctx, none))

	count, err := d.CountRecentBans(ctx, 7, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = d.CountRecentBans(ctx, 8, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, count)

	recent, err := d.GetRecentIncidents(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, uint64(102), recent[len(recent)-1].UserID)
	assert.True(t, recent[0].CreatedAt.Equal(now))
	assert.Equal(t, uint64(7), recent[0].GuildID)

	var banned *models.Incident
	for _, inc := range recent {
		if inc.UserID == 100 {
			banned = inc
		}
	}
	require.NotNil(t, banned)
	assert.InDelta(t, 0.9, banned.Evidence["spam_score"], 1e-9)
	assert.Equal(t, "ban", banned.ActionTaken)
}

func TestForensicEventsAndRetention(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	old := models.NewForensicEvent(1, 2, models.ForensicMessage, "spam", 0.4)
	old.CreatedAt = now.Add(-100 * 24 * time.Hour)
	fresh := models.NewForensicEvent(1, 0, models.ForensicMemberJoin, "join", 0.1)
	fresh.Tags = []string{"raid"}
	fresh.Metadata["join_rate_5s"] = 3

	require.NoError(t, d.LogForensicEvent(ctx, old))
	require.NoError(t, d.LogForensicEvent(ctx, fresh))

	n, err := d.PurgeForensicEvents(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := d.CountForensicEvents(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWhitelist(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	ok, err := d.IsWhitelisted(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.AddWhitelist(ctx, 1, 2, "trusted", 3))
	require.NoError(t, d.AddWhitelist(ctx, 1, 2, "still trusted", 3))

	ok, err = d.IsWhitelisted(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	users, err := d.GetWhitelist(ctx, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "still trusted", users[0].Reason)
	assert.Equal(t, uint64(3), users[0].AddedBy)

	removed, err := d.RemoveWhitelist(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = d.RemoveWhitelist(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, removed)
}

type trapSink struct {
	channels map[uint64][]uint64
	commands map[uint64][]string
}

func (s *trapSink) RegisterHiddenChannel(guildID, channelID uint64) bool {
	s.channels[guildID] = append(s.channels[guildID], channelID)
	return true
}

func (s *trapSink) RegisterFakeCommand(guildID uint64, command string) bool {
	s.commands[guildID] = append(s.commands[guildID], command)
	return true
}

type restoreSink struct{ ids []uint64 }

func (r *restoreSink) Restore(ids []uint64) { r.ids = append(r.ids, ids...) }

func TestTrapsPersistAndSync(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.SaveTrap(ctx, 1, models.TrapHiddenChannel, "555"))
	require.NoError(t, d.SaveTrap(ctx, 1, models.TrapHiddenChannel, "555"))
	require.NoError(t, d.SaveTrap(ctx, 1, models.TrapFakeCommand, "!verify"))
	require.NoError(t, d.SaveTrap(ctx, 2, models.TrapFakeCommand, "!claim"))
	require.NoError(t, d.SaveTrap(ctx, 2, models.TrapFakeCommand, "!gone"))
	require.NoError(t, d.DeleteTrap(ctx, 2, models.TrapFakeCommand, "!gone"))

	sink := &trapSink{channels: map[uint64][]uint64{}, commands: map[uint64][]string{}}
	n, err := d.SyncTrapsToRegistry(ctx, sink)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint64{555}, sink.channels[1])
	assert.Equal(t, []string{"!verify"}, sink.commands[1])
	assert.Equal(t, []string{"!claim"}, sink.commands[2])

	require.NoError(t, d.SetLockdown(ctx, 9, true))
	r := &restoreSink{}
	n, err = d.SyncLockdownsToMemory(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{9}, r.ids)
}

func TestHoneypotCatchesAndProfiles(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.RecordHoneypotCatch(ctx, 1, 2, models.HoneypotCatch{
		TrapType: models.TrapHiddenChannel, TrapID: "channel_5", Severity: 0.8,
	}))
	count, err := d.CountHoneypotCatches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	p, err := d.GetBehaviorProfile(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, p)

	last := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, d.UpsertBehaviorProfile(ctx, &BehaviorProfile{
		GuildID: 1, UserID: 2, MessageCount: 5, LastMessageTime: last, SpamScore: 0.5, ThreatScore: 0.3,
	}))
	require.NoError(t, d.UpsertBehaviorProfile(ctx, &BehaviorProfile{
		GuildID: 1, UserID: 2, MessageCount: 6, LastMessageTime: last, SpamScore: 0.9, ThreatScore: 0.45,
	}))

	p, err = d.GetBehaviorProfile(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 6, p.MessageCount)
	assert.InDelta(t, 0.9, p.SpamScore, 1e-9)
	assert.True(t, p.LastMessageTime.Equal(last))

	require.NoError(t, d.DeleteBehaviorProfile(ctx, 1, 2))
	p, err = d.GetBehaviorProfile(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, p)
}
