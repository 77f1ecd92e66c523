package detectors

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLedger(t *testing.T) (*JoinLedger, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	l := NewJoinLedger(config.NewStore(nil))
	l.SetClock(clock.Now)
	return l, clock
}

func join(userID uint64, name string, joined time.Time, accountAge time.Duration, avatar string) models.JoinEvent {
	return models.JoinEvent{
		UserID:         userID,
		Username:       name,
		AccountCreated: joined.Add(-accountAge),
		JoinedAt:       joined,
		AvatarHash:     avatar,
	}
}

const oldAccount = 365 * 24 * time.Hour

func TestAnalyzeWithoutJoinsIsSafe(t *testing.T) {
	l, _ := newLedger(t)

	a := l.Analyze(42)
	assert.Equal(t, SafeRaidAnalysis(), a)
	assert.False(t, a.IsRaid)
	assert.Zero(t, a.ThreatScore)
	assert.Empty(t, a.Reasons)
}

func TestJoinBurstCountsFiveSecondWindow(t *testing.T) {
	l, clock := newLedger(t)
	threshold := int(config.DefaultSecurityConfig().RaidThreshold5s)

	n := threshold + 2
	for i := 0; i < n; i++ {
		l.RecordJoin(1, join(uint64(i), fmt.Sprintf("member%d", i*7919), clock.Now(), oldAccount, ""))
		clock.Advance(500 * time.Millisecond)
	}

	a := l.Analyze(1)
	assert.Equal(t, uint32(n), a.JoinRate5s)
	assert.Equal(t, uint32(n), a.JoinRate5m)
	require.NotEmpty(t, a.Reasons)
	assert.Contains(t, a.Reasons[0], "5 seconds")
}

func TestJoinWindowsExcludeOlderEntries(t *testing.T) {
	l, clock := newLedger(t)

	l.RecordJoin(1, join(1, "a", clock.Now(), oldAccount, ""))
	clock.Advance(2 * time.Minute)
	l.RecordJoin(1, join(2, "b", clock.Now(), oldAccount, ""))
	clock.Advance(10 * time.Second)

	a := l.Analyze(1)
	assert.Equal(t, uint32(0), a.JoinRate5s)
	assert.Equal(t, uint32(1), a.JoinRate30s)
	assert.Equal(t, uint32(1), a.JoinRate1m)
	assert.Equal(t, uint32(2), a.JoinRate5m)
}

func TestNewAccountRatioIsMonotonic(t *testing.T) {
	l, clock := newLedger(t)

	l.RecordJoin(1, join(1, "veteran", clock.Now(), oldAccount, ""))
	l.RecordJoin(1, join(2, "elder", clock.Now(), oldAccount, ""))

	prev := l.Analyze(1).NewAccountRatio
	assert.Zero(t, prev)

	for i := 0; i < 8; i++ {
		l.RecordJoin(1, join(uint64(10+i), "fresh", clock.Now(), time.Hour, ""))
		cur := l.Analyze(1).NewAccountRatio
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	assert.InDelta(t, 0.8, prev, 1e-9)
}

func TestUsernameSimilarity(t *testing.T) {
	l, clock := newLedger(t)
	l.RecordJoin(1, join(1, "raidbot", clock.Now(), oldAccount, ""))
	l.RecordJoin(1, join(2, "raidbot", clock.Now(), oldAccount, ""))
	assert.InDelta(t, 1.0, l.Analyze(1).UsernameSimilarity, 1e-9)

	l.RecordJoin(2, join(1, "abc", clock.Now(), oldAccount, ""))
	l.RecordJoin(2, join(2, "xyz", clock.Now(), oldAccount, ""))
	l.RecordJoin(2, join(3, "123", clock.Now(), oldAccount, ""))
	assert.Less(t, l.Analyze(2).UsernameSimilarity, 0.85)

	l.RecordJoin(3, join(1, "solo", clock.Now(), oldAccount, ""))
	assert.Zero(t, l.Analyze(3).UsernameSimilarity)
}

func TestAvatarDuplicationIgnoresMissingAvatars(t *testing.T) {
	l, clock := newLedger(t)
	for i := 0; i < 3; i++ {
		l.RecordJoin(1, join(uint64(i), fmt.Sprintf("u%d", i), clock.Now(), oldAccount, "deadbeef"))
	}
	l.RecordJoin(1, join(9, "noavatar", clock.Now(), oldAccount, ""))
	assert.InDelta(t, 0.75, l.Analyze(1).AvatarDuplication, 1e-9)

	for i := 0; i < 4; i++ {
		l.RecordJoin(2, join(uint64(i), fmt.Sprintf("u%d", i), clock.Now(), oldAccount, ""))
	}
	assert.Zero(t, l.Analyze(2).AvatarDuplication)
}

func TestCoordinatedRaidIsFlaggedAndCapped(t *testing.T) {
	l, clock := newLedger(t)
	for i := 0; i < 10; i++ {
		l.RecordJoin(1, join(uint64(i), fmt.Sprintf("raider%d", i), clock.Now(), time.Hour, "samehash"))
		clock.Advance(300 * time.Millisecond)
	}

	a := l.Analyze(1)
	assert.True(t, a.IsRaid)
	assert.InDelta(t, 1.0, a.ThreatScore, 1e-9)
	assert.InDelta(t, 1.0, a.NewAccountRatio, 1e-9)
	assert.Greater(t, a.UsernameSimilarity, 0.85)
	assert.Len(t, a.Reasons, 5)
}

func TestRecordJoinPurgesPastRetention(t *testing.T) {
	l, clock := newLedger(t)
	l.RecordJoin(1, join(1, "early", clock.Now(), oldAccount, ""))
	_, ok := l.LastJoin(1, 1)
	require.True(t, ok)

	clock.Advance(JoinRetention + time.Second)
	l.RecordJoin(1, join(2, "late", clock.Now(), oldAccount, ""))

	_, ok = l.LastJoin(1, 1)
	assert.False(t, ok)
	last, ok := l.LastJoin(1, 2)
	require.True(t, ok)
	assert.Equal(t, "late", last.Username)
}

func TestSweepDropsIdleGuilds(t *testing.T) {
	l, clock := newLedger(t)
	l.RecordJoin(1, join(1, "a", clock.Now(), oldAccount, ""))
	clock.Advance(8 * time.Minute)
	l.RecordJoin(2, join(1, "b", clock.Now(), oldAccount, ""))
	clock.Advance(3 * time.Minute)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.GuildCount())
	assert.Equal(t, SafeRaidAnalysis(), l.Analyze(1))
}

func TestIsNewAccount(t *testing.T) {
	l, clock := newLedger(t)
	assert.True(t, l.IsNewAccount(clock.Now().Add(-24*time.Hour)))
	assert.False(t, l.IsNewAccount(clock.Now().Add(-30*24*time.Hour)))
	assert.False(t, l.IsNewAccount(time.Time{}))
}

func TestConcurrentJoinsAreAllRecorded(t *testing.T) {
	l, clock := newLedger(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.RecordJoin(7, join(uint64(w*100+i), "x", clock.Now(), oldAccount, ""))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint32(400), l.Analyze(7).JoinRate5s)
}

func newProfiler(t *testing.T) (*BehaviorProfiler, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	p := NewBehaviorProfiler(config.NewStore(nil))
	p.SetClock(clock.Now)
	return p, clock
}

func TestMetricsWithoutHistoryAreZero(t *testing.T) {
	p, _ := newProfiler(t)
	assert.Equal(t, ZeroBehavioralMetrics(), p.Metrics(1, 2))
}

func TestHistoryIsBoundedAndFIFO(t *testing.T) {
	p, clock := newProfiler(t)
	for i := 0; i < 150; i++ {
		p.RecordMessage(1, 2, fmt.Sprintf("msg-%d", i), 3)
		clock.Advance(time.Second)
	}

	require.Equal(t, MaxMessageHistory, p.HistoryLen(1, 2))
	hist := p.History(1, 2)
	assert.Equal(t, "msg-50", hist[0].Content)
	assert.Equal(t, "msg-149", hist[len(hist)-1].Content)
}

func TestRecordMessageFeatures(t *testing.T) {
	p, _ := newProfiler(t)

	a := p.RecordMessage(1, 2, "Check https://a.example and http://b.example <@1> <@2> \U0001F600", 3)
	assert.True(t, a.HasLink)
	assert.Equal(t, 2, a.LinkCount)
	assert.Equal(t, 2, a.MentionCount)
	assert.Equal(t, 1, a.EmojiCount)
	assert.Greater(t, a.CapsRatio, 0.0)
	assert.Zero(t, a.TextSimilarity)
	assert.False(t, a.Repetitive)

	b := p.RecordMessage(1, 2, "Check https://a.example and http://b.example <@1> <@2> \U0001F600", 3)
	assert.InDelta(t, 1.0, b.TextSimilarity, 1e-9)
	assert.True(t, b.Repetitive)
}

func TestSpamScoreSaturatesForRegularRepeats(t *testing.T) {
	p, clock := newProfiler(t)
	for i := 0; i < 20; i++ {
		p.RecordMessage(1, 2, "join my server now", 3)
		clock.Advance(1500 * time.Millisecond)
	}

	m := p.Metrics(1, 2)
	assert.InDelta(t, 1.0, m.SpamScore, 1e-9)
	assert.Equal(t, 20, m.MessageCount)
}

func TestSpamScoreNeedsThreeMessages(t *testing.T) {
	p, clock := newProfiler(t)
	p.RecordMessage(1, 2, "same", 3)
	clock.Advance(time.Second)
	p.RecordMessage(1, 2, "same", 3)

	assert.Zero(t, p.Metrics(1, 2).SpamScore)
}

func TestSpamScoreWithoutTimingBonus(t *testing.T) {
	p, clock := newProfiler(t)
	gaps := []time.Duration{time.Second, 20 * time.Second, time.Second, 20 * time.Second}
	texts := []string{"abc", "xyz", "qrs", "tuv", "lmn"}
	for i, text := range texts {
		p.RecordMessage(1, 2, text, 3)
		if i < len(gaps) {
			clock.Advance(gaps[i])
		}
	}

	assert.Less(t, p.Metrics(1, 2).SpamScore, 0.2)
}

func TestBehaviorThreatScoreTable(t *testing.T) {
	p, clock := newProfiler(t)
	for i := 0; i < 20; i++ {
		p.RecordMessage(1, 2, "BUY NOW", 3)
		clock.Advance(time.Second)
	}

	m := p.Metrics(1, 2)
	assert.True(t, m.BurstDetected)
	assert.Greater(t, m.CapsRatio, 0.7)
	assert.InDelta(t, 0.3+0.2+0.15, m.ThreatScore, 1e-9)

	clock.Advance(time.Minute)
	m = p.Metrics(1, 2)
	assert.False(t, m.BurstDetected)
	assert.InDelta(t, 0.3+0.15, m.ThreatScore, 1e-9)
}

func TestLinkDensityOnlyCountsForShortHistories(t *testing.T) {
	p, clock := newProfiler(t)
	for i := 0; i < 3; i++ {
		p.RecordMessage(1, 2, fmt.Sprintf("free nitro https://scam.example/%d", i), 3)
		clock.Advance(30 * time.Second)
	}

	m := p.Metrics(1, 2)
	assert.InDelta(t, 1.0, m.LinkDensity, 1e-9)
	assert.GreaterOrEqual(t, m.ThreatScore, 0.25)
}

func TestMentionRatio(t *testing.T) {
	p, _ := newProfiler(t)
	p.RecordMessage(1, 2, "<@1> <@2> <@3> <@4>", 3)

	m := p.Metrics(1, 2)
	assert.InDelta(t, 4.0, m.MentionRatio, 1e-9)
	assert.InDelta(t, 0.2, m.ThreatScore, 1e-9)
}

func TestBurstDetectionPerMessage(t *testing.T) {
	p, clock := newProfiler(t)
	var last MessageAnalysis
	for i := 0; i < 10; i++ {
		last = p.RecordMessage(1, 2, fmt.Sprintf("m%d", i), 3)
		clock.Advance(500 * time.Millisecond)
	}
	assert.True(t, last.IsBurst)
}

func TestForgetClearsHistory(t *testing.T) {
	p, _ := newProfiler(t)
	p.RecordMessage(1, 2, "hello", 3)
	p.Forget(1, 2)

	assert.Zero(t, p.HistoryLen(1, 2))
	assert.Equal(t, ZeroBehavioralMetrics(), p.Metrics(1, 2))
}

func TestConcurrentMessagesKeepPerKeyBound(t *testing.T) {
	p, _ := newProfiler(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p.RecordMessage(1, 99, "shared", 3)
				p.RecordMessage(1, uint64(w), "own", 3)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, MaxMessageHistory, p.HistoryLen(1, 99))
	for w := 0; w < 8; w++ {
		assert.Equal(t, 50, p.HistoryLen(1, uint64(w)))
	}
}

func newRegistry(t *testing.T) *HoneypotRegistry {
	t.Helper()
	h := NewHoneypotRegistry(config.NewStore(nil))
	h.SetClock(newFakeClock().Now)
	return h
}

func TestHiddenChannelCatch(t *testing.T) {
	h := newRegistry(t)
	require.True(t, h.RegisterHiddenChannel(1, 500))

	assert.False(t, h.CheckHiddenChannel(1, 501, 7))
	assert.Empty(t, h.Catches(1, 7))

	assert.True(t, h.CheckHiddenChannel(1, 500, 7))
	catches := h.Catches(1, 7)
	require.Len(t, catches, 1)
	assert.Equal(t, models.TrapHiddenChannel, catches[0].TrapType)
	assert.Equal(t, "channel_500", catches[0].TrapID)
	assert.InDelta(t, HiddenChannelSeverity, catches[0].Severity, 1e-9)

	assert.False(t, h.CheckHiddenChannel(2, 500, 7))
}

func TestRegisterIsIdempotent(t *testing.T) {
	h := newRegistry(t)
	assert.True(t, h.RegisterHiddenChannel(1, 10))
	assert.False(t, h.RegisterHiddenChannel(1, 10))
	assert.True(t, h.RegisterFakeCommand(1, "!Verify"))
	assert.False(t, h.RegisterFakeCommand(1, "!verify"))
	assert.False(t, h.RegisterFakeCommand(1, "   "))

	set := h.Traps(1)
	assert.Equal(t, []uint64{10}, set.HiddenChannels)
	assert.Equal(t, []string{"!verify"}, set.FakeCommands)
}

func TestFakeCommandFirstMatchOnly(t *testing.T) {
	h := newRegistry(t)
	h.RegisterFakeCommand(1, "!free")
	h.RegisterFakeCommand(1, "!freenitro")

	assert.False(t, h.CheckFakeCommand(1, "hello !free", 3))
	assert.True(t, h.CheckFakeCommand(1, "!FreeNitro please", 3))

	catches := h.Catches(1, 3)
	require.Len(t, catches, 1)
	assert.Equal(t, "!free", catches[0].TrapID)
	assert.InDelta(t, FakeCommandSeverity, catches[0].Severity, 1e-9)
}

func TestSuspiciousTiming(t *testing.T) {
	h := newRegistry(t)
	assert.False(t, h.CheckSuspiciousTiming(1, 2, 150*time.Millisecond))
	assert.True(t, h.CheckSuspiciousTiming(1, 2, 40*time.Millisecond))

	catches := h.Catches(1, 2)
	require.Len(t, catches, 1)
	assert.Equal(t, "reaction_40ms", catches[0].TrapID)
	assert.True(t, strings.HasPrefix(string(catches[0].TrapType), "suspicious"))
}

func TestThreatMultiplierIsMeanSeverity(t *testing.T) {
	h := newRegistry(t)
	assert.Zero(t, h.ThreatMultiplier(1, 2))

	h.RegisterHiddenChannel(1, 10)
	h.RegisterFakeCommand(1, "!claim")
	h.CheckHiddenChannel(1, 10, 2)
	h.CheckFakeCommand(1, "!claim", 2)

	assert.InDelta(t, 0.75, h.ThreatMultiplier(1, 2), 1e-9)

	h.ClearCatches(1, 2)
	assert.Zero(t, h.ThreatMultiplier(1, 2))
}

func TestUnregisterTraps(t *testing.T) {
	h := newRegistry(t)
	h.RegisterHiddenChannel(1, 10)
	h.RegisterFakeCommand(1, "!claim")

	assert.True(t, h.UnregisterHiddenChannel(1, 10))
	assert.False(t, h.UnregisterHiddenChannel(1, 10))
	assert.True(t, h.UnregisterFakeCommand(1, "!CLAIM"))

	assert.False(t, h.CheckHiddenChannel(1, 10, 2))
	assert.False(t, h.CheckFakeCommand(1, "!claim", 2))
	assert.Empty(t, h.Traps(1).HiddenChannels)
}

func TestMeanPairwiseSimilarity(t *testing.T) {
	assert.Zero(t, MeanPairwiseSimilarity(nil))
	assert.Zero(t, MeanPairwiseSimilarity([]string{"one"}))
	assert.InDelta(t, 1.0, MeanPairwiseSimilarity([]string{"same", "same", "same"}), 1e-9)
	assert.InDelta(t, 1.0, JaroWinkler("discord", "discord"), 1e-9)
}
