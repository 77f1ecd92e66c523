package detectors

import (
	"fmt"
	"time"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

const (
	JoinRetention = 10 * time.Minute
	RaidScoreCut  = 0.6

	recentJoinWindow = time.Minute
)

// RaidAnalysis is recomputed from the ledger on every call.
type RaidAnalysis struct {
	IsRaid             bool
	ThreatScore        float64
	JoinRate5s         uint32
	JoinRate30s        uint32
	JoinRate1m         uint32
	JoinRate5m         uint32
	NewAccountRatio    float64
	UsernameSimilarity float64
	AvatarDuplication  float64
	Reasons            []string
}

func SafeRaidAnalysis() RaidAnalysis {
	return RaidAnalysis{Reasons: []string{}}
}

type joinLog struct {
	events []models.JoinEvent
}

func (l *joinLog) purge(cutoff time.Time) {
	kept := l.events[:0]
	for _, ev := range l.events {
		if !ev.JoinedAt.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	clear(l.events[len(kept):])
	l.events = kept
}

// JoinLedger keeps the last ten minutes of joins per guild.
type JoinLedger struct {
	cfg    *config.Store
	guilds *state.Keyed[state.GuildKey, joinLog]
	now    func() time.Time
}

func NewJoinLedger(cfg *config.Store) *JoinLedger {
	return &JoinLedger{
		cfg:    cfg,
		guilds: state.NewKeyed[state.GuildKey, joinLog](),
		now:    time.Now,
	}
}

func (l *JoinLedger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *JoinLedger) RecordJoin(guildID uint64, ev models.JoinEvent) {
	cutoff := l.now().Add(-JoinRetention)
	l.guilds.Update(state.GuildKey(guildID), func(log *joinLog) {
		log.events = append(log.events, ev)
		log.purge(cutoff)
	})
}

func (l *JoinLedger) snapshot(guildID uint64) []models.JoinEvent {
	var events []models.JoinEvent
	l.guilds.View(state.GuildKey(guildID), func(log *joinLog) {
		events = append([]models.JoinEvent(nil), log.events...)
	})
	return events
}

func (l *JoinLedger) Analyze(guildID uint64) RaidAnalysis {
	events := l.snapshot(guildID)
	if len(events) == 0 {
		return SafeRaidAnalysis()
	}

	sec := l.cfg.Security()
	now := l.now()

	a := RaidAnalysis{
		JoinRate5s:  countWithin(events, now, 5*time.Second),
		JoinRate30s: countWithin(events, now, 30*time.Second),
		JoinRate1m:  countWithin(events, now, time.Minute),
		JoinRate5m:  countWithin(events, now, 5*time.Minute),
		Reasons:     []string{},
	}

	recent := make([]models.JoinEvent, 0, a.JoinRate1m)
	for _, ev := range events {
		if within(ev.JoinedAt, now, recentJoinWindow) {
			recent = append(recent, ev)
		}
	}

	a.NewAccountRatio = newAccountRatio(recent, now, time.Duration(sec.NewAccountDays)*24*time.Hour)
	a.UsernameSimilarity = usernameSimilarity(recent)
	a.AvatarDuplication = avatarDuplication(recent)

	var score float64
	if a.JoinRate5s >= sec.RaidThreshold5s {
		score += 0.30
		a.Reasons = append(a.Reasons, fmt.Sprintf("%d joins in 5 seconds", a.JoinRate5s))
	}
	if a.JoinRate30s >= sec.RaidThreshold30s {
		score += 0.25
		a.Reasons = append(a.Reasons, fmt.Sprintf("%d joins in 30 seconds", a.JoinRate30s))
	}
	if a.JoinRate1m >= sec.RaidThreshold1m {
		score += 0.20
		a.Reasons = append(a.Reasons, fmt.Sprintf("%d joins in 1 minute", a.JoinRate1m))
	}
	if a.NewAccountRatio > 0.7 {
		score += 0.25
		a.Reasons = append(a.Reasons, fmt.Sprintf("%.0f%% new accounts", a.NewAccountRatio*100))
	}
	if a.UsernameSimilarity > sec.UsernameSimilarityThreshold {
		score += 0.20
		a.Reasons = append(a.Reasons, fmt.Sprintf("High username similarity (%.2f)", a.UsernameSimilarity))
	}
	if a.AvatarDuplication > 0.5 {
		score += 0.15
		a.Reasons = append(a.Reasons, fmt.Sprintf("%.0f%% duplicate avatars", a.AvatarDuplication*100))
	}

	a.ThreatScore = capScore(score)
	a.IsRaid = a.ThreatScore >= RaidScoreCut
	return a
}

// IsNewAccount applies the configured new-account threshold to a single join.
func (l *JoinLedger) IsNewAccount(accountCreated time.Time) bool {
	if accountCreated.IsZero() {
		return false
	}
	limit := time.Duration(l.cfg.Security().NewAccountDays) * 24 * time.Hour
	return l.now().Sub(accountCreated) < limit
}

// LastJoin returns the most recent retained join of userID in the guild.
func (l *JoinLedger) LastJoin(guildID, userID uint64) (models.JoinEvent, bool) {
	var (
		found models.JoinEvent
		ok    bool
	)
	l.guilds.View(state.GuildKey(guildID), func(log *joinLog) {
		for i := len(log.events) - 1; i >= 0; i-- {
			if log.events[i].UserID == userID {
				found, ok = log.events[i], true
				return
			}
		}
	})
	return found, ok
}

// Sweep drops guilds whose entire ledger is past retention.
func (l *JoinLedger) Sweep() int {
	cutoff := l.now().Add(-JoinRetention)
	return l.guilds.Prune(func(_ state.GuildKey, log *joinLog) bool {
		log.purge(cutoff)
		return len(log.events) == 0
	})
}

func (l *JoinLedger) GuildCount() int {
	return l.guilds.Len()
}

func countWithin(events []models.JoinEvent, now time.Time, window time.Duration) uint32 {
	var n uint32
	for _, ev := range events {
		if within(ev.JoinedAt, now, window) {
			n++
		}
	}
	return n
}

func newAccountRatio(recent []models.JoinEvent, now time.Time, threshold time.Duration) float64 {
	if len(recent) == 0 {
		return 0
	}
	fresh := 0
	for _, ev := range recent {
		if ev.AccountAgeAt(now) < threshold {
			fresh++
		}
	}
	return ratio(fresh, len(recent))
}

func usernameSimilarity(recent []models.JoinEvent) float64 {
	if len(recent) < 2 {
		return 0
	}
	names := make([]string, len(recent))
	for i, ev := range recent {
		names[i] = ev.Username
	}
	return MeanPairwiseSimilarity(names)
}

func avatarDuplication(recent []models.JoinEvent) float64 {
	if len(recent) < 2 {
		return 0
	}
	counts := make(map[string]int, len(recent))
	maxDup := 0
	for _, ev := range recent {
		if ev.AvatarHash == "" {
			continue
		}
		counts[ev.AvatarHash]++
		if counts[ev.AvatarHash] > maxDup {
			maxDup = counts[ev.AvatarHash]
		}
	}
	return ratio(maxDup, len(recent))
}
