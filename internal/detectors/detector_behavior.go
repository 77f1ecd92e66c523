package detectors

import (
	"math"
	"time"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

const (
	MaxMessageHistory = 100

	similarityWindow = 10
	spamWindow       = 20
	regularInterval  = 2.0 // seconds of interval std-dev
)

// MessageAnalysis describes a single message at the moment it was recorded.
type MessageAnalysis struct {
	HasLink        bool
	LinkCount      int
	MentionCount   int
	CapsRatio      float64
	EmojiCount     int
	TextSimilarity float64
	IsBurst        bool
	Repetitive     bool
}

// BehavioralMetrics summarises an actor's full retained history.
type BehavioralMetrics struct {
	SpamScore     float64
	LinkDensity   float64
	MentionRatio  float64
	CapsRatio     float64
	EmojiDensity  float64
	BurstDetected bool
	ThreatScore   float64
	MessageCount  int
}

func ZeroBehavioralMetrics() BehavioralMetrics {
	return BehavioralMetrics{}
}

type messageHistory struct {
	ring *state.Ring[models.MessageRecord]
}

// BehaviorProfiler keeps the last MaxMessageHistory messages per guild member.
type BehaviorProfiler struct {
	cfg      *config.Store
	profiles *state.Keyed[state.ActorKey, messageHistory]
	now      func() time.Time
}

func NewBehaviorProfiler(cfg *config.Store) *BehaviorProfiler {
	return &BehaviorProfiler{
		cfg:      cfg,
		profiles: state.NewKeyed[state.ActorKey, messageHistory](),
		now:      time.Now,
	}
}

func (p *BehaviorProfiler) SetClock(now func() time.Time) {
	p.now = now
}

func (p *BehaviorProfiler) RecordMessage(guildID, userID uint64, content string, channelID uint64) MessageAnalysis {
	now := p.now()
	chars := countChars(content)

	rec := models.MessageRecord{
		Content:      content,
		Timestamp:    now,
		ChannelID:    channelID,
		HasLink:      containsLink(content),
		LinkCount:    countLinks(content),
		MentionCount: countMentions(content),
	}

	am := p.cfg.AutoMod()
	burstWindow := time.Duration(am.MessageBurstSeconds) * time.Second

	var (
		recent []string
		burst  bool
	)
	p.profiles.Update(state.ActorKey{GuildID: guildID, UserID: userID}, func(h *messageHistory) {
		if h.ring == nil {
			h.ring = state.NewRing[models.MessageRecord](MaxMessageHistory)
		}
		h.ring.Push(rec)

		for _, m := range h.ring.Last(similarityWindow) {
			recent = append(recent, m.Content)
		}
		burst = burstIn(h.ring.Snapshot(), now, burstWindow, am.MessageBurstCount)
	})

	similarity := MeanPairwiseSimilarity(recent)

	return MessageAnalysis{
		HasLink:        rec.HasLink,
		LinkCount:      rec.LinkCount,
		MentionCount:   rec.MentionCount,
		CapsRatio:      ratio(chars.upper, chars.total),
		EmojiCount:     chars.emoji,
		TextSimilarity: similarity,
		IsBurst:        burst,
		Repetitive:     len(recent) >= 2 && similarity >= p.cfg.Security().SpamSimilarityThreshold,
	}
}

func (p *BehaviorProfiler) history(guildID, userID uint64) []models.MessageRecord {
	var records []models.MessageRecord
	p.profiles.View(state.ActorKey{GuildID: guildID, UserID: userID}, func(h *messageHistory) {
		if h.ring != nil {
			records = h.ring.Snapshot()
		}
	})
	return records
}

func (p *BehaviorProfiler) Metrics(guildID, userID uint64) BehavioralMetrics {
	records := p.history(guildID, userID)
	if len(records) == 0 {
		return ZeroBehavioralMetrics()
	}

	am := p.cfg.AutoMod()
	now := p.now()

	var withLinks, mentions int
	var chars charStats
	for _, m := range records {
		if m.HasLink {
			withLinks++
		}
		mentions += m.MentionCount
		cs := countChars(m.Content)
		chars.total += cs.total
		chars.upper += cs.upper
		chars.emoji += cs.emoji
	}

	bm := BehavioralMetrics{
		SpamScore:     spamScore(records),
		LinkDensity:   ratio(withLinks, len(records)),
		MentionRatio:  float64(mentions) / float64(len(records)),
		CapsRatio:     ratio(chars.upper, chars.total),
		EmojiDensity:  ratio(chars.emoji, chars.total),
		BurstDetected: burstIn(records, now, time.Duration(am.MessageBurstSeconds)*time.Second, am.MessageBurstCount),
		MessageCount:  len(records),
	}

	var score float64
	switch {
	case bm.SpamScore >= 0.8:
		score += 0.3
	case bm.SpamScore >= 0.6:
		score += 0.15
	}
	if bm.LinkDensity > 0.5 && len(records) < 10 {
		score += 0.25
	}
	if bm.MentionRatio > 3 {
		score += 0.2
	}
	if bm.CapsRatio > 0.7 {
		score += 0.15
	}
	if bm.BurstDetected {
		score += 0.2
	}
	bm.ThreatScore = capScore(score)

	return bm
}

// HistoryLen reports how many messages are retained for the actor.
func (p *BehaviorProfiler) HistoryLen(guildID, userID uint64) int {
	n := 0
	p.profiles.View(state.ActorKey{GuildID: guildID, UserID: userID}, func(h *messageHistory) {
		if h.ring != nil {
			n = h.ring.Len()
		}
	})
	return n
}

// History returns the retained messages oldest first.
func (p *BehaviorProfiler) History(guildID, userID uint64) []models.MessageRecord {
	return p.history(guildID, userID)
}

// Forget discards the actor's history.
func (p *BehaviorProfiler) Forget(guildID, userID uint64) {
	p.profiles.Delete(state.ActorKey{GuildID: guildID, UserID: userID})
}

func (p *BehaviorProfiler) ProfileCount() int {
	return p.profiles.Len()
}

func burstIn(records []models.MessageRecord, now time.Time, window time.Duration, threshold int) bool {
	n := 0
	for _, m := range records {
		if within(m.Timestamp, now, window) {
			n++
		}
	}
	return n >= threshold
}

// spamScore looks at the newest spamWindow messages: mean pairwise similarity,
// plus a bonus when the gaps between them are nearly constant.
func spamScore(records []models.MessageRecord) float64 {
	if len(records) < 3 {
		return 0
	}

	recent := records
	if len(recent) > spamWindow {
		recent = recent[len(recent)-spamWindow:]
	}

	texts := make([]string, len(recent))
	for i, m := range recent {
		texts[i] = m.Content
	}

	score := MeanPairwiseSimilarity(texts)
	if intervalStdDev(recent) < regularInterval {
		score += 0.2
	}
	return capScore(score)
}

func intervalStdDev(records []models.MessageRecord) float64 {
	if len(records) < 2 {
		return math.Inf(1)
	}

	intervals := make([]float64, 0, len(records)-1)
	var sum float64
	for i := 1; i < len(records); i++ {
		gap := math.Abs(records[i].Timestamp.Sub(records[i-1].Timestamp).Seconds())
		intervals = append(intervals, gap)
		sum += gap
	}

	mean := sum / float64(len(intervals))
	var variance float64
	for _, gap := range intervals {
		variance += (gap - mean) * (gap - mean)
	}
	return math.Sqrt(variance / float64(len(intervals)))
}
