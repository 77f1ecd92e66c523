package router

import (
	"context"
	"time"

	"go-antiraid/internal/database"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/detectors"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
	"go-antiraid/pkg/util"
)

// HandleMessage runs honeypot traps and behavior profiling for one guild
// message and acts on the fused threat score.
func (r *Router) HandleMessage(ctx context.Context, msg models.MessageEvent) Outcome {
	out := Outcome{}
	if msg.Bot {
		out.Skipped, out.SkipReason = true, "bot"
		return out
	}
	if msg.GuildID == 0 {
		out.Skipped, out.SkipReason = true, "direct message"
		return out
	}

	start := r.now()
	r.stats.Ingress().Increment("message")
	defer func() { r.stats.Latency().Record("message", r.now().Sub(start)) }()

	guildID, userID := msg.GuildID, msg.UserID
	if r.isWhitelisted(ctx, &out, guildID, userID) {
		out.Skipped, out.SkipReason = true, "whitelisted"
		return out
	}

	r.runTraps(ctx, &out, msg, start)

	analysis := r.behavior.RecordMessage(guildID, userID, msg.Content, msg.ChannelID)
	bm := r.behavior.Metrics(guildID, userID)
	out.Behavior = bm
	r.saveProfile(ctx, &out, guildID, userID, bm, start)

	multiplier := r.honeypot.ThreatMultiplier(guildID, userID)
	isNew := r.joins.IsNewAccount(util.SnowflakeTime(userID))
	raid := r.joins.Analyze(guildID)
	out.Raid = raid

	score := decision.CombineThreat(raid.ThreatScore, bm.ThreatScore, multiplier, isNew)
	out.Score = score
	out.Level = decision.LevelFromScore(score)
	metrics.ThreatScore.WithLabelValues("message").Observe(score)

	if !r.policy.ForensicWorthy(score) {
		return out
	}

	forensic := models.NewForensicEvent(guildID, userID, models.ForensicMessage, msg.Content, score)
	forensic.Metadata["channel_id"] = util.Uint64ToString(msg.ChannelID)
	forensic.Metadata["threat_score"] = score
	forensic.Metadata["spam_score"] = bm.SpamScore
	forensic.Metadata["link_density"] = bm.LinkDensity
	forensic.Metadata["burst_detected"] = bm.BurstDetected
	forensic.Metadata["has_links"] = analysis.HasLink
	forensic.Metadata["mention_count"] = analysis.MentionCount
	forensic.Tags = []string{"message", "threat"}
	r.logForensic(ctx, &out, forensic)

	if !r.policy.IncidentWorthy(score) {
		return out
	}

	metrics.ThreatLevels.WithLabelValues(out.Level.String()).Inc()
	logging.Warn("Behavioral threat from user %d in guild %d (score %.2f)", userID, guildID, score)

	catches := r.honeypot.Catches(guildID, userID)
	traps := make([]map[string]interface{}, 0, len(catches))
	for _, c := range catches {
		traps = append(traps, map[string]interface{}{
			"trap_type": string(c.TrapType),
			"trap_name": c.TrapID,
			"severity":  c.Severity,
		})
	}

	action, ok := r.policy.DetermineAction(score, out.Level)
	inc := models.NewIncident(guildID, userID, models.IncidentBehavioralThreat, out.Level.String(), score, "Behavioral threat detected")
	inc.Evidence["spam_score"] = bm.SpamScore
	inc.Evidence["burst_detected"] = bm.BurstDetected
	inc.Evidence["honeypot_multiplier"] = multiplier
	inc.Evidence["honeypot_traps"] = traps

	r.enforce(ctx, &out, inc, out.Level, action, ok)
	return out
}

// runTraps checks every honeypot kind before the message enters the profile,
// so a member's first message is timed against their join.
func (r *Router) runTraps(ctx context.Context, out *Outcome, msg models.MessageEvent, sentAt time.Time) {
	guildID, userID := msg.GuildID, msg.UserID

	if c, ok := r.honeypot.TrapHiddenChannel(guildID, msg.ChannelID, userID); ok {
		r.recordCatch(ctx, out, guildID, userID, c)
	}
	if c, ok := r.honeypot.TrapFakeCommand(guildID, msg.Content, userID); ok {
		r.recordCatch(ctx, out, guildID, userID, c)
	}
	if r.behavior.HistoryLen(guildID, userID) == 0 {
		if join, ok := r.joins.LastJoin(guildID, userID); ok {
			if c, ok := r.honeypot.TrapSuspiciousTiming(guildID, userID, sentAt.Sub(join.JoinedAt)); ok {
				r.recordCatch(ctx, out, guildID, userID, c)
			}
		}
	}
}

func (r *Router) recordCatch(ctx context.Context, out *Outcome, guildID, userID uint64, c models.HoneypotCatch) {
	out.Catches = append(out.Catches, c)
	metrics.HoneypotCatches.WithLabelValues(string(c.TrapType)).Inc()
	logging.Warn("Honeypot %s (%s) triggered by user %d in guild %d", c.TrapType, c.TrapID, userID, guildID)

	if r.sink == nil {
		return
	}
	if err := r.sink.RecordHoneypotCatch(ctx, guildID, userID, c); err != nil {
		logging.Error("Failed to persist honeypot catch for user %d in guild %d: %v", userID, guildID, err)
		out.fail(err)
	}
}

func (r *Router) saveProfile(ctx context.Context, out *Outcome, guildID, userID uint64, bm detectors.BehavioralMetrics, sentAt time.Time) {
	if r.sink == nil {
		return
	}
	err := r.sink.UpsertBehaviorProfile(ctx, &database.BehaviorProfile{
		GuildID:         guildID,
		UserID:          userID,
		MessageCount:    bm.MessageCount,
		LastMessageTime: sentAt,
		SpamScore:       bm.SpamScore,
		LinkDensity:     bm.LinkDensity,
		MentionRatio:    bm.MentionRatio,
		CapsRatio:       bm.CapsRatio,
		EmojiDensity:    bm.EmojiDensity,
		ThreatScore:     bm.ThreatScore,
	})
	if err != nil {
		logging.Error("Failed to save behavior profile for user %d in guild %d: %v", userID, guildID, err)
		out.fail(err)
	}
}
