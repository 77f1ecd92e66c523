package router

import (
	"context"
	"strings"

	"go-antiraid/internal/decision"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

// HandleMemberJoin records the join, evaluates the guild's raid risk and
// acts on the joiner.
func (r *Router) HandleMemberJoin(ctx context.Context, join models.MemberJoin) Outcome {
	start := r.now()
	out := Outcome{}
	r.stats.Ingress().Increment("join")
	defer func() { r.stats.Latency().Record("join", r.now().Sub(start)) }()

	guildID, userID := join.GuildID, join.UserID
	if r.isWhitelisted(ctx, &out, guildID, userID) {
		out.Skipped, out.SkipReason = true, "whitelisted"
		return out
	}

	ev := join.ToJoinEvent(start)
	r.joins.RecordJoin(guildID, ev)

	raid := r.joins.Analyze(guildID)
	out.Raid = raid
	out.Score = raid.ThreatScore
	out.Level = decision.LevelFromScore(raid.ThreatScore)
	metrics.ThreatScore.WithLabelValues("join").Observe(raid.ThreatScore)

	forensic := models.NewForensicEvent(guildID, userID, models.ForensicMemberJoin, "", raid.ThreatScore)
	forensic.Metadata["username"] = join.Username
	if !ev.AccountCreated.IsZero() {
		forensic.Metadata["account_age_days"] = int(ev.AccountAgeAt(start).Hours() / 24)
	}
	forensic.Tags = []string{"join"}
	r.logForensic(ctx, &out, forensic)

	if r.lockdown != nil && r.lockdown.IsLockdown(guildID) {
		logging.Warn("Guild %d is in lockdown, removing new member %d", guildID, userID)
		r.kickDuringLockdown(ctx, &out, guildID, userID)
		return out
	}

	if !raid.IsRaid {
		return out
	}

	metrics.ThreatLevels.WithLabelValues(out.Level.String()).Inc()
	logging.Warn("Raid detected in guild %d (score %.2f): %s", guildID, raid.ThreatScore, strings.Join(raid.Reasons, ", "))

	action, ok := r.policy.DetermineAction(raid.ThreatScore, out.Level)
	inc := models.NewIncident(guildID, userID, models.IncidentRaidDetection, out.Level.String(), raid.ThreatScore, strings.Join(raid.Reasons, "; "))
	inc.Evidence["join_rate_5s"] = raid.JoinRate5s
	inc.Evidence["join_rate_1m"] = raid.JoinRate1m
	inc.Evidence["new_account_ratio"] = raid.NewAccountRatio
	inc.Evidence["username_similarity"] = raid.UsernameSimilarity
	inc.Evidence["avatar_duplication"] = raid.AvatarDuplication
	inc.Evidence["reasons"] = raid.Reasons

	r.enforce(ctx, &out, inc, out.Level, action, ok)
	return out
}
