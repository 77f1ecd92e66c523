package router

import (
	"context"

	"go-antiraid/internal/decision"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

const lockdownJoinReason = "Server is in lockdown"

// enforce records inc with the action it is about to take, then executes it.
// A repeat of the same action on the same member inside the cooldown is
// recorded without an action.
func (r *Router) enforce(ctx context.Context, out *Outcome, inc *models.Incident, level decision.ThreatLevel, action models.Action, ok bool) {
	if ok {
		action = action.For(inc.GuildID, inc.UserID)
		if action.IsEnforcing() && r.cooldown != nil && !r.cooldown.TryAcquire(inc.GuildID, inc.UserID, action.Type) {
			logging.Debug("%s for user %d in guild %d suppressed by cooldown", action, inc.UserID, inc.GuildID)
			metrics.ActionsExecuted.WithLabelValues(action.Name(), "cooldown").Inc()
			inc.Evidence["cooldown"] = true
			ok = false
		}
	}
	if ok {
		inc.ActionTaken = action.Name()
	}

	r.recordIncident(ctx, out, inc, level)
	if !ok {
		return
	}

	r.execute(ctx, out, action)
}

func (r *Router) execute(ctx context.Context, out *Outcome, action models.Action) {
	out.Action = action
	if r.executor == nil {
		return
	}

	if err := r.executor.Execute(ctx, action); err != nil {
		logging.Error("Failed to execute %s on user %d in guild %d: %v", action, action.TargetID, action.GuildID, err)
		out.fail(err)
		return
	}
	out.Executed = true

	if action.Type == models.ActionTypeBan {
		r.afterBan(ctx, out, action.GuildID, action.TargetID)
	}
}

// afterBan locks the guild down when the raid is critical and bans keep piling up.
func (r *Router) afterBan(ctx context.Context, out *Outcome, guildID, userID uint64) {
	if r.bans == nil {
		return
	}
	if err := r.bans.RecordBan(ctx, guildID, userID); err != nil {
		logging.Warn("Failed to record ban of user %d in guild %d: %v", userID, guildID, err)
		out.fail(err)
	}

	recent, err := r.bans.CountRecentBans(ctx, guildID, r.policy.LockdownWindow())
	if err != nil {
		logging.Warn("Failed to count recent bans in guild %d: %v", guildID, err)
		out.fail(err)
		recent = 0
	}

	raid := r.joins.Analyze(guildID)
	if !r.policy.ShouldLockdown(raid.ThreatScore, recent) {
		return
	}
	if r.lockdown != nil && r.lockdown.IsLockdown(guildID) {
		return
	}

	logging.Critical("Auto-lockdown triggered for guild %d: %d recent bans, raid score %.2f", guildID, recent, raid.ThreatScore)
	lockdown := models.LockdownAction().For(guildID, 0)
	if err := r.executor.Execute(ctx, lockdown); err != nil {
		logging.Error("Failed to lock down guild %d: %v", guildID, err)
		out.fail(err)
		return
	}
	out.LockdownTriggered = true
}

// kickDuringLockdown removes a joiner while the guild is locked down.
func (r *Router) kickDuringLockdown(ctx context.Context, out *Outcome, guildID, userID uint64) {
	action := models.KickAction(lockdownJoinReason).For(guildID, userID)
	if r.cooldown != nil && !r.cooldown.TryAcquire(guildID, userID, action.Type) {
		metrics.ActionsExecuted.WithLabelValues(action.Name(), "cooldown").Inc()
		return
	}
	r.execute(ctx, out, action)
}
