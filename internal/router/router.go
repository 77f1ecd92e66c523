package router

import (
	"context"
	"time"

	"go-antiraid/internal/config"
	"go-antiraid/internal/database"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/detectors"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

// Executor applies a moderation action on the platform.
type Executor interface {
	Execute(ctx context.Context, action models.Action) error
}

// IncidentSink persists everything the router records.
type IncidentSink interface {
	CreateIncident(ctx context.Context, inc *models.Incident) error
	LogForensicEvent(ctx context.Context, ev *models.ForensicEvent) error
	RecordHoneypotCatch(ctx context.Context, guildID, userID uint64, c models.HoneypotCatch) error
	UpsertBehaviorProfile(ctx context.Context, p *database.BehaviorProfile) error
}

type BanCounter interface {
	RecordBan(ctx context.Context, guildID, userID uint64) error
	CountRecentBans(ctx context.Context, guildID uint64, window time.Duration) (int, error)
}

type Whitelist interface {
	IsWhitelisted(ctx context.Context, guildID, userID uint64) (bool, error)
}

type LockdownState interface {
	IsLockdown(guildID uint64) bool
}

// Notifier receives every persisted incident. Delivery is best effort.
type Notifier interface {
	NotifyIncident(ctx context.Context, inc *models.Incident)
}

// Deps wires a Router. Journal, Notifier, Cooldown and Stats are optional.
type Deps struct {
	Config    *config.Store
	Joins     *detectors.JoinLedger
	Behavior  *detectors.BehaviorProfiler
	Honeypot  *detectors.HoneypotRegistry
	Policy    *decision.Policy
	Cooldown  *decision.CooldownManager
	Executor  Executor
	Sink      IncidentSink
	Bans      BanCounter
	Whitelist Whitelist
	Lockdown  LockdownState
	Journal   *logging.IncidentLogger
	Notifier  Notifier
	Stats     *metrics.Registry
}

// Outcome describes what the router did with one event.
type Outcome struct {
	Skipped           bool
	SkipReason        string
	Raid              detectors.RaidAnalysis
	Behavior          detectors.BehavioralMetrics
	Catches           []models.HoneypotCatch
	Score             float64
	Level             decision.ThreatLevel
	Incident          *models.Incident
	Action            models.Action
	Executed          bool
	LockdownTriggered bool
	Errors            []error
}

func (o *Outcome) fail(err error) {
	o.Errors = append(o.Errors, err)
}

// Router turns gateway events into detector updates, incidents and actions.
// Detector state is updated before any collaborator is called, and a failing
// collaborator never rolls that state back.
type Router struct {
	cfg       *config.Store
	joins     *detectors.JoinLedger
	behavior  *detectors.BehaviorProfiler
	honeypot  *detectors.HoneypotRegistry
	policy    *decision.Policy
	cooldown  *decision.CooldownManager
	executor  Executor
	sink      IncidentSink
	bans      BanCounter
	whitelist Whitelist
	lockdown  LockdownState
	journal   *logging.IncidentLogger
	notifier  Notifier
	stats     *metrics.Registry
	now       func() time.Time
}

func New(d Deps) *Router {
	stats := d.Stats
	if stats == nil {
		stats = metrics.GetRegistry()
	}
	policy := d.Policy
	if policy == nil {
		policy = decision.NewPolicy(d.Config)
	}

	return &Router{
		cfg:       d.Config,
		joins:     d.Joins,
		behavior:  d.Behavior,
		honeypot:  d.Honeypot,
		policy:    policy,
		cooldown:  d.Cooldown,
		executor:  d.Executor,
		sink:      d.Sink,
		bans:      d.Bans,
		whitelist: d.Whitelist,
		lockdown:  d.Lockdown,
		journal:   d.Journal,
		notifier:  d.Notifier,
		stats:     stats,
		now:       time.Now,
	}
}

func (r *Router) SetClock(now func() time.Time) {
	r.now = now
}

// RaidStatus is the current raid analysis of a guild.
func (r *Router) RaidStatus(guildID uint64) detectors.RaidAnalysis {
	return r.joins.Analyze(guildID)
}

// isWhitelisted fails open: a whitelist lookup error never exempts a member.
func (r *Router) isWhitelisted(ctx context.Context, out *Outcome, guildID, userID uint64) bool {
	if r.whitelist == nil {
		return false
	}
	ok, err := r.whitelist.IsWhitelisted(ctx, guildID, userID)
	if err != nil {
		logging.Error("Whitelist lookup failed for user %d in guild %d: %v", userID, guildID, err)
		out.fail(err)
		return false
	}
	return ok
}

func (r *Router) logForensic(ctx context.Context, out *Outcome, ev *models.ForensicEvent) {
	if r.sink == nil {
		return
	}
	if err := r.sink.LogForensicEvent(ctx, ev); err != nil {
		logging.Error("Failed to log forensic event for user %d in guild %d: %v", ev.UserID, ev.GuildID, err)
		out.fail(err)
	}
}

func (r *Router) recordIncident(ctx context.Context, out *Outcome, inc *models.Incident, level decision.ThreatLevel) {
	out.Incident = inc
	metrics.IncidentsRecorded.WithLabelValues(inc.IncidentType).Inc()

	if r.sink != nil {
		if err := r.sink.CreateIncident(ctx, inc); err != nil {
			logging.Error("Failed to persist incident %s: %v", inc.ID, err)
			out.fail(err)
		}
	}

	if r.journal != nil {
		err := r.journal.Log(&logging.IncidentLogEntry{
			Timestamp:    inc.CreatedAt,
			IncidentID:   inc.ID,
			GuildID:      inc.GuildID,
			UserID:       inc.UserID,
			IncidentType: inc.IncidentType,
			Severity:     inc.ThreatScore,
			ThreatLevel:  level.String(),
			Action:       inc.ActionTaken,
			Description:  inc.Description,
		})
		if err != nil {
			logging.Warn("Failed to journal incident %s: %v", inc.ID, err)
		}
	}

	if r.notifier != nil {
		r.notifier.NotifyIncident(ctx, inc)
	}
}
