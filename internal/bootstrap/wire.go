package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go-antiraid/internal/bot"
	"go-antiraid/internal/cache"
	"go-antiraid/internal/commands"
	"go-antiraid/internal/config"
	"go-antiraid/internal/database"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/detectors"
	"go-antiraid/internal/dispatcher"
	"go-antiraid/internal/ingest"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/notifier"
	"go-antiraid/internal/router"
	"go-antiraid/internal/watchdog"
)

const (
	ingestShards = 16
	ingestDepth  = 4096

	watchdogInterval = 30 * time.Second
	startupTimeout   = 10 * time.Second
)

func Wire(cfg *config.Config, configPath string) (*Components, error) {
	logging.Info("Wiring components...")

	c := &Components{
		Store:        config.NewStore(cfg),
		pipelineDone: make(chan struct{}),
	}
	config.SetGlobal(c.Store)
	c.Watcher = config.NewWatcher(configPath, c.Store)

	db, err := database.Initialize(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c.Database = db
	logging.Info("Database opened at %s", cfg.Database.Path)

	var redisClient cache.SortedSetClient
	if cfg.Redis.Addr != "" {
		client, err := cache.NewGoRedisClient(cfg.Redis)
		if err != nil {
			logging.Warn("Redis unavailable, counting bans in SQLite: %v", err)
		} else {
			redisClient = client
			logging.Info("Ban velocity shared through Redis at %s", cfg.Redis.Addr)
		}
	}
	c.BanCache = cache.NewBanVelocity(redisClient, db)

	if cfg.Forensics.DetailedLogging && cfg.Forensics.IncidentLogPath != "" {
		journal, err := logging.NewIncidentLogger(cfg.Forensics.IncidentLogPath)
		if err != nil {
			logging.Warn("Failed to initialize incident log: %v", err)
		} else {
			c.Journal = journal
		}
	}

	// Detection and decision
	c.Joins = detectors.NewJoinLedger(c.Store)
	c.Behavior = detectors.NewBehaviorProfiler(c.Store)
	c.Honeypot = detectors.NewHoneypotRegistry(c.Store)
	c.Policy = decision.NewPolicy(c.Store)
	c.Cooldown = decision.NewCooldownManager(time.Duration(cfg.AutoMod.ActionCooldownSeconds) * time.Second)
	c.Lockdown = decision.NewLockdownManager(db)

	// Enforcement
	c.HTTPPool = dispatcher.NewHTTPPool(cfg.Network.HTTPPoolSize, time.Duration(cfg.Network.RequestTimeoutMs)*time.Millisecond)
	c.RateLimiter = dispatcher.NewRateLimitMonitor()
	c.REST = dispatcher.NewRESTExecutor(c.Store, c.HTTPPool, c.RateLimiter)
	c.Dispatcher = dispatcher.NewDispatcher(c.REST, c.Lockdown, cfg.Network.WorkerCount)

	// Monitoring
	c.Metrics = metrics.GetRegistry()
	c.Exporter = metrics.NewExporter(c.Metrics)

	session, err := bot.New(cfg.Bot.Token)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.Session = session

	alerts := notifier.NewIncidentNotifier(notifier.SessionSender{Session: session.GetDiscord()}, db, cfg.Bot.AlertChannelID)

	c.Router = router.New(router.Deps{
		Config:    c.Store,
		Joins:     c.Joins,
		Behavior:  c.Behavior,
		Honeypot:  c.Honeypot,
		Policy:    c.Policy,
		Cooldown:  c.Cooldown,
		Executor:  c.Dispatcher,
		Sink:      db,
		Bans:      c.BanCache,
		Whitelist: db,
		Lockdown:  c.Lockdown,
		Journal:   c.Journal,
		Notifier:  alerts,
		Stats:     c.Metrics,
	})

	c.Pipeline = ingest.NewPipeline(ingestShards, ingestDepth)

	c.Watchdog = watchdog.NewWatchdog(watchdogInterval)
	registerMaintenance(c)

	logging.Info("Component wiring complete")
	return c, nil
}

// Route hands pipeline events to the router.
func Route(r *router.Router) ingest.Handler {
	return func(ctx context.Context, ev ingest.Event) {
		switch ev.Kind {
		case ingest.EventMemberJoin:
			out := r.HandleMemberJoin(ctx, ev.Join)
			logOutcome(ev, out)
		case ingest.EventMessage:
			out := r.HandleMessage(ctx, ev.Message)
			logOutcome(ev, out)
		}
	}
}

func logOutcome(ev ingest.Event, out router.Outcome) {
	for _, err := range out.Errors {
		logging.Error("Failed handling %s in guild %d: %v", ev.Kind, ev.GuildID, err)
	}
}

// registerMaintenance schedules the periodic housekeeping tasks.
func registerMaintenance(c *Components) {
	c.Watchdog.RegisterComponent("join_ledger", time.Minute, func(context.Context) error {
		if n := c.Joins.Sweep(); n > 0 {
			logging.Debug("Swept %d idle join ledgers", n)
		}
		return nil
	})

	c.Watchdog.RegisterComponent("cooldowns", time.Minute, func(context.Context) error {
		if n := c.Cooldown.Sweep(); n > 0 {
			logging.Debug("Swept %d expired cooldowns", n)
		}
		return nil
	})

	c.Watchdog.RegisterComponent("lockdowns", 15*time.Second, func(context.Context) error {
		metrics.ActiveLockdowns.Set(float64(c.Lockdown.Sweep()))
		return nil
	})

	c.Watchdog.RegisterComponent("forensic_retention", time.Hour, func(ctx context.Context) error {
		days := c.Store.Get().Forensics.RetentionDays
		purged, err := c.Database.PurgeForensicEvents(ctx, time.Duration(days)*24*time.Hour)
		if err != nil {
			return err
		}
		if purged > 0 {
			logging.Info("Purged %d forensic events older than %d days", purged, days)
		}
		return nil
	})

	c.Watchdog.RegisterComponent("database", 30*time.Second, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return c.Database.Ping(pingCtx)
	})

	c.Watchdog.RegisterComponent("gateway", time.Minute, func(context.Context) error {
		if !c.Metrics.Gateway().IsHealthy() {
			return fmt.Errorf("gateway disconnected or idle")
		}
		return nil
	})
}

// restoreState loads persisted traps and lockdowns into memory.
func restoreState(ctx context.Context, c *Components) error {
	traps, err := c.Database.SyncTrapsToRegistry(ctx, c.Honeypot)
	if err != nil {
		return fmt.Errorf("failed to restore traps: %w", err)
	}

	locked, err := c.Database.SyncLockdownsToMemory(ctx, c.Lockdown)
	if err != nil {
		return fmt.Errorf("failed to restore lockdowns: %w", err)
	}
	metrics.ActiveLockdowns.Set(float64(locked))

	logging.Info("Restored %d honeypot traps and %d active lockdowns", traps, locked)
	return nil
}

func StartAll(ctx context.Context, c *Components) error {
	logging.Info("Starting components...")

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	err := restoreState(startCtx, c)
	cancel()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.Watchdog.Start(runCtx)
	logging.Info("Watchdog started")

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		if err := c.Watcher.Run(runCtx); err != nil {
			logging.Warn("Config watcher stopped: %v", err)
		}
	}()

	if c.Store.Get().Metrics.Enabled {
		addr := c.Store.Get().Metrics.ListenAddr
		c.background.Add(1)
		go func() {
			defer c.background.Done()
			if err := c.Exporter.ListenAndServe(runCtx, addr); err != nil {
				logging.Error("Metrics exporter stopped: %v", err)
			}
		}()
	}

	warmCtx, warmCancel := context.WithTimeout(ctx, startupTimeout)
	warm := c.HTTPPool.Warmup(warmCtx, c.Store.Get().Network.APIBaseURL+"/gateway")
	warmCancel()
	logging.Info("HTTP pool warmed (%d connections)", warm)
	c.Dispatcher.Start()

	// The pipeline outlives runCtx so events accepted before shutdown drain.
	pipelineCtx, pipelineCancel := context.WithCancel(context.Background())
	c.pipelineCancel = pipelineCancel
	go func() {
		defer close(c.pipelineDone)
		c.Pipeline.Run(pipelineCtx, Route(c.Router))
	}()
	logging.Info("Ingest pipeline started with %d shards", ingestShards)

	c.Session.SetupEventHandlers(c.Pipeline, c.Metrics.Gateway())
	if err := c.Session.Connect(); err != nil {
		return fmt.Errorf("gateway connection failed: %w", err)
	}

	handler, err := commands.Initialize(c.Session, commands.Deps{
		Store:    c.Database,
		Joins:    c.Joins,
		Behavior: c.Behavior,
		Honeypot: c.Honeypot,
		Lockdown: c.Lockdown,
		Raids:    c.Router,
		Summary:  c.Exporter.Summary,
	})
	if err != nil {
		return err
	}
	c.Commands = handler

	logging.Info("All components started")
	return nil
}
