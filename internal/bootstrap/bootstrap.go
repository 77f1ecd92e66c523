package bootstrap

import (
	"context"
	"fmt"
	"os"
	"sync"

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
	"go-antiraid/internal/router"
	"go-antiraid/internal/watchdog"
)

const defaultConfigPath = "config.toml"

type Bootstrap struct {
	ConfigPath  string
	Config      *config.Config
	Components  *Components
	initialized bool
}

type Components struct {
	// Configuration
	Store   *config.Store
	Watcher *config.Watcher

	// Persistence
	Database *database.Database
	BanCache *cache.BanVelocity
	Journal  *logging.IncidentLogger

	// Detection and decision
	Joins    *detectors.JoinLedger
	Behavior *detectors.BehaviorProfiler
	Honeypot *detectors.HoneypotRegistry
	Policy   *decision.Policy
	Cooldown *decision.CooldownManager
	Lockdown *decision.LockdownManager
	Router   *router.Router

	// Enforcement
	HTTPPool    *dispatcher.HTTPPool
	RateLimiter *dispatcher.RateLimitMonitor
	REST        *dispatcher.RESTExecutor
	Dispatcher  *dispatcher.Dispatcher

	// Ingestion and Discord
	Pipeline *ingest.Pipeline
	Session  *bot.Session
	Commands *commands.Handler

	// Monitoring and observability
	Metrics  *metrics.Registry
	Exporter *metrics.Exporter
	Watchdog *watchdog.Watchdog

	cancel         context.CancelFunc
	pipelineCancel context.CancelFunc
	background     sync.WaitGroup
	pipelineDone   chan struct{}
}

// ConfigPathFromEnv returns ANTIRAID_CONFIG or config.toml.
func ConfigPathFromEnv() string {
	if path := os.Getenv("ANTIRAID_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func New(configPath string) *Bootstrap {
	return &Bootstrap{
		ConfigPath:  configPath,
		initialized: false,
	}
}

func (b *Bootstrap) Initialize() error {
	if err := b.loadConfig(); err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	if err := b.initializeLogging(); err != nil {
		return fmt.Errorf("logging init failed: %w", err)
	}

	if err := b.wireComponents(); err != nil {
		return fmt.Errorf("component wiring failed: %w", err)
	}

	b.initialized = true
	logging.Info("Bootstrap complete")
	return nil
}

// loadConfig rejects an invalid file instead of falling back to defaults.
func (b *Bootstrap) loadConfig() error {
	cfg, err := config.Load(b.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token missing: set bot.token or DISCORD_TOKEN")
	}
	b.Config = cfg
	return nil
}

func (b *Bootstrap) initializeLogging() error {
	return logging.InitGlobalLogger(logging.ParseLevel(b.Config.Logging.Level), b.Config.Logging.Path)
}

func (b *Bootstrap) wireComponents() error {
	components, err := Wire(b.Config, b.ConfigPath)
	if err != nil {
		return err
	}
	b.Components = components
	return nil
}

func (b *Bootstrap) Start(ctx context.Context) error {
	if !b.initialized {
		return fmt.Errorf("bootstrap not initialized")
	}

	return StartAll(ctx, b.Components)
}

func (b *Bootstrap) Shutdown() error {
	return Shutdown(b.Components)
}
