package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Bot       BotConfig       `toml:"bot"`
	Security  SecurityConfig  `toml:"security"`
	AutoMod   AutoModConfig   `toml:"auto_mod"`
	Forensics ForensicsConfig `toml:"forensics"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	Network   NetworkConfig   `toml:"network"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Logging   LoggingConfig   `toml:"logging"`
}

type BotConfig struct {
	Token          string `toml:"token"`
	ClientID       string `toml:"client_id"`
	AlertChannelID string `toml:"alert_channel_id"`
}

type ForensicsConfig struct {
	RetentionDays   int    `toml:"retention_days" validate:"min=1"`
	DetailedLogging bool   `toml:"detailed_logging"`
	IncidentLogPath string `toml:"incident_log_path"`
}

type DatabaseConfig struct {
	Path string `toml:"path" validate:"required"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"min=0"`
}

type NetworkConfig struct {
	APIBaseURL        string  `toml:"api_base_url" validate:"required,url"`
	HTTPPoolSize      int     `toml:"http_pool_size" validate:"min=1"`
	RequestTimeoutMs  int     `toml:"request_timeout_ms" validate:"min=1"`
	MaxRetries        int     `toml:"max_retries" validate:"min=0,max=10"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
	WorkerCount       int     `toml:"worker_count" validate:"min=1"`
}

type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error critical"`
	Path  string `toml:"path"`
}

// Load reads a TOML file over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		c.Bot.Token = token
	}
	if clientID := os.Getenv("CLIENT_ID"); clientID != "" {
		c.Bot.ClientID = clientID
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if enabled := os.Getenv("AUTOMOD_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			c.AutoMod.Enabled = v
		}
	}
}

func DefaultConfig() *Config {
	return &Config{
		Security: DefaultSecurityConfig(),
		AutoMod:  DefaultAutoModConfig(),
		Forensics: ForensicsConfig{
			RetentionDays:   90,
			DetailedLogging: true,
			IncidentLogPath: "logs/incidents.jsonl",
		},
		Database: DatabaseConfig{
			Path: "antiraid.db",
		},
		Network: NetworkConfig{
			APIBaseURL:        "https://discord.com/api/v10",
			HTTPPoolSize:      4,
			RequestTimeoutMs:  2000,
			MaxRetries:        3,
			RequestsPerSecond: 40,
			WorkerCount:       4,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9464",
		},
		Logging: LoggingConfig{
			Level: "info",
			Path:  "logs/antiraid.log",
		},
	}
}
