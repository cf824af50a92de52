// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs crawl pipeline behavior.
type CrawlerConfig struct {
	Workers         int     `mapstructure:"workers"`
	QueueDepth      int     `mapstructure:"queue_depth"`
	MaxPagesDefault int     `mapstructure:"max_pages_default"`
	DelaySeconds    float64 `mapstructure:"delay_seconds"`
	JitterSeconds   float64 `mapstructure:"jitter_seconds"`
	EnrichDelayMs   int     `mapstructure:"enrich_delay_ms"`
	EnrichJitterMs  int     `mapstructure:"enrich_jitter_ms"`
	MaxRPS          float64 `mapstructure:"max_rps"`
	RetryBudget     int     `mapstructure:"retry_budget"`
}

// HeadlessConfig configures the browser subsystem.
type HeadlessConfig struct {
	Headless         bool   `mapstructure:"headless"`
	UserAgent        string `mapstructure:"user_agent"`
	NavTimeoutSec    int    `mapstructure:"nav_timeout_seconds"`
	SettleDelaySec   int    `mapstructure:"settle_delay_seconds"`
	DetailTimeoutSec int    `mapstructure:"detail_timeout_seconds"`
}

// StorageConfig selects where result snapshots go.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres task-history store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for completion-event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STDCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("crawler.workers", 2)
	v.SetDefault("crawler.queue_depth", 32)
	v.SetDefault("crawler.max_pages_default", 3)
	v.SetDefault("crawler.delay_seconds", 1.5)
	v.SetDefault("crawler.jitter_seconds", 1.0)
	v.SetDefault("crawler.enrich_delay_ms", 500)
	v.SetDefault("crawler.enrich_jitter_ms", 500)
	v.SetDefault("crawler.max_rps", 2.0)
	v.SetDefault("crawler.retry_budget", 2)
	v.SetDefault("headless.headless", true)
	v.SetDefault("headless.user_agent", "std-crawler/0.1")
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.settle_delay_seconds", 2)
	v.SetDefault("headless.detail_timeout_seconds", 60)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.table", "crawl_tasks")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawler.max_pages_default must be > 0")
	}
	if c.Crawler.RetryBudget < 0 {
		return fmt.Errorf("crawler.retry_budget must be >= 0")
	}
	switch c.Storage.Backend {
	case "local", "memory", "gcs":
	default:
		return fmt.Errorf("storage.backend must be one of local, memory, gcs")
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when backend is gcs")
	}
	return nil
}

// Delay converts the crawl delay config into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelaySeconds * float64(time.Second))
}

// Jitter converts the crawl jitter config into a duration.
func (c Config) Jitter() time.Duration {
	return time.Duration(c.Crawler.JitterSeconds * float64(time.Second))
}
