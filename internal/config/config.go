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
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Geocoding  GeocodingConfig  `mapstructure:"geocoding"`
	Breakers   BreakersConfig   `mapstructure:"breakers"`
	DB         DBConfig         `mapstructure:"db"`
	Snapshots  SnapshotsConfig  `mapstructure:"snapshots"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig governs the page exploration stage.
type CrawlerConfig struct {
	UserAgent            string   `mapstructure:"user_agent"`
	MaxPages             int      `mapstructure:"max_pages"`
	ExploreBudgetSeconds int      `mapstructure:"explore_budget_seconds"`
	FetchTimeoutSeconds  int      `mapstructure:"fetch_timeout_seconds"`
	AllowedDomains       []string `mapstructure:"allowed_domains"`
}

// HeadlessConfig configures the headless rendering fallback for
// script-heavy festival sites.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// ExtractionConfig points at the language-model completion API.
type ExtractionConfig struct {
	APIURL    string `mapstructure:"api_url"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// GeocodingConfig tunes the cached batch geocoder decorator.
type GeocodingConfig struct {
	CacheTTLMinutes int `mapstructure:"cache_ttl_minutes"`
	BatchSize       int `mapstructure:"batch_size"`
	BatchDelayMs    int `mapstructure:"batch_delay_ms"`
}

// BreakerConfig tunes one circuit breaker instance.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	ResetTimeoutSec  int `mapstructure:"reset_timeout_seconds"`
	MonitoringSec    int `mapstructure:"monitoring_period_seconds"`
	RequestTimeout   int `mapstructure:"request_timeout_seconds"`
}

// BreakersConfig carries the per-dependency breaker settings; each guarded
// dependency gets an independent instance.
type BreakersConfig struct {
	Extraction BreakerConfig `mapstructure:"extraction"`
	Geocoding  BreakerConfig `mapstructure:"geocoding"`
	HTTP       BreakerConfig `mapstructure:"http"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// SnapshotsConfig selects where raw page snapshots are archived.
type SnapshotsConfig struct {
	Backend     string `mapstructure:"backend"` // none, local, gcs
	LocalPath   string `mapstructure:"local_path"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for progress push notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FESTIVAL")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 300)
	v.SetDefault("logging.development", false)
	v.SetDefault("crawler.user_agent", "festival-crawler-bot/0.1")
	v.SetDefault("crawler.max_pages", 15)
	v.SetDefault("crawler.explore_budget_seconds", 120)
	v.SetDefault("crawler.fetch_timeout_seconds", 15)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("extraction.api_url", "https://api.anthropic.com/v1/messages")
	v.SetDefault("extraction.model", "claude-3-5-sonnet-latest")
	v.SetDefault("extraction.max_tokens", 4096)
	v.SetDefault("geocoding.cache_ttl_minutes", 1440)
	v.SetDefault("geocoding.batch_size", 5)
	v.SetDefault("geocoding.batch_delay_ms", 1000)
	v.SetDefault("breakers.extraction.failure_threshold", 3)
	v.SetDefault("breakers.extraction.reset_timeout_seconds", 60)
	v.SetDefault("breakers.extraction.monitoring_period_seconds", 120)
	v.SetDefault("breakers.extraction.request_timeout_seconds", 90)
	v.SetDefault("breakers.geocoding.failure_threshold", 5)
	v.SetDefault("breakers.geocoding.reset_timeout_seconds", 30)
	v.SetDefault("breakers.geocoding.monitoring_period_seconds", 60)
	v.SetDefault("breakers.geocoding.request_timeout_seconds", 10)
	v.SetDefault("breakers.http.failure_threshold", 5)
	v.SetDefault("breakers.http.reset_timeout_seconds", 30)
	v.SetDefault("breakers.http.monitoring_period_seconds", 60)
	v.SetDefault("breakers.http.request_timeout_seconds", 20)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.migrate", true)
	v.SetDefault("snapshots.backend", "none")
	v.SetDefault("snapshots.prefix", "pages")
	v.SetDefault("snapshots.content_type", "text/html; charset=utf-8")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxPages <= 0 || c.Crawler.MaxPages > 15 {
		return fmt.Errorf("crawler.max_pages must be between 1 and 15")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Snapshots.Backend {
	case "", "none", "local", "gcs":
	default:
		return fmt.Errorf("snapshots.backend must be none, local, or gcs")
	}
	if c.Snapshots.Backend == "gcs" && c.Snapshots.GCSBucket == "" {
		return fmt.Errorf("snapshots.gcs_bucket must be set for the gcs backend")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// ExploreBudget is the shared deadline for the fetch-and-explore phase.
func (c Config) ExploreBudget() time.Duration {
	return time.Duration(c.Crawler.ExploreBudgetSeconds) * time.Second
}

// FetchTimeout is the per-page fetch deadline.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.FetchTimeoutSeconds) * time.Second
}

// Duration helpers for breaker wiring.
func (b BreakerConfig) Reset() time.Duration {
	return time.Duration(b.ResetTimeoutSec) * time.Second
}

func (b BreakerConfig) Monitoring() time.Duration {
	return time.Duration(b.MonitoringSec) * time.Second
}

func (b BreakerConfig) Request() time.Duration {
	return time.Duration(b.RequestTimeout) * time.Second
}
