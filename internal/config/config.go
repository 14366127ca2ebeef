// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/shard"
)

// Config captures all service configuration knobs loaded via Viper.
// It is constructed once per run and never mutated by the core.
type Config struct {
	Logging     LoggingConfig         `mapstructure:"logging"`
	Server      ServerConfig          `mapstructure:"server"`
	Storage     StorageConfig         `mapstructure:"storage"`
	Fetch       FetchConfig           `mapstructure:"fetch"`
	KB          KBConfig              `mapstructure:"kb"`
	Shards      ShardConfig           `mapstructure:"shards"`
	Fingerprint FingerprintConfig     `mapstructure:"fingerprint"`
	Sites       map[string]SiteConfig `mapstructure:"sites"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the webhook HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// StorageConfig sets where per-site state and shard files live.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// FetchConfig configures the content-fetch collaborator and its retry and
// rate-limit behavior.
type FetchConfig struct {
	ScrapeBaseURL    string  `mapstructure:"scrape_base_url"`
	ScrapeAPIKey     string  `mapstructure:"scrape_api_key"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	RequestsPerSec   float64 `mapstructure:"requests_per_sec"`
	Burst            int     `mapstructure:"burst"`
	UserAgent        string  `mapstructure:"user_agent"`
}

// KBConfig points at the knowledge-base sync target. An empty base URL
// disables uploads.
type KBConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	AgentID        string `mapstructure:"agent_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Enabled reports whether shard files should be uploaded after rendering.
func (k KBConfig) Enabled() bool {
	return k.BaseURL != ""
}

// Timeout converts the knowledge-base timeout into a duration.
func (k KBConfig) Timeout() time.Duration {
	return time.Duration(k.TimeoutSeconds) * time.Second
}

// ShardConfig bounds rendered shard files.
type ShardConfig struct {
	BudgetChars int `mapstructure:"budget_chars"`
}

// FingerprintConfig controls notification-deduplication retention.
type FingerprintConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// Retention converts the configured day count into a duration.
func (f FingerprintConfig) Retention() time.Duration {
	return time.Duration(f.RetentionDays) * 24 * time.Hour
}

// SiteConfig is the per-domain configuration, read-only during a run.
type SiteConfig struct {
	BaseURL  string      `mapstructure:"base_url"`
	Rules    shard.Rules `mapstructure:"rules"`
	Schedule string      `mapstructure:"schedule"`
	SeedURLs []string    `mapstructure:"seed_urls"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LLMSTXT")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_initial_ms", 500)
	v.SetDefault("fetch.backoff_max_ms", 8000)
	v.SetDefault("fetch.requests_per_sec", 2)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.user_agent", "llmstxt-sync/1.0")
	v.SetDefault("kb.timeout_seconds", 60)
	v.SetDefault("shards.budget_chars", 300000)
	v.SetDefault("fingerprint.retention_days", 90)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must be set")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Shards.BudgetChars <= 0 {
		return fmt.Errorf("shards.budget_chars must be > 0")
	}
	if c.Fingerprint.RetentionDays < 0 {
		return fmt.Errorf("fingerprint.retention_days must be >= 0")
	}
	if c.KB.Enabled() && c.KB.AgentID == "" {
		return fmt.Errorf("kb.agent_id must be set when kb.base_url is set")
	}
	for name, site := range c.Sites {
		if site.BaseURL == "" {
			return fmt.Errorf("sites.%s.base_url must be set", name)
		}
		switch site.Rules.Method {
		case "", shard.MethodPathSegment, shard.MethodKeyword:
		default:
			return fmt.Errorf("sites.%s.rules.method %q is not supported", name, site.Rules.Method)
		}
	}
	return nil
}

// Site returns a site's configuration by name.
func (c Config) Site(name string) (SiteConfig, bool) {
	site, ok := c.Sites[name]
	return site, ok
}

// SiteNames returns configured site names, sorted.
func (c Config) SiteNames() []string {
	names := make([]string, 0, len(c.Sites))
	for name := range c.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial backoff into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Fetch.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff ceiling into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Fetch.BackoffMaxMs) * time.Millisecond
}
