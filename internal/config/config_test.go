package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/shard"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
server:
  port: 9090
storage:
  data_dir: /var/lib/llmstxt
fetch:
  scrape_base_url: https://scrape.internal
  scrape_api_key: secret
  timeout_seconds: 45
  max_retries: 4
  requests_per_sec: 0.5
kb:
  base_url: https://kb.internal
  api_key: kb-secret
  agent_id: agent-7
shards:
  budget_chars: 150000
fingerprint:
  retention_days: 30
sites:
  example:
    base_url: https://shop.example.com
    schedule: "0 3 * * *"
    seed_urls:
      - https://shop.example.com/collections/all
    rules:
      method: path_segment
      listing_roots: [collections]
      item_pattern: "/products/[a-z0-9-]+"
      listing_pattern: "/collections/[a-z0-9-]+"
      allowed_params: [currency]
      keywords:
        - keywords: [drill, bit]
          shard: drill_bits
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.False(t, cfg.Logging.Development)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/var/lib/llmstxt", cfg.Storage.DataDir)
	require.Equal(t, "https://scrape.internal", cfg.Fetch.ScrapeBaseURL)
	require.Equal(t, 45*time.Second, cfg.FetchTimeout())
	require.Equal(t, 4, cfg.Fetch.MaxRetries)
	require.True(t, cfg.KB.Enabled())
	require.Equal(t, "agent-7", cfg.KB.AgentID)
	require.Equal(t, 150000, cfg.Shards.BudgetChars)
	require.Equal(t, 30*24*time.Hour, cfg.Fingerprint.Retention())

	site, ok := cfg.Site("example")
	require.True(t, ok)
	require.Equal(t, "https://shop.example.com", site.BaseURL)
	require.Equal(t, "0 3 * * *", site.Schedule)
	require.Equal(t, shard.MethodPathSegment, site.Rules.Method)
	require.Equal(t, []string{"collections"}, site.Rules.ListingRoots)
	require.Len(t, site.Rules.Keywords, 1)
	require.Equal(t, "drill_bits", site.Rules.Keywords[0].Shard)
	require.Equal(t, []string{"example"}, cfg.SiteNames())
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "data", cfg.Storage.DataDir)
	require.Equal(t, 300000, cfg.Shards.BudgetChars)
	require.Equal(t, 90, cfg.Fingerprint.RetentionDays)
	require.False(t, cfg.KB.Enabled())
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Server:      ServerConfig{Port: 8080},
			Storage:     StorageConfig{DataDir: "data"},
			Fetch:       FetchConfig{TimeoutSeconds: 30},
			Shards:      ShardConfig{BudgetChars: 300000},
			Fingerprint: FingerprintConfig{RetentionDays: 90},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "invalid port",
			mutate: func(c *Config) { c.Server.Port = 0 },
			want:   "server.port",
		},
		{
			name:   "missing data dir",
			mutate: func(c *Config) { c.Storage.DataDir = "" },
			want:   "storage.data_dir",
		},
		{
			name:   "invalid budget",
			mutate: func(c *Config) { c.Shards.BudgetChars = 0 },
			want:   "shards.budget_chars",
		},
		{
			name:   "kb without agent",
			mutate: func(c *Config) { c.KB.BaseURL = "https://kb.internal" },
			want:   "kb.agent_id",
		},
		{
			name: "site without base url",
			mutate: func(c *Config) {
				c.Sites = map[string]SiteConfig{"broken": {}}
			},
			want: "sites.broken.base_url",
		},
		{
			name: "unknown shard method",
			mutate: func(c *Config) {
				c.Sites = map[string]SiteConfig{"broken": {
					BaseURL: "https://x.example.com",
					Rules:   shard.Rules{Method: "astrology"},
				}}
			},
			want: "rules.method",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorContains(t, err, tt.want)
		})
	}
}
