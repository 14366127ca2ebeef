// Package app initializes and holds long-lived application services, acting
// as a dependency injection container. It builds one syncer per configured
// site and serializes runs so each site has a single writer.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/clock/system"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/config"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/diffextract"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/fetch"
	collyfetcher "github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/fetch/colly"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/fingerprint"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/hash/sha256"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/id/uuid"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/index"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/kb"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/logging"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/metrics"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/shard"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/syncer"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and passed to the components that need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	sites  map[string]*siteRunner
}

// siteRunner pairs a site's syncer with the mutex that serializes its runs.
type siteRunner struct {
	mu     sync.Mutex
	cfg    config.SiteConfig
	syncer *syncer.Syncer
}

// New creates and initializes an App from configuration. It is the central
// point for service initialization and fails fast if any site cannot be
// built.
func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	a := &App{
		cfg:    cfg,
		logger: logger,
		sites:  make(map[string]*siteRunner, len(cfg.Sites)),
	}

	clk := system.New()
	idGen := uuid.New()
	limiter := fetch.NewLimiter(cfg.Fetch.RequestsPerSec, cfg.Fetch.Burst)
	retry := fetch.NewRetryPolicy(cfg.Fetch.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax())

	for _, name := range cfg.SiteNames() {
		siteCfg := cfg.Sites[name]
		siteLogger := logging.ForSite(logger, name)

		classifier, err := shard.NewClassifier(siteCfg.Rules)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", name, err)
		}

		dir := filepath.Join(cfg.Storage.DataDir, name)
		store, err := index.Open(dir, classifier.Normalize, siteLogger)
		if err != nil {
			return nil, fmt.Errorf("site %s: open index: %w", name, err)
		}
		fpStore, err := fingerprint.OpenStore(dir)
		if err != nil {
			return nil, fmt.Errorf("site %s: open fingerprints: %w", name, err)
		}

		var extractor *diffextract.Extractor
		if siteCfg.Rules.ItemPattern != "" {
			extractor, err = diffextract.New(siteCfg.Rules.ItemPattern)
			if err != nil {
				return nil, fmt.Errorf("site %s: %w", name, err)
			}
		}

		fetcher, err := buildFetcher(cfg, limiter, retry, siteLogger)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", name, err)
		}

		opts := syncer.Options{
			Site:       name,
			Dir:        dir,
			Classifier: classifier,
			Store:      store,
			Writer:     index.NewWriter(dir, name, cfg.Shards.BudgetChars, siteLogger),
			Guard:      fingerprint.NewGuard(fpStore, sha256.New(), clk, cfg.Fingerprint.Retention()),
			Fetcher:    fetcher,
			Extractor:  extractor,
			Clock:      clk,
			IDGen:      idGen,
			Logger:     siteLogger,
		}

		if cfg.KB.Enabled() {
			uploader, err := kb.NewClient(kb.ClientConfig{
				BaseURL: cfg.KB.BaseURL,
				APIKey:  cfg.KB.APIKey,
				Timeout: cfg.KB.Timeout(),
			}, siteLogger)
			if err != nil {
				return nil, fmt.Errorf("site %s: knowledge base client: %w", name, err)
			}
			state, err := kb.OpenState(dir)
			if err != nil {
				return nil, fmt.Errorf("site %s: open kb state: %w", name, err)
			}
			opts.Uploader = uploader
			opts.KBState = state
			opts.AgentID = cfg.KB.AgentID
		}

		s, err := syncer.New(opts)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", name, err)
		}
		a.sites[name] = &siteRunner{cfg: siteCfg, syncer: s}
	}

	logger.Info("application services initialized", zap.Int("sites", len(a.sites)))
	return a, nil
}

// buildFetcher prefers the scrape API when configured and falls back to the
// direct HTML fetcher otherwise.
func buildFetcher(cfg config.Config, limiter *fetch.Limiter, retry *fetch.ExponentialRetryPolicy, logger *zap.Logger) (catalog.Fetcher, error) {
	if cfg.Fetch.ScrapeBaseURL != "" {
		client, err := fetch.NewClient(fetch.ClientConfig{
			BaseURL: cfg.Fetch.ScrapeBaseURL,
			APIKey:  cfg.Fetch.ScrapeAPIKey,
			Timeout: cfg.FetchTimeout(),
		}, limiter, retry, logger)
		if err != nil {
			return nil, fmt.Errorf("scrape api client: %w", err)
		}
		return client, nil
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, logger), nil
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// SiteNames returns the configured site names, sorted.
func (a *App) SiteNames() []string {
	return a.cfg.SiteNames()
}

func (a *App) runner(site string) (*siteRunner, error) {
	r, ok := a.sites[site]
	if !ok {
		return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownSite, site)
	}
	return r, nil
}

// Notify runs a change-notification payload through the site's syncer.
// Runs for the same site never overlap.
func (a *App) Notify(ctx context.Context, site string, payload catalog.NotificationPayload) (catalog.Summary, error) {
	r, err := a.runner(site)
	if err != nil {
		return catalog.Summary{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncer.ApplyNotification(ctx, payload)
}

// ApplyChanges runs a targeted incremental batch for a site.
func (a *App) ApplyChanges(ctx context.Context, site string, added, changed, removed []string) (catalog.Summary, error) {
	r, err := a.runner(site)
	if err != nil {
		return catalog.Summary{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncer.ApplyChanges(ctx, added, changed, removed)
}

// FullSync re-ingests a site's complete catalog. When urls is empty the
// site's configured seed URLs are used.
func (a *App) FullSync(ctx context.Context, site string, urls []string) (catalog.Summary, error) {
	r, err := a.runner(site)
	if err != nil {
		return catalog.Summary{}, err
	}
	if len(urls) == 0 {
		urls = r.cfg.SeedURLs
	}
	if len(urls) == 0 {
		return catalog.Summary{}, fmt.Errorf("site %q has no seed urls for a full sync", site)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncer.FullSync(ctx, urls)
}

// Close flushes the logger. Per-site state is persisted at the end of each
// batch, so there is nothing else to tear down.
func (a *App) Close() {
	// Sync can fail on stderr; nothing useful to do about it here.
	_ = a.logger.Sync()
}
