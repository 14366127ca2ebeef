// Package syncer sequences normalization, fetching, index mutation, shard
// rendering, and persistence for one site.
package syncer

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/diffextract"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/fingerprint"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/index"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/kb"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/metrics"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/shard"
)

// Options wires a Syncer's collaborators. Store, Writer, Classifier, Clock,
// and IDGen are required; Guard, Uploader, and Extractor are optional.
type Options struct {
	Site       string
	Dir        string
	Classifier *shard.Classifier
	Store      *index.Store
	Writer     *index.Writer
	Guard      *fingerprint.Guard
	Fetcher    catalog.Fetcher
	Uploader   catalog.Uploader
	KBState    *kb.State
	AgentID    string
	Extractor  *diffextract.Extractor
	Clock      catalog.Clock
	IDGen      catalog.IDGenerator
	Logger     *zap.Logger
}

// Syncer executes sync batches for a single site. Access is single-writer:
// the caller serializes runs per site.
type Syncer struct {
	opts   Options
	logger *zap.Logger
}

// New validates options and builds a Syncer.
func New(opts Options) (*Syncer, error) {
	if opts.Site == "" {
		return nil, fmt.Errorf("site is required")
	}
	if opts.Classifier == nil || opts.Store == nil || opts.Writer == nil {
		return nil, fmt.Errorf("classifier, store, and writer are required")
	}
	if opts.Clock == nil || opts.IDGen == nil {
		return nil, fmt.Errorf("clock and id generator are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{opts: opts, logger: logger}, nil
}

// batch separates URLs to ingest from URLs to drop.
type batch struct {
	adds    []string
	removes []string
}

// FullSync re-ingests the complete catalog given by urls: every URL is
// fetched and upserted, and index entries absent from urls are removed.
func (s *Syncer) FullSync(ctx context.Context, urls []string) (catalog.Summary, error) {
	removes := s.staleURLs(urls)
	return s.run(ctx, batch{adds: urls, removes: removes})
}

// ApplyChanges runs a targeted incremental batch.
func (s *Syncer) ApplyChanges(ctx context.Context, added, changed, removed []string) (catalog.Summary, error) {
	adds := make([]string, 0, len(added)+len(changed))
	adds = append(adds, added...)
	adds = append(adds, changed...)
	return s.run(ctx, batch{adds: adds, removes: removed})
}

// ApplyNotification gates a change-notification payload through the
// fingerprint guard, expands listing-page diffs into item URLs, and runs
// the resulting batch. Duplicates short-circuit with no index mutation and
// no external calls.
func (s *Syncer) ApplyNotification(ctx context.Context, payload catalog.NotificationPayload) (catalog.Summary, error) {
	if s.opts.Guard == nil {
		return catalog.Summary{}, fmt.Errorf("notification handling requires a fingerprint guard")
	}

	dup, digest, prior, err := s.opts.Guard.IsDuplicate(payload)
	if err != nil {
		return catalog.Summary{}, fmt.Errorf("fingerprint payload: %w", err)
	}
	if dup {
		s.logger.Info("duplicate notification discarded",
			zap.String("fingerprint", digest),
			zap.Time("first_processed_at", prior.ProcessedAt),
		)
		metrics.ObserveNotification(s.opts.Site, "duplicate")
		return catalog.Summary{Site: s.opts.Site, Duplicate: true}, nil
	}

	summary, err := s.run(ctx, s.expand(payload))
	if err != nil {
		return summary, err
	}

	text := fmt.Sprintf("%d processed, %d skipped, %d failed across %d pages",
		summary.Processed, summary.Skipped, summary.Failed, len(payload.Pages))
	if err := s.opts.Guard.RecordProcessed(payload, digest, text); err != nil {
		return summary, fmt.Errorf("record fingerprint: %w", err)
	}
	metrics.ObserveNotification(s.opts.Site, "processed")
	return summary, nil
}

// expand turns page descriptors into concrete adds/removes. Listing pages
// carrying a diff contribute only the item URLs the diff actually touched;
// a diff that yields nothing degrades to treating the listing page itself
// as one unit.
func (s *Syncer) expand(payload catalog.NotificationPayload) batch {
	var b batch
	for _, page := range payload.Pages {
		isListingDiff := page.Diff != "" &&
			s.opts.Extractor != nil &&
			s.opts.Classifier.IsListing(page.URL)

		switch page.ChangeType {
		case catalog.ChangeRemoved:
			b.removes = append(b.removes, page.URL)
		case catalog.ChangeAdded, catalog.ChangeModified:
			if !isListingDiff {
				b.adds = append(b.adds, page.URL)
				continue
			}
			base, err := url.Parse(page.URL)
			if err != nil {
				b.adds = append(b.adds, page.URL)
				continue
			}
			added := s.opts.Extractor.Extract(page.Diff, diffextract.ModeAdded, base)
			removed := s.opts.Extractor.Extract(page.Diff, diffextract.ModeRemoved, base)
			if len(added) == 0 && len(removed) == 0 {
				s.logger.Warn("diff extraction found no item urls, falling back to whole page",
					zap.String("url", page.URL),
				)
				b.adds = append(b.adds, page.URL)
				continue
			}
			b.adds = append(b.adds, added...)
			b.removes = append(b.removes, removed...)
		default:
			s.logger.Warn("unknown change type skipped",
				zap.String("url", page.URL),
				zap.String("change_type", string(page.ChangeType)),
			)
		}
	}
	return b
}

// run executes a batch: mutate the index, re-render every touched shard,
// persist once, then upload changed shard files.
func (s *Syncer) run(ctx context.Context, b batch) (catalog.Summary, error) {
	start := s.opts.Clock.Now()
	runID, err := s.opts.IDGen.NewID()
	if err != nil {
		return catalog.Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	summary := catalog.Summary{RunID: runID, Site: s.opts.Site}
	touched := make(map[string]struct{})

	for _, rawURL := range b.removes {
		key, removed, err := s.opts.Store.Remove(rawURL)
		if err != nil {
			s.logger.Warn("remove skipped", zap.String("url", rawURL), zap.Error(err))
			summary.Skipped++
			metrics.ObservePage(s.opts.Site, "skipped")
			continue
		}
		if !removed {
			summary.Skipped++
			metrics.ObservePage(s.opts.Site, "skipped")
			continue
		}
		touched[key] = struct{}{}
		summary.Processed++
		metrics.ObservePage(s.opts.Site, "processed")
	}

	for _, rawURL := range b.adds {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("batch interrupted: %w", err)
		}
		keys, ok := s.ingest(ctx, rawURL, &summary)
		if ok {
			for _, key := range keys {
				touched[key] = struct{}{}
			}
		}
	}

	summary.TouchedShards = sortedKeys(touched)
	renderedFiles, err := s.renderTouched(summary.TouchedShards)
	if err != nil {
		return summary, err
	}

	if err := s.opts.Store.Persist(); err != nil {
		return summary, fmt.Errorf("persist state: %w", err)
	}

	if err := s.uploadShards(ctx, renderedFiles); err != nil {
		return summary, err
	}

	summary.Duration = s.opts.Clock.Now().Sub(start)
	metrics.ObserveSyncDuration(s.opts.Site, summary.Duration)
	s.logger.Info("batch finished",
		zap.String("run_id", summary.RunID),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Strings("touched_shards", summary.TouchedShards),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// ingest fetches one URL and upserts it, returning the touched shard keys
// (two when the item moved shards). Per-item failures are counted, never
// fatal.
func (s *Syncer) ingest(ctx context.Context, rawURL string, summary *catalog.Summary) ([]string, bool) {
	if !s.opts.Classifier.Allowed(rawURL) {
		s.logger.Debug("url excluded by filters", zap.String("url", rawURL))
		summary.Skipped++
		metrics.ObservePage(s.opts.Site, "skipped")
		return nil, false
	}
	if s.opts.Fetcher == nil {
		s.logger.Error("no fetcher configured", zap.String("url", rawURL))
		summary.Failed++
		metrics.ObservePage(s.opts.Site, "failed")
		return nil, false
	}

	page, err := s.opts.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Warn("fetch failed, item skipped", zap.String("url", rawURL), zap.Error(err))
		summary.Failed++
		metrics.ObservePage(s.opts.Site, "failed")
		return nil, false
	}

	key := s.opts.Classifier.Classify(rawURL)
	keys, err := s.opts.Store.Upsert(rawURL, index.Record{
		Title:     page.Title,
		Body:      page.Body,
		ShardKey:  key,
		UpdatedAt: s.opts.Clock.Now(),
	})
	if err != nil {
		s.logger.Warn("upsert skipped", zap.String("url", rawURL), zap.Error(err))
		summary.Skipped++
		metrics.ObservePage(s.opts.Site, "skipped")
		return nil, false
	}

	summary.Processed++
	metrics.ObservePage(s.opts.Site, "processed")
	for _, old := range keys[1:] {
		s.logger.Info("item moved between shards",
			zap.String("url", rawURL),
			zap.String("from", old),
			zap.String("to", key),
		)
	}
	return keys, true
}

// staleURLs lists index entries not present in the full-catalog URL set.
func (s *Syncer) staleURLs(urls []string) []string {
	live := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		if norm, err := s.opts.Classifier.Normalize(raw); err == nil {
			live[norm] = struct{}{}
		}
	}
	var stale []string
	for _, key := range s.opts.Store.Shards() {
		for _, member := range s.opts.Store.Members(key) {
			if _, ok := live[member]; !ok {
				stale = append(stale, member)
			}
		}
	}
	sort.Strings(stale)
	return stale
}

// renderTouched rebuilds every touched shard and returns the written files.
func (s *Syncer) renderTouched(shards []string) ([]string, error) {
	var files []string
	for _, key := range shards {
		written, err := s.opts.Writer.Render(key, s.opts.Store)
		if err != nil {
			return nil, fmt.Errorf("render shard %s: %w", key, err)
		}
		metrics.ObserveShardRendered(s.opts.Site)
		files = append(files, written...)
	}
	return files, nil
}

// uploadShards pushes changed shard files to the knowledge base, drops
// bookkeeping for files the render deleted, and re-assigns the full
// document list to the agent.
func (s *Syncer) uploadShards(ctx context.Context, files []string) error {
	if s.opts.Uploader == nil || s.opts.KBState == nil || len(files) == 0 {
		return nil
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(s.opts.Dir, name))
		if err != nil {
			return fmt.Errorf("read shard file %s: %w", name, err)
		}
		docID, err := s.opts.Uploader.UploadFile(ctx, name, content)
		if err != nil {
			metrics.ObserveKBUpload(s.opts.Site, "failed")
			return fmt.Errorf("upload shard file %s: %w", name, err)
		}
		metrics.ObserveKBUpload(s.opts.Site, "ok")
		s.opts.KBState.SetDocumentID(name, docID)
	}

	for _, name := range s.opts.KBState.Files() {
		if _, err := os.Stat(filepath.Join(s.opts.Dir, name)); os.IsNotExist(err) {
			s.opts.KBState.Forget(name)
		}
	}

	if s.opts.AgentID != "" {
		if err := s.opts.Uploader.AssignDocuments(ctx, s.opts.AgentID, s.opts.KBState.DocumentIDs()); err != nil {
			return fmt.Errorf("assign documents: %w", err)
		}
	}
	return s.opts.KBState.Persist()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
