// Package fingerprint detects and discards duplicate change-notification
// payloads. It is the system's only idempotency guarantee against retried
// or redelivered notifications.
package fingerprint

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
)

// Guard computes order-independent payload digests and tracks which ones
// have already been processed.
type Guard struct {
	store     *Store
	hasher    catalog.Hasher
	clock     catalog.Clock
	retention time.Duration
}

// NewGuard builds a Guard. retention bounds how long processed records are
// kept; zero disables eviction.
func NewGuard(store *Store, hasher catalog.Hasher, clock catalog.Clock, retention time.Duration) *Guard {
	return &Guard{store: store, hasher: hasher, clock: clock, retention: retention}
}

// Fingerprint digests a payload. Page descriptors are sorted by URL before
// hashing and each page's body content is reduced to a content digest, so
// the result reflects actual content, not notification framing or ordering.
func (g *Guard) Fingerprint(payload catalog.NotificationPayload) (string, error) {
	pages := make([]catalog.PageDescriptor, len(payload.Pages))
	copy(pages, payload.Pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].URL < pages[j].URL })

	var b strings.Builder
	b.WriteString(payload.Site)
	b.WriteString("\n")
	for _, p := range pages {
		content := p.Content
		if content == "" {
			content = p.Diff
		}
		contentDigest, err := g.hasher.Hash([]byte(content))
		if err != nil {
			return "", fmt.Errorf("hash page content for %s: %w", p.URL, err)
		}
		b.WriteString(p.URL)
		b.WriteString("|")
		b.WriteString(string(p.ChangeType))
		b.WriteString("|")
		b.WriteString(contentDigest)
		b.WriteString("\n")
	}

	digest, err := g.hasher.Hash([]byte(b.String()))
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	return digest, nil
}

// IsDuplicate reports whether the payload was already processed, returning
// the digest and the prior record when it was.
func (g *Guard) IsDuplicate(payload catalog.NotificationPayload) (bool, string, *catalog.FingerprintRecord, error) {
	digest, err := g.Fingerprint(payload)
	if err != nil {
		return false, "", nil, err
	}
	prior, ok := g.store.Get(digest)
	if !ok {
		return false, digest, nil, nil
	}
	return true, digest, &prior, nil
}

// RecordProcessed stores a record for a freshly processed payload and
// evicts records past the retention window.
func (g *Guard) RecordProcessed(payload catalog.NotificationPayload, digest, summary string) error {
	rec := catalog.FingerprintRecord{
		Fingerprint: digest,
		ProcessedAt: g.clock.Now(),
		Summary:     summary,
		Pages:       make([]catalog.PageSummary, 0, len(payload.Pages)),
	}
	for _, p := range payload.Pages {
		rec.Pages = append(rec.Pages, catalog.PageSummary{
			URL:        p.URL,
			ChangeType: p.ChangeType,
			DetectedAt: p.DetectedAt,
		})
	}
	g.store.Put(rec)
	if g.retention > 0 {
		g.store.EvictOlderThan(g.clock.Now().Add(-g.retention))
	}
	return g.store.Persist()
}

// EvictOlderThan removes records older than the given duration and persists
// the store when anything was dropped.
func (g *Guard) EvictOlderThan(age time.Duration) (int, error) {
	evicted := g.store.EvictOlderThan(g.clock.Now().Add(-age))
	if evicted == 0 {
		return 0, nil
	}
	return evicted, g.store.Persist()
}
