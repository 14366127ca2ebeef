package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/hash/sha256"
)

// fakeClock is a settable clock for retention tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func testPayload() catalog.NotificationPayload {
	detected := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return catalog.NotificationPayload{
		Site: "shop.example.com",
		Pages: []catalog.PageDescriptor{
			{URL: "https://shop.example.com/products/a", ChangeType: catalog.ChangeAdded, DetectedAt: detected, Content: "body a"},
			{URL: "https://shop.example.com/products/b", ChangeType: catalog.ChangeModified, DetectedAt: detected, Content: "body b"},
		},
	}
}

func newTestGuard(t *testing.T, clock catalog.Clock, retention time.Duration) *Guard {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	return NewGuard(store, sha256.New(), clock, retention)
}

// TestFingerprintOrderIndependent verifies the digest is unchanged under
// permutation of the page list.
func TestFingerprintOrderIndependent(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t, &fakeClock{now: time.Now()}, 0)

	payload := testPayload()
	reversed := testPayload()
	reversed.Pages[0], reversed.Pages[1] = reversed.Pages[1], reversed.Pages[0]

	d1, err := g.Fingerprint(payload)
	require.NoError(t, err)
	d2, err := g.Fingerprint(reversed)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestFingerprintReflectsContent(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t, &fakeClock{now: time.Now()}, 0)

	base := testPayload()
	d1, err := g.Fingerprint(base)
	require.NoError(t, err)

	changed := testPayload()
	changed.Pages[0].Content = "different body"
	d2, err := g.Fingerprint(changed)
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)
}

func TestFingerprintUsesDiffWhenNoContent(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t, &fakeClock{now: time.Now()}, 0)

	withDiff := testPayload()
	withDiff.Pages[0].Content = ""
	withDiff.Pages[0].Diff = "+added line"

	otherDiff := testPayload()
	otherDiff.Pages[0].Content = ""
	otherDiff.Pages[0].Diff = "+other line"

	d1, err := g.Fingerprint(withDiff)
	require.NoError(t, err)
	d2, err := g.Fingerprint(otherDiff)
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)
}

// TestDuplicateFlow verifies first-submission-then-duplicate semantics.
func TestDuplicateFlow(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t, &fakeClock{now: time.Now()}, 0)
	payload := testPayload()

	dup, digest, prior, err := g.IsDuplicate(payload)
	require.NoError(t, err)
	require.False(t, dup)
	require.NotEmpty(t, digest)
	require.Nil(t, prior)

	require.NoError(t, g.RecordProcessed(payload, digest, "2 pages"))

	dup, digest2, prior, err := g.IsDuplicate(payload)
	require.NoError(t, err)
	require.True(t, dup)
	require.Equal(t, digest, digest2)
	require.NotNil(t, prior)
	require.Equal(t, "2 pages", prior.Summary)
	require.Len(t, prior.Pages, 2)
}

func TestDuplicateSurvivesReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := OpenStore(dir)
	require.NoError(t, err)
	clock := &fakeClock{now: time.Now()}
	g := NewGuard(store, sha256.New(), clock, 0)

	payload := testPayload()
	digest, err := g.Fingerprint(payload)
	require.NoError(t, err)
	require.NoError(t, g.RecordProcessed(payload, digest, "ok"))

	reloaded, err := OpenStore(dir)
	require.NoError(t, err)
	g2 := NewGuard(reloaded, sha256.New(), clock, 0)
	dup, _, _, err := g2.IsDuplicate(payload)
	require.NoError(t, err)
	require.True(t, dup)
}

func TestEviction(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	g := newTestGuard(t, clock, 0)

	payload := testPayload()
	digest, err := g.Fingerprint(payload)
	require.NoError(t, err)
	require.NoError(t, g.RecordProcessed(payload, digest, "ok"))

	// Advance past the retention window and evict.
	clock.now = clock.now.Add(100 * 24 * time.Hour)
	evicted, err := g.EvictOlderThan(90 * 24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)

	dup, _, _, err := g.IsDuplicate(payload)
	require.NoError(t, err)
	require.False(t, dup)
}

func TestRecordProcessedAppliesRetention(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	g := newTestGuard(t, clock, 30*24*time.Hour)

	old := testPayload()
	oldDigest, err := g.Fingerprint(old)
	require.NoError(t, err)
	require.NoError(t, g.RecordProcessed(old, oldDigest, "old"))

	clock.now = clock.now.Add(60 * 24 * time.Hour)
	fresh := testPayload()
	fresh.Pages[0].Content = "fresh body"
	freshDigest, err := g.Fingerprint(fresh)
	require.NoError(t, err)
	require.NoError(t, g.RecordProcessed(fresh, freshDigest, "fresh"))

	require.Equal(t, 1, g.store.Len())
	_, ok := g.store.Get(freshDigest)
	require.True(t, ok)
}
