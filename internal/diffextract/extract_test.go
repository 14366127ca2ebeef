package diffextract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

const itemPattern = `/products/[a-z0-9-]+`

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(itemPattern)
	require.NoError(t, err)
	return e
}

func listingBase(t *testing.T) *url.URL {
	t.Helper()
	base, err := url.Parse("https://shop.example.com/collections/drill-bits")
	require.NoError(t, err)
	return base
}

// TestExtractAddedIgnoresContext verifies that only +-marked lines
// contribute URLs, not unchanged context lines.
func TestExtractAddedIgnoresContext(t *testing.T) {
	t.Parallel()

	diff := `@@ -10,4 +10,5 @@
 <a href="https://shop.example.com/products/old-item">Old</a>
+<a href="https://shop.example.com/products/new-item">New</a>
 <span>unrelated</span>
`
	got := newExtractor(t).Extract(diff, ModeAdded, listingBase(t))
	require.Equal(t, []string{"https://shop.example.com/products/new-item"}, got)
}

func TestExtractRemoved(t *testing.T) {
	t.Parallel()

	diff := `@@ -3,3 +3,2 @@
 context line
-<a href="https://shop.example.com/products/gone-item">Gone</a>
+<a href="https://shop.example.com/products/replacement">New</a>
`
	got := newExtractor(t).Extract(diff, ModeRemoved, listingBase(t))
	require.Equal(t, []string{"https://shop.example.com/products/gone-item"}, got)
}

// TestExtractExcludesFileHeaders ensures +++/--- headers are not mistaken
// for changed lines even though they share the prefix character.
func TestExtractExcludesFileHeaders(t *testing.T) {
	t.Parallel()

	diff := `--- a/listing https://shop.example.com/products/header-artifact
+++ b/listing https://shop.example.com/products/header-artifact
+real line https://shop.example.com/products/real-item
`
	e := newExtractor(t)

	added := e.Extract(diff, ModeAdded, listingBase(t))
	require.Equal(t, []string{"https://shop.example.com/products/real-item"}, added)

	removed := e.Extract(diff, ModeRemoved, listingBase(t))
	require.Empty(t, removed)
}

func TestExtractResolvesRelativeURLs(t *testing.T) {
	t.Parallel()

	diff := `+<a href="/products/relative-item">New</a>`
	got := newExtractor(t).Extract(diff, ModeAdded, listingBase(t))
	require.Equal(t, []string{"https://shop.example.com/products/relative-item"}, got)
}

func TestExtractFiltersAssets(t *testing.T) {
	t.Parallel()

	diff := `+<img src="https://shop.example.com/products/new-item.png">
+<script src="https://cdn.example.com/products/bundle.js"></script>
+<a href="https://shop.example.com/cdn/products/cached-item">cached</a>
+<a href="https://shop.example.com/products/actual-item">buy</a>
`
	got := newExtractor(t).Extract(diff, ModeAdded, listingBase(t))
	require.Equal(t, []string{"https://shop.example.com/products/actual-item"}, got)
}

func TestExtractDeduplicatesPreservingOrder(t *testing.T) {
	t.Parallel()

	diff := `+<a href="https://shop.example.com/products/b-item">B</a>
+<a href="https://shop.example.com/products/a-item">A</a>
+<a href="https://shop.example.com/products/b-item">B again</a>
`
	got := newExtractor(t).Extract(diff, ModeAdded, listingBase(t))
	require.Equal(t, []string{
		"https://shop.example.com/products/b-item",
		"https://shop.example.com/products/a-item",
	}, got)
}

func TestExtractEmptyMeansFallback(t *testing.T) {
	t.Parallel()

	diff := `+<span>no urls here</span>
-<div>nor here</div>
`
	e := newExtractor(t)
	require.Empty(t, e.Extract(diff, ModeAdded, listingBase(t)))
	require.Empty(t, e.Extract(diff, ModeRemoved, listingBase(t)))
	require.Empty(t, e.Extract("", ModeAdded, listingBase(t)))
}

func TestNewRejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := New(`([`)
	require.Error(t, err)

	_, err = New("  ")
	require.Error(t, err)
}
