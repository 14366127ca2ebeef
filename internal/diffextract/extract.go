// Package diffextract recovers the item URLs that a listing-page diff
// actually added or removed, so unaffected items are never reprocessed.
package diffextract

import (
	"bufio"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Mode selects which side of the diff to read.
type Mode string

// Extraction modes.
const (
	ModeAdded   Mode = "added"
	ModeRemoved Mode = "removed"
)

// assetExtensions are file suffixes that share the item URL shape but are
// never catalog content.
var assetExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif", ".ico",
	".css", ".js", ".mjs", ".woff", ".woff2", ".ttf", ".map",
}

// assetMarkers are path fragments that identify CDN/asset URLs.
var assetMarkers = []string{"/cdn/", "/assets/", "/static/", "//cdn."}

// absoluteURL matches any absolute http(s) URL token in free text.
var absoluteURL = regexp.MustCompile(`https?://[^\s"'<>\\)\]]+`)

// Extractor scans diff text for URLs matching a site's item pattern.
type Extractor struct {
	item         *regexp.Regexp
	relativeItem *regexp.Regexp
}

// New builds an Extractor for an item path pattern such as
// `/products/[a-z0-9-]+`. The pattern is matched both in absolute URLs and
// in root-relative form.
func New(itemPattern string) (*Extractor, error) {
	if strings.TrimSpace(itemPattern) == "" {
		return nil, fmt.Errorf("item pattern is required")
	}
	item, err := regexp.Compile(itemPattern)
	if err != nil {
		return nil, fmt.Errorf("compile item pattern: %w", err)
	}
	// Root-relative occurrences are quoted or space-delimited in markup.
	relative, err := regexp.Compile(`(?:^|[\s"'=(\[])(` + itemPattern + `[^\s"'<>\\)\]]*)`)
	if err != nil {
		return nil, fmt.Errorf("compile relative item pattern: %w", err)
	}
	return &Extractor{item: item, relativeItem: relative}, nil
}

// Extract returns the item URLs present on the requested side of diffText,
// de-duplicated in first-seen order. Root-relative matches are resolved
// against base, the listing page's own URL. An empty result means the
// caller must fall back to treating the whole listing page as one unit.
func (e *Extractor) Extract(diffText string, mode Mode, base *url.URL) []string {
	changed := selectLines(diffText, mode)
	if changed == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		raw = trimTrailingPunct(raw)
		if raw == "" || isAsset(raw) || !e.item.MatchString(raw) {
			return
		}
		if _, dup := seen[raw]; dup {
			return
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}

	for _, match := range absoluteURL.FindAllString(changed, -1) {
		add(match)
	}
	for _, groups := range e.relativeItem.FindAllStringSubmatch(changed, -1) {
		rel := groups[1]
		if base == nil {
			continue
		}
		ref, err := url.Parse(rel)
		if err != nil {
			continue
		}
		add(base.ResolveReference(ref).String())
	}
	return out
}

// selectLines keeps only lines whose marker matches the mode, strips the
// marker, and joins the rest. Diff file headers (+++/---) are excluded even
// though they share the prefix character.
func selectLines(diffText string, mode Mode) string {
	marker, header := "+", "+++"
	if mode == ModeRemoved {
		marker, header = "-", "---"
	}

	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(diffText))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, marker) || strings.HasPrefix(line, header) {
			continue
		}
		b.WriteString(strings.TrimPrefix(line, marker))
		b.WriteString("\n")
	}
	return b.String()
}

// trimTrailingPunct drops punctuation that regex matching drags in from
// surrounding markup.
func trimTrailingPunct(raw string) string {
	return strings.TrimRight(raw, `.,;:!?"'`)
}

func isAsset(raw string) bool {
	lower := strings.ToLower(raw)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	for _, marker := range assetMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
