package shard

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// FallbackKey is the reserved shard for items no rule can place.
const FallbackKey = "other_products"

// Method selects how a site's URLs are classified into shards.
type Method string

// Supported classification methods.
const (
	MethodPathSegment Method = "path_segment"
	MethodKeyword     Method = "keyword"
)

// KeywordRule maps slug keywords to a shard key. Rules are evaluated in
// order; the first keyword hit wins.
type KeywordRule struct {
	Keywords []string `mapstructure:"keywords" json:"keywords"`
	Shard    string   `mapstructure:"shard" json:"shard"`
}

// Rules is the per-site classification configuration, read-only during a run.
type Rules struct {
	Method          Method        `mapstructure:"method"`
	ListingRoots    []string      `mapstructure:"listing_roots"`
	SegmentOffset   int           `mapstructure:"segment_offset"`
	ItemPattern     string        `mapstructure:"item_pattern"`
	ListingPattern  string        `mapstructure:"listing_pattern"`
	Keywords        []KeywordRule `mapstructure:"keywords"`
	IncludePatterns []string      `mapstructure:"include_patterns"`
	ExcludePatterns []string      `mapstructure:"exclude_patterns"`
	AllowedParams   []string      `mapstructure:"allowed_params"`
}

// Classifier applies compiled site rules. Construction fails on malformed
// patterns; classification itself never fails.
type Classifier struct {
	rules        Rules
	listingRoots map[string]struct{}
	item         *regexp.Regexp
	listing      *regexp.Regexp
	include      []*regexp.Regexp
	exclude      []*regexp.Regexp
}

// NewClassifier compiles the site rules.
func NewClassifier(rules Rules) (*Classifier, error) {
	c := &Classifier{
		rules:        rules,
		listingRoots: make(map[string]struct{}, len(rules.ListingRoots)),
	}
	for _, root := range rules.ListingRoots {
		root = strings.Trim(strings.ToLower(strings.TrimSpace(root)), "/")
		if root != "" {
			c.listingRoots[root] = struct{}{}
		}
	}
	var err error
	if rules.ItemPattern != "" {
		if c.item, err = regexp.Compile(rules.ItemPattern); err != nil {
			return nil, fmt.Errorf("compile item pattern: %w", err)
		}
	}
	if rules.ListingPattern != "" {
		if c.listing, err = regexp.Compile(rules.ListingPattern); err != nil {
			return nil, fmt.Errorf("compile listing pattern: %w", err)
		}
	}
	if c.include, err = compileAll(rules.IncludePatterns); err != nil {
		return nil, fmt.Errorf("compile include patterns: %w", err)
	}
	if c.exclude, err = compileAll(rules.ExcludePatterns); err != nil {
		return nil, fmt.Errorf("compile exclude patterns: %w", err)
	}
	return c, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Normalize canonicalizes a URL using the site's query-param allowlist.
func (c *Classifier) Normalize(rawURL string) (string, error) {
	return Normalize(rawURL, c.rules.AllowedParams)
}

// Classify maps a URL to a shard key. It is total: any URL resolves to some
// key, falling back to FallbackKey when no rule applies. A listing path
// segment takes precedence over keyword matching.
func (c *Classifier) Classify(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return FallbackKey
	}
	segments := pathSegments(u)

	if c.rules.Method != MethodKeyword {
		if key, ok := c.listingSegmentKey(segments); ok {
			return key
		}
	}
	if c.IsItem(rawURL) {
		if key, ok := c.keywordKey(itemSlug(segments)); ok {
			return key
		}
	}
	return FallbackKey
}

// listingSegmentKey returns the sanitized category segment when a recognized
// listing root is followed by one.
func (c *Classifier) listingSegmentKey(segments []string) (string, bool) {
	if len(c.listingRoots) == 0 {
		return "", false
	}
	offset := c.rules.SegmentOffset
	if offset <= 0 {
		offset = 1
	}
	for i, seg := range segments {
		if _, ok := c.listingRoots[strings.ToLower(seg)]; !ok {
			continue
		}
		if i+offset < len(segments) {
			return SanitizeKey(segments[i+offset]), true
		}
		return "", false
	}
	return "", false
}

// keywordKey tokenizes an item slug and matches against the ordered table.
func (c *Classifier) keywordKey(slug string) (string, bool) {
	if slug == "" || len(c.rules.Keywords) == 0 {
		return "", false
	}
	tokens := tokenize(slug)
	for _, rule := range c.rules.Keywords {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, ok := tokens[kw]; ok {
				return SanitizeKey(rule.Shard), true
			}
		}
	}
	return "", false
}

// IsItem reports whether the URL matches the site's item pattern.
func (c *Classifier) IsItem(rawURL string) bool {
	return c.item != nil && c.item.MatchString(rawURL)
}

// IsListing reports whether the URL matches the site's listing pattern.
func (c *Classifier) IsListing(rawURL string) bool {
	return c.listing != nil && c.listing.MatchString(rawURL)
}

// ItemPattern exposes the compiled item matcher for the diff extractor.
func (c *Classifier) ItemPattern() *regexp.Regexp {
	return c.item
}

// Allowed applies the include/exclude filters. Exclude wins over include;
// an empty include list admits everything.
func (c *Classifier) Allowed(rawURL string) bool {
	for _, re := range c.exclude {
		if re.MatchString(rawURL) {
			return false
		}
	}
	if len(c.include) == 0 {
		return true
	}
	for _, re := range c.include {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeKey lowercases a candidate shard key, collapses non-alphanumeric
// runs into single underscores, and guarantees a non-empty result.
func SanitizeKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = nonAlnumRun.ReplaceAllString(key, "_")
	key = strings.Trim(key, "_")
	if key == "" {
		return FallbackKey
	}
	return key
}

// itemSlug is the last path segment, the usual product slug position.
func itemSlug(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// tokenize splits a slug on non-alphanumeric boundaries.
func tokenize(slug string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range nonAlnumRun.Split(strings.ToLower(slug), -1) {
		if tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}
