// Package shard maps raw catalog URLs to canonical forms and shard keys.
package shard

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Normalize standardizes a URL so the index never stores duplicates.
// It lowercases the scheme and host, removes default ports, drops the
// fragment, strips query parameters not in allowParams, and removes a
// trailing slash. The result is idempotent: normalizing a normalized URL
// returns it unchanged.
func Normalize(rawURL string, allowParams []string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Remove default ports
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	u.RawQuery = filterQuery(u.Query(), allowParams)

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// filterQuery keeps only allow-listed parameters, sorted for stability.
func filterQuery(q url.Values, allowParams []string) string {
	if len(q) == 0 {
		return ""
	}
	allowed := make(map[string]struct{}, len(allowParams))
	for _, p := range allowParams {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			allowed[p] = struct{}{}
		}
	}
	kept := url.Values{}
	for key, values := range q {
		if _, ok := allowed[strings.ToLower(key)]; !ok {
			continue
		}
		sort.Strings(values)
		kept[key] = values
	}
	return kept.Encode()
}

// pathSegments splits a URL path into its non-empty segments.
func pathSegments(u *url.URL) []string {
	raw := strings.Split(u.Path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
