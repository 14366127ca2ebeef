// Package catalog defines core types shared across subsystems.
package catalog

import (
	"errors"
	"time"
)

// ErrUnknownSite is returned when a request names a site that has no
// configuration.
var ErrUnknownSite = errors.New("unknown site")

// ChangeType describes what happened to a page according to a notification.
type ChangeType string

// Change types carried by notification payloads.
const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// PageDescriptor is one changed page inside a notification payload.
type PageDescriptor struct {
	URL        string     `json:"url"`
	ChangeType ChangeType `json:"change_type"`
	DetectedAt time.Time  `json:"detected_at"`
	// Content carries the page body when the notifier includes it.
	Content string `json:"content,omitempty"`
	// Diff carries a line-oriented diff when the changed page is a listing.
	Diff string `json:"diff,omitempty"`
}

// NotificationPayload is the input delivered by the change-notification channel.
type NotificationPayload struct {
	Site  string           `json:"site"`
	Pages []PageDescriptor `json:"pages"`
}

// PageSummary is the per-page bookkeeping kept with a fingerprint record.
type PageSummary struct {
	URL        string     `json:"url"`
	ChangeType ChangeType `json:"change_type"`
	DetectedAt time.Time  `json:"detected_at"`
}

// FingerprintRecord is persisted once per distinct processed payload.
type FingerprintRecord struct {
	Fingerprint string        `json:"fingerprint"`
	ProcessedAt time.Time     `json:"processed_at"`
	Summary     string        `json:"summary"`
	Pages       []PageSummary `json:"pages"`
}

// Page is the fetched content for a single URL.
type Page struct {
	URL   string
	Title string
	Body  string
}

// Summary reports the outcome of one orchestrator run.
type Summary struct {
	RunID         string        `json:"run_id"`
	Site          string        `json:"site"`
	Processed     int           `json:"processed"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	TouchedShards []string      `json:"touched_shards"`
	Duplicate     bool          `json:"duplicate,omitempty"`
	Duration      time.Duration `json:"duration"`
}
