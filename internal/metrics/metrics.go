// Package metrics exposes Prometheus collectors for the sync service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal         *prometheus.CounterVec
	shardsRendered     *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	kbUploadsTotal     *prometheus.CounterVec
	syncDuration       *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmstxt_pages_total",
				Help: "Pages handled per sync batch, labeled by site and result.",
			},
			[]string{"site", "result"},
		)
		shardsRendered = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmstxt_shards_rendered_total",
				Help: "Shard files re-rendered, labeled by site.",
			},
			[]string{"site"},
		)
		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmstxt_notifications_total",
				Help: "Change notifications received, labeled by site and status.",
			},
			[]string{"site", "status"},
		)
		kbUploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmstxt_kb_uploads_total",
				Help: "Knowledge-base uploads, labeled by site and result.",
			},
			[]string{"site", "result"},
		)
		syncDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmstxt_sync_duration_seconds",
				Help:    "Duration of sync batches, labeled by site.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"site"},
		)
	})
}

// ObservePage increments the page counter for a result
// (processed, skipped, failed).
func ObservePage(site, result string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(site, result).Inc()
	}
}

// ObserveShardRendered counts one shard re-render.
func ObserveShardRendered(site string) {
	if shardsRendered != nil {
		shardsRendered.WithLabelValues(site).Inc()
	}
}

// ObserveNotification counts a received notification
// (processed or duplicate).
func ObserveNotification(site, status string) {
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(site, status).Inc()
	}
}

// ObserveKBUpload counts a knowledge-base upload attempt.
func ObserveKBUpload(site, result string) {
	if kbUploadsTotal != nil {
		kbUploadsTotal.WithLabelValues(site, result).Inc()
	}
}

// ObserveSyncDuration records how long a batch took.
func ObserveSyncDuration(site string, d time.Duration) {
	if syncDuration != nil {
		syncDuration.WithLabelValues(site).Observe(d.Seconds())
	}
}
