package metrics

import (
	"testing"
	"time"
)

// TestInitIdempotent checks Init can run repeatedly and observations do not
// panic before or after.
func TestInitIdempotent(t *testing.T) {
	ObservePage("example", "processed")

	Init()
	Init()

	ObservePage("example", "processed")
	ObservePage("example", "failed")
	ObserveShardRendered("example")
	ObserveNotification("example", "duplicate")
	ObserveKBUpload("example", "ok")
	ObserveSyncDuration("example", 2*time.Second)
}
