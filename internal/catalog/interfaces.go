package catalog

import (
	"context"
	"time"
)

// Fetcher turns a URL into title/body text via the content-fetch service.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Uploader pushes a named file's full content to the knowledge-base target
// and returns an opaque document identifier.
type Uploader interface {
	UploadFile(ctx context.Context, name string, content []byte) (string, error)
	AssignDocuments(ctx context.Context, agentID string, documentIDs []string) error
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
