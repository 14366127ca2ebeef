package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
)

const storeFileName = "processed-notifications.json"

// Store persists fingerprint records as a JSON file in the site's state
// directory, written with the same temp-then-rename pattern as the index.
type Store struct {
	path    string
	records map[string]catalog.FingerprintRecord
}

// OpenStore loads prior records from dir, starting empty when none exist.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create fingerprint dir %s: %w", dir, err)
	}
	s := &Store{
		path:    filepath.Join(dir, storeFileName),
		records: make(map[string]catalog.FingerprintRecord),
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read fingerprint store: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("decode fingerprint store: %w", err)
	}
	return s, nil
}

// Get returns the record for a digest, if present.
func (s *Store) Get(digest string) (catalog.FingerprintRecord, bool) {
	rec, ok := s.records[digest]
	return rec, ok
}

// Put stores a record in memory; call Persist to make it durable.
func (s *Store) Put(rec catalog.FingerprintRecord) {
	s.records[rec.Fingerprint] = rec
}

// Len reports how many records the store holds.
func (s *Store) Len() int {
	return len(s.records)
}

// EvictOlderThan drops records processed before cutoff and returns how many
// were removed.
func (s *Store) EvictOlderThan(cutoff time.Time) int {
	evicted := 0
	for digest, rec := range s.records {
		if rec.ProcessedAt.Before(cutoff) {
			delete(s.records, digest)
			evicted++
		}
	}
	return evicted
}

// Persist writes the records to disk atomically.
func (s *Store) Persist() error {
	payload, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fingerprint store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), storeFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp fingerprint store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp fingerprint store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp fingerprint store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace fingerprint store: %w", err)
	}
	return nil
}
