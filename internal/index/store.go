// Package index maintains the per-site content index and shard manifest,
// and renders manifest members into size-bounded shard files.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ErrCorruptState signals that prior persisted state could not be read.
// Callers must abort the run rather than operate on an unknown baseline.
var ErrCorruptState = errors.New("corrupt persisted state")

const (
	indexFileName    = "index.json"
	manifestFileName = "manifest.json"
)

// Record is the content stored for one normalized URL.
type Record struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ShardKey  string    `json:"shard_key"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeFunc canonicalizes URLs before they touch the index.
type NormalizeFunc func(string) (string, error)

// Store owns the mapping from normalized URL to Record and from shard key
// to its ordered member URLs. It assumes a single writer per site; callers
// serialize access.
type Store struct {
	dir       string
	normalize NormalizeFunc
	entries   map[string]Record
	manifest  map[string][]string
	logger    *zap.Logger
}

// Open loads prior state from dir, or starts empty when none exists.
// Unreadable files return ErrCorruptState.
func Open(dir string, normalize NormalizeFunc, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalize == nil {
		normalize = func(u string) (string, error) { return u, nil }
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create index dir %s: %w", dir, err)
	}

	s := &Store{
		dir:       dir,
		normalize: normalize,
		entries:   make(map[string]Record),
		manifest:  make(map[string][]string),
		logger:    logger,
	}
	if err := loadJSON(filepath.Join(dir, indexFileName), &s.entries); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, manifestFileName), &s.manifest); err != nil {
		return nil, err
	}
	return s, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", ErrCorruptState, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrCorruptState, path, err)
	}
	return nil
}

// Upsert normalizes url and inserts or replaces its record. When the shard
// key changes for a known URL, the URL moves out of the old shard's member
// list in the same operation. Returns the touched shard keys.
func (s *Store) Upsert(rawURL string, rec Record) ([]string, error) {
	u, err := s.normalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("normalize %q: %w", rawURL, err)
	}
	if rec.ShardKey == "" {
		return nil, fmt.Errorf("record for %q has no shard key", u)
	}

	touched := []string{rec.ShardKey}
	if prior, ok := s.entries[u]; ok && prior.ShardKey != rec.ShardKey {
		s.removeMember(prior.ShardKey, u)
		touched = append(touched, prior.ShardKey)
	}

	s.entries[u] = rec
	s.addMember(rec.ShardKey, u)
	return touched, nil
}

// Remove normalizes url and deletes it from the index and its shard's
// member list. Unknown URLs are a no-op. Returns the touched shard key.
func (s *Store) Remove(rawURL string) (string, bool, error) {
	u, err := s.normalize(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("normalize %q: %w", rawURL, err)
	}
	rec, ok := s.entries[u]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, u)
	s.removeMember(rec.ShardKey, u)
	return rec.ShardKey, true, nil
}

// Get returns the record for a URL, if present.
func (s *Store) Get(rawURL string) (Record, bool) {
	u, err := s.normalize(rawURL)
	if err != nil {
		return Record{}, false
	}
	rec, ok := s.entries[u]
	return rec, ok
}

// Len reports how many URLs the index holds.
func (s *Store) Len() int {
	return len(s.entries)
}

// Members returns the ordered member URLs of a shard.
func (s *Store) Members(shardKey string) []string {
	members := s.manifest[shardKey]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// Shards returns the known shard keys, sorted for stable output.
func (s *Store) Shards() []string {
	keys := make([]string, 0, len(s.manifest))
	for k := range s.manifest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) addMember(shardKey, u string) {
	for _, existing := range s.manifest[shardKey] {
		if existing == u {
			return
		}
	}
	s.manifest[shardKey] = append(s.manifest[shardKey], u)
}

func (s *Store) removeMember(shardKey, u string) {
	members := s.manifest[shardKey]
	for i, existing := range members {
		if existing == u {
			s.manifest[shardKey] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(s.manifest[shardKey]) == 0 {
		delete(s.manifest, shardKey)
	}
}

// Persist serializes the index and manifest using write-to-temp plus atomic
// rename, so a crash mid-write never leaves a half-written file. Call once
// per batch, not per item.
func (s *Store) Persist() error {
	if err := writeAtomic(filepath.Join(s.dir, indexFileName), s.entries); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, manifestFileName), s.manifest); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}
	s.logger.Debug("state persisted",
		zap.Int("urls", len(s.entries)),
		zap.Int("shards", len(s.manifest)),
	)
	return nil
}

func writeAtomic(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
