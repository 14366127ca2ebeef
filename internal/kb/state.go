package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const stateFileName = "kb-state.json"

// State maps shard file names to the document IDs the knowledge base
// assigned them, so a re-upload replaces rather than duplicates. Persisted
// per site next to the index and manifest.
type State struct {
	path string
	docs map[string]string
}

// OpenState loads prior upload bookkeeping from dir.
func OpenState(dir string) (*State, error) {
	s := &State{
		path: filepath.Join(dir, stateFileName),
		docs: make(map[string]string),
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read kb state: %w", err)
	}
	if err := json.Unmarshal(data, &s.docs); err != nil {
		return nil, fmt.Errorf("decode kb state: %w", err)
	}
	return s, nil
}

// DocumentID returns the known document ID for a shard file.
func (s *State) DocumentID(fileName string) (string, bool) {
	id, ok := s.docs[fileName]
	return id, ok
}

// SetDocumentID records the document ID for a shard file.
func (s *State) SetDocumentID(fileName, docID string) {
	s.docs[fileName] = docID
}

// Forget drops the record for a shard file that no longer exists.
func (s *State) Forget(fileName string) {
	delete(s.docs, fileName)
}

// Files returns every shard file name with upload bookkeeping.
func (s *State) Files() []string {
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	return names
}

// DocumentIDs returns every known document ID.
func (s *State) DocumentIDs() []string {
	ids := make([]string, 0, len(s.docs))
	for _, id := range s.docs {
		ids = append(ids, id)
	}
	return ids
}

// Persist writes the state atomically.
func (s *State) Persist() error {
	payload, err := json.MarshalIndent(s.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal kb state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), stateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp kb state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp kb state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp kb state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace kb state: %w", err)
	}
	return nil
}
