package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultBudget is the maximum character count per rendered shard file.
const DefaultBudget = 300000

// Writer renders manifest members into one or more size-bounded text files.
// It is the only component that touches the shard-file namespace and always
// works from the manifest, never from existing files.
type Writer struct {
	dir    string
	site   string
	budget int
	logger *zap.Logger
}

// NewWriter builds a Writer rooted at the store directory.
func NewWriter(dir, site string, budget int, logger *zap.Logger) *Writer {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, site: site, budget: budget, logger: logger}
}

// FileName returns the shard file name for a key, with an optional part
// number. Part 0 means the unsplit single file.
func (w *Writer) FileName(shardKey string, part int) string {
	if part <= 0 {
		return fmt.Sprintf("llms-%s-%s.txt", w.site, shardKey)
	}
	return fmt.Sprintf("llms-%s-%s_part%d.txt", w.site, shardKey, part)
}

// Render rebuilds the files for shardKey from the store's manifest and
// returns the written file names. An empty shard deletes any existing files
// and writes nothing. Manifest members missing from the index are pruned
// with a warning.
func (w *Writer) Render(shardKey string, st *Store) ([]string, error) {
	blocks := w.buildBlocks(shardKey, st)
	chunks := splitBlocks(blocks, w.budget)

	if len(chunks) == 0 {
		if err := w.deleteShard(shardKey); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var written []string
	for i, chunk := range chunks {
		part := i + 1
		if len(chunks) == 1 {
			part = 0
		}
		name := w.FileName(shardKey, part)
		if err := os.WriteFile(filepath.Join(w.dir, name), []byte(chunk), 0o600); err != nil {
			return nil, fmt.Errorf("write shard file %s: %w", name, err)
		}
		written = append(written, name)
	}

	if err := w.deleteStale(shardKey, len(chunks)); err != nil {
		return nil, err
	}

	w.logger.Debug("shard rendered",
		zap.String("shard", shardKey),
		zap.Int("members", len(blocks)),
		zap.Int("parts", len(chunks)),
	)
	return written, nil
}

// buildBlocks assembles one self-contained block per live manifest member,
// pruning members whose record is gone.
func (w *Writer) buildBlocks(shardKey string, st *Store) []string {
	members := st.Members(shardKey)
	blocks := make([]string, 0, len(members))
	for _, u := range members {
		rec, ok := st.entries[u]
		if !ok {
			w.logger.Warn("manifest member missing from index, pruning",
				zap.String("shard", shardKey),
				zap.String("url", u),
			)
			st.removeMember(shardKey, u)
			continue
		}
		blocks = append(blocks, renderBlock(u, rec))
	}
	return blocks
}

// renderBlock formats a single item: URL-tagged delimiter, title line, body,
// blank-line separator.
func renderBlock(u string, rec Record) string {
	var b strings.Builder
	b.WriteString("=== PAGE: ")
	b.WriteString(u)
	b.WriteString(" ===\n# ")
	b.WriteString(rec.Title)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimRight(rec.Body, "\n"))
	b.WriteString("\n\n")
	return b.String()
}

// splitBlocks accumulates blocks into chunks without ever splitting a block
// across two chunks. A chunk is closed before a block that would push it
// past the budget, unless the chunk is still empty.
func splitBlocks(blocks []string, budget int) []string {
	var chunks []string
	var cur strings.Builder
	for _, block := range blocks {
		if cur.Len() > 0 && cur.Len()+len(block) > budget {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(block)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// deleteShard removes the unsplit file and every part file for a key.
func (w *Writer) deleteShard(shardKey string) error {
	if err := w.removeIfExists(w.FileName(shardKey, 0)); err != nil {
		return err
	}
	return w.deleteParts(shardKey, 1)
}

// deleteStale removes leftovers from a previous render: the unsplit file
// when the shard is now split, and trailing parts beyond the current count.
func (w *Writer) deleteStale(shardKey string, parts int) error {
	if parts > 1 {
		if err := w.removeIfExists(w.FileName(shardKey, 0)); err != nil {
			return err
		}
	}
	first := parts + 1
	if parts == 1 {
		first = 1
	}
	return w.deleteParts(shardKey, first)
}

// deleteParts removes part files from number first upward until a gap.
func (w *Writer) deleteParts(shardKey string, first int) error {
	for part := first; ; part++ {
		name := w.FileName(shardKey, part)
		path := filepath.Join(w.dir, name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("stat shard file %s: %w", name, err)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale shard file %s: %w", name, err)
		}
		w.logger.Debug("stale shard file removed", zap.String("file", name))
	}
}

func (w *Writer) removeIfExists(name string) error {
	path := filepath.Join(w.dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove shard file %s: %w", name, err)
	}
	return nil
}
