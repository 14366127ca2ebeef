package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func upsertItem(t *testing.T, st *Store, u, key, body string) {
	t.Helper()
	_, err := st.Upsert(u, Record{Title: "T " + u, Body: body, ShardKey: key})
	require.NoError(t, err)
}

func readShardFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestRenderSingleBlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := Open(dir, testNormalize, nil)
	require.NoError(t, err)
	w := NewWriter(dir, "example", 0, nil)

	u := "https://shop.example.com/products/drill"
	upsertItem(t, st, u, "drill_bits", "A drill.\n")

	written, err := w.Render("drill_bits", st)
	require.NoError(t, err)
	require.Equal(t, []string{"llms-example-drill_bits.txt"}, written)

	content := readShardFile(t, dir, written[0])
	require.Equal(t, "=== PAGE: "+u+" ===\n# T "+u+"\n\nA drill.\n\n", content)
	require.Equal(t, 1, strings.Count(content, "=== PAGE:"))
}

func TestRenderEmptyShardDeletesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := Open(dir, testNormalize, nil)
	require.NoError(t, err)
	w := NewWriter(dir, "example", 0, nil)

	urls := []string{
		"https://shop.example.com/products/clip-a",
		"https://shop.example.com/products/clip-b",
		"https://shop.example.com/products/clip-c",
	}
	for _, u := range urls {
		upsertItem(t, st, u, "clips", "body")
	}
	written, err := w.Render("clips", st)
	require.NoError(t, err)
	require.Len(t, written, 1)
	require.Equal(t, 3, strings.Count(readShardFile(t, dir, written[0]), "=== PAGE:"))

	// Removing one member rewrites the file with two blocks.
	_, removed, err := st.Remove(urls[0])
	require.NoError(t, err)
	require.True(t, removed)
	written, err = w.Render("clips", st)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(readShardFile(t, dir, written[0]), "=== PAGE:"))

	// Removing all members deletes the file and the manifest key.
	for _, u := range urls[1:] {
		_, _, err = st.Remove(u)
		require.NoError(t, err)
	}
	written, err = w.Render("clips", st)
	require.NoError(t, err)
	require.Empty(t, written)
	_, err = os.Stat(filepath.Join(dir, w.FileName("clips", 0)))
	require.True(t, os.IsNotExist(err))
	require.NotContains(t, st.Shards(), "clips")
}

func TestRenderSplitsAtBudget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := Open(dir, testNormalize, nil)
	require.NoError(t, err)

	// Budget small enough that three fat blocks need two files.
	w := NewWriter(dir, "example", 450, nil)
	body := strings.Repeat("x", 120)
	urls := []string{
		"https://shop.example.com/products/a",
		"https://shop.example.com/products/b",
		"https://shop.example.com/products/c",
	}
	for _, u := range urls {
		upsertItem(t, st, u, "bulk", body)
	}

	written, err := w.Render("bulk", st)
	require.NoError(t, err)
	require.Equal(t, []string{
		"llms-example-bulk_part1.txt",
		"llms-example-bulk_part2.txt",
	}, written)

	for _, name := range written {
		require.LessOrEqual(t, len(readShardFile(t, dir, name)), 450)
	}

	// No unsplit file lingers next to the parts.
	_, err = os.Stat(filepath.Join(dir, w.FileName("bulk", 0)))
	require.True(t, os.IsNotExist(err))
}

// TestRenderSplitPreservation checks that concatenating parts in order
// reproduces the unsplit render byte for byte, with no block straddling a
// part boundary.
func TestRenderSplitPreservation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := Open(dir, testNormalize, nil)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		u := "https://shop.example.com/products/item-" + strings.Repeat("z", i+1)
		upsertItem(t, st, u, "bulk", strings.Repeat("b", 50+i*13))
	}

	unsplit := NewWriter(dir, "whole", 1<<30, nil)
	wholeFiles, err := unsplit.Render("bulk", st)
	require.NoError(t, err)
	require.Len(t, wholeFiles, 1)
	whole := readShardFile(t, dir, wholeFiles[0])

	split := NewWriter(dir, "parts", 300, nil)
	partFiles, err := split.Render("bulk", st)
	require.NoError(t, err)
	require.Greater(t, len(partFiles), 1)

	var joined strings.Builder
	for _, name := range partFiles {
		content := readShardFile(t, dir, name)
		// Every part starts on a block boundary.
		require.True(t, strings.HasPrefix(content, "=== PAGE: "))
		joined.WriteString(content)
	}
	require.Equal(t, whole, joined.String())
}

func TestRenderShrinkDeletesStaleParts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := Open(dir, testNormalize, nil)
	require.NoError(t, err)
	w := NewWriter(dir, "example", 300, nil)

	urls := []string{
		"https://shop.example.com/products/a",
		"https://shop.example.com/products/b",
		"https://shop.example.com/products/c",
		"https://shop.example.com/products/d",
	}
	for _, u := range urls {
		upsertItem(t, st, u, "bulk", strings.Repeat("x", 100))
	}
	written, err := w.Render("bulk", st)
	require.NoError(t, err)
	require.Len(t, written, 4)

	// Shrink to a single member: parts collapse to the unsplit file.
	for _, u := range urls[1:] {
		_, _, err = st.Remove(u)
		require.NoError(t, err)
	}
	written, err = w.Render("bulk", st)
	require.NoError(t, err)
	require.Equal(t, []string{w.FileName("bulk", 0)}, written)

	for part := 1; part <= 4; part++ {
		_, err = os.Stat(filepath.Join(dir, w.FileName("bulk", part)))
		require.True(t, os.IsNotExist(err), "part %d should be gone", part)
	}
}

func TestRenderPrunesDanglingMember(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := Open(dir, testNormalize, nil)
	require.NoError(t, err)
	w := NewWriter(dir, "example", 0, nil)

	upsertItem(t, st, "https://shop.example.com/products/a", "clips", "body")
	upsertItem(t, st, "https://shop.example.com/products/b", "clips", "body")

	// Simulate a consistency warning: manifest references a URL the index
	// no longer holds.
	delete(st.entries, "https://shop.example.com/products/a")

	written, err := w.Render("clips", st)
	require.NoError(t, err)
	require.Len(t, written, 1)
	require.Equal(t, 1, strings.Count(readShardFile(t, dir, written[0]), "=== PAGE:"))
	require.Equal(t, []string{"https://shop.example.com/products/b"}, st.Members("clips"))
}
