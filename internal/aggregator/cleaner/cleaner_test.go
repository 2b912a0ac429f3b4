package cleaner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestSweepRetainsNewestFileEvenOverBudget(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, dir, "a.ndjson", 100, now.Add(-3*time.Hour))
	writeFile(t, dir, "b.ndjson", 100, now.Add(-2*time.Hour))
	writeFile(t, dir, "c.ndjson", 100, now.Add(-1*time.Hour))

	c := &Cleaner{Dir: dir, MaxTotalBytes: 50}
	require.NoError(t, c.Sweep())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c.ndjson", entries[0].Name())
}

func TestSweepNoopWithinBudget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ndjson", 10, time.Now())

	c := &Cleaner{Dir: dir, MaxTotalBytes: 1000}
	require.NoError(t, c.Sweep())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
