package spill

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rask-log-stack/pkg/logentry"
)

func TestWriteAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	batch := &logentry.Batch{
		ID:      "batch-1",
		Entries: []*logentry.EnrichedEntry{{Message: "hello"}},
	}
	path, err := store.Write(batch)
	require.NoError(t, err)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", got.ID)
	assert.Equal(t, "hello", got.Entries[0].Message)
}

func TestCleanerRetainsNewestFileEvenOverBudget(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, size int, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
		require.NoError(t, os.Chtimes(path, time.Now().Add(-age), time.Now().Add(-age)))
	}

	write("00-oldest.json", 100, 3*time.Hour)
	write("01-middle.json", 100, 2*time.Hour)
	write("02-newest.json", 500, 1*time.Hour)

	c := &Cleaner{Dir: dir, MaxTotalBytes: 50}
	require.NoError(t, c.Sweep())

	remaining, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "02-newest.json", remaining[0].Name())
}

func TestCleanerNoopWithinBudget(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), make([]byte, 10), 0o644))

	c := &Cleaner{Dir: dir, MaxTotalBytes: 1000}
	require.NoError(t, c.Sweep())

	remaining, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
