package sink

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rask-log-stack/pkg/logentry"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

func TestJSONFileSinkWritesOneFilePerFlush(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONFileSink(dir)
	require.NoError(t, err)

	rows := []logentry.LogRow{
		{ServiceName: "a", Message: "one", Timestamp: time.Now()},
		{ServiceName: "a", Message: "two", Timestamp: time.Now()},
	}
	require.NoError(t, s.WriteLogs(context.Background(), rows))
	require.NoError(t, s.WriteLogs(context.Background(), rows))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "each WriteLogs call should produce its own file")

	for _, e := range entries {
		assert.Equal(t, 2, countLines(t, filepath.Join(dir, e.Name())))
	}
}

func TestJSONFileSinkEmptyBatchWritesNoFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONFileSink(dir)
	require.NoError(t, err)

	require.NoError(t, s.WriteLogs(context.Background(), nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJSONFileSinkSeparatesTables(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONFileSink(dir)
	require.NoError(t, err)

	require.NoError(t, s.WriteLogs(context.Background(), []logentry.LogRow{{Message: "x"}}))
	require.NoError(t, s.WriteOTelLogs(context.Background(), []logentry.OTelLogRow{{}}))
	require.NoError(t, s.WriteOTelTraces(context.Background(), []logentry.OTelTraceRow{{}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
