package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rask-log-stack/pkg/logentry"
)

func TestFlushesOnMaxEntries(t *testing.T) {
	f := New(Config{MaxEntries: 3, MaxWaitTime: time.Hour})

	flush := f.Add(&logentry.EnrichedEntry{Message: "1"}, 1)
	assert.False(t, flush)
	flush = f.Add(&logentry.EnrichedEntry{Message: "2"}, 1)
	assert.False(t, flush)
	flush = f.Add(&logentry.EnrichedEntry{Message: "3"}, 1)
	assert.True(t, flush)

	b := f.Flush()
	require.NotNil(t, b)
	assert.Equal(t, 3, b.Count())
	assert.NotEmpty(t, b.ID)
	assert.NotZero(t, b.Fingerprint)
}

func TestFlushesOnMaxBytes(t *testing.T) {
	f := New(Config{MaxEntries: 1000, MaxBytes: 10, MaxWaitTime: time.Hour})

	flush := f.Add(&logentry.EnrichedEntry{Message: "x"}, 6)
	assert.False(t, flush)
	flush = f.Add(&logentry.EnrichedEntry{Message: "y"}, 6)
	assert.True(t, flush)
}

func TestFlushesOnMaxWait(t *testing.T) {
	f := New(Config{MaxEntries: 1000, MaxWaitTime: 10 * time.Millisecond})
	f.Add(&logentry.EnrichedEntry{Message: "x"}, 1)

	time.Sleep(15 * time.Millisecond)
	assert.True(t, f.ShouldFlushOnWait())
}

func TestFlushOnEmptyReturnsNil(t *testing.T) {
	f := New(Config{MaxEntries: 10})
	assert.Nil(t, f.Flush())
}

func TestFlushResetsForNextBatch(t *testing.T) {
	f := New(Config{MaxEntries: 1})
	f.Add(&logentry.EnrichedEntry{Message: "a"}, 1)
	first := f.Flush()

	f.Add(&logentry.EnrichedEntry{Message: "b"}, 1)
	second := f.Flush()

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Count())
}

func TestFingerprintStableForSameContent(t *testing.T) {
	entries := []*logentry.EnrichedEntry{
		{ContainerID: "c1", Timestamp: "t1", Message: "m1"},
	}
	b1 := &logentry.Batch{Entries: entries}
	b2 := &logentry.Batch{Entries: entries}

	assert.Equal(t, Fingerprint(b1), Fingerprint(b2))
}
