package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rask-log-stack/pkg/logentry"
)

type stubSink struct {
	failLogs bool
	logs     [][]logentry.LogRow
}

func (s *stubSink) WriteLogs(_ context.Context, rows []logentry.LogRow) error {
	if s.failLogs {
		return errors.New("primary unavailable")
	}
	s.logs = append(s.logs, rows)
	return nil
}
func (s *stubSink) WriteOTelLogs(context.Context, []logentry.OTelLogRow) error     { return nil }
func (s *stubSink) WriteOTelTraces(context.Context, []logentry.OTelTraceRow) error { return nil }

func TestFallbackSinkWritesThroughOnPrimarySuccess(t *testing.T) {
	primary := &stubSink{}
	fallback := &stubSink{}
	fallbackCalls := 0
	fs := &FallbackSink{Primary: primary, Fallback: fallback, OnFallback: func(string) { fallbackCalls++ }}

	rows := []logentry.LogRow{{Message: "ok"}}
	require.NoError(t, fs.WriteLogs(context.Background(), rows))

	assert.Len(t, primary.logs, 1)
	assert.Empty(t, fallback.logs)
	assert.Equal(t, 0, fallbackCalls)
}

func TestFallbackSinkFallsBackOnPrimaryFailure(t *testing.T) {
	primary := &stubSink{failLogs: true}
	fallback := &stubSink{}
	var calledTable string
	fs := &FallbackSink{Primary: primary, Fallback: fallback, OnFallback: func(table string) { calledTable = table }}

	rows := []logentry.LogRow{{Message: "ok"}}
	require.NoError(t, fs.WriteLogs(context.Background(), rows))

	assert.Empty(t, primary.logs)
	assert.Len(t, fallback.logs, 1)
	assert.Equal(t, "logs", calledTable)
}
