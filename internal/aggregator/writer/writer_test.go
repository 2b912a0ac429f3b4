package writer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rask-log-stack/pkg/logentry"
)

type captureSink struct {
	mu         sync.Mutex
	logRows    [][]logentry.LogRow
	otelLogs   [][]logentry.OTelLogRow
	otelTraces [][]logentry.OTelTraceRow
}

func (s *captureSink) WriteLogs(_ context.Context, rows []logentry.LogRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logRows = append(s.logRows, rows)
	return nil
}

func (s *captureSink) WriteOTelLogs(_ context.Context, rows []logentry.OTelLogRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otelLogs = append(s.otelLogs, rows)
	return nil
}

func (s *captureSink) WriteOTelTraces(_ context.Context, rows []logentry.OTelTraceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otelTraces = append(s.otelTraces, rows)
	return nil
}

type failingLogsSink struct {
	captureSink
	mu   sync.Mutex
	fail bool
}

func (s *failingLogsSink) WriteLogs(ctx context.Context, rows []logentry.LogRow) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return assert.AnError
	}
	return s.captureSink.WriteLogs(ctx, rows)
}

func (s *captureSink) totalLogRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, batch := range s.logRows {
		n += len(batch)
	}
	return n
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestWriterFlushesOnRowThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &captureSink{}
	w := New(Config{
		ChannelCapacity: 16,
		Logs:            SessionLimits{MaxRows: 3, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelLogs:        SessionLimits{MaxRows: 1000, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelTraces:      SessionLimits{MaxRows: 1000, FlushInterval: time.Hour, SendTimeout: time.Second},
	}, sink, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.True(t, w.SubmitLogs(context.Background(), []logentry.LogRow{{Message: "a"}}))
	require.True(t, w.SubmitLogs(context.Background(), []logentry.LogRow{{Message: "b"}}))
	require.True(t, w.SubmitLogs(context.Background(), []logentry.LogRow{{Message: "c"}}))

	assert.Eventually(t, func() bool { return sink.totalLogRows() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestWriterFlushesRemainingRowsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &captureSink{}
	w := New(Config{
		ChannelCapacity: 16,
		Logs:            SessionLimits{MaxRows: 1000, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelLogs:        SessionLimits{MaxRows: 1000, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelTraces:      SessionLimits{MaxRows: 1000, FlushInterval: time.Hour, SendTimeout: time.Second},
	}, sink, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.True(t, w.SubmitLogs(context.Background(), []logentry.LogRow{{Message: "only-one"}}))
	// Give the session goroutine a chance to pull the row off the channel
	// before shutdown so it lands in the accumulator, not mid-flight.
	time.Sleep(20 * time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, 1, sink.totalLogRows())
}

func TestWriterReportsFatalFailedAfterRepeatedFlushErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &failingLogsSink{fail: true}
	w := New(Config{
		ChannelCapacity: 16,
		Logs:            SessionLimits{MaxRows: 1, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelLogs:        SessionLimits{MaxRows: 1000, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelTraces:      SessionLimits{MaxRows: 1000, FlushInterval: time.Hour, SendTimeout: time.Second},
	}, sink, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	for i := 0; i < maxConsecutiveFlushFailures; i++ {
		require.True(t, w.SubmitLogs(context.Background(), []logentry.LogRow{{Message: "x"}}))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return w.State("logs") == StateFatalFailed }, time.Second, 5*time.Millisecond)
	// Other tables stay unaffected by the logs table's sustained failure.
	assert.Equal(t, StateIdle, w.State("otel_logs"))

	cancel()
	<-done
}

func TestFlushOutcomeResetsOnSuccess(t *testing.T) {
	var failures int
	assert.Equal(t, StateIdle, flushOutcome(&failures, assert.AnError))
	assert.Equal(t, StateIdle, flushOutcome(&failures, assert.AnError))
	assert.Equal(t, StateFatalFailed, flushOutcome(&failures, assert.AnError))
	assert.Equal(t, StateIdle, flushOutcome(&failures, nil))
	assert.Equal(t, 0, failures)
}

func TestWriterTablesAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &captureSink{}
	w := New(Config{
		ChannelCapacity: 16,
		Logs:            SessionLimits{MaxRows: 1, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelLogs:        SessionLimits{MaxRows: 1, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelTraces:      SessionLimits{MaxRows: 1, FlushInterval: time.Hour, SendTimeout: time.Second},
	}, sink, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.True(t, w.SubmitOTelTraces(context.Background(), []logentry.OTelTraceRow{{TraceID: "t1"}}))
	assert.Eventually(t, func() bool { return w.State("otel_traces") == StateIdle }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateIdle, w.State("logs"))

	cancel()
	<-done
}
