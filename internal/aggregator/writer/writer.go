// Package writer implements the aggregator's background batch writer:
// three bounded channels (logs, otel_logs, otel_traces), each owned by an
// independent session that accumulates rows until a byte/row/time
// threshold fires a flush to the columnar sink. Grounded on
// internal/dispatcher/batch_processor.go's select-over-(channel, ticker,
// ctx) loop idiom and on the per-table independence spec.md §4.10
// describes for rask-log-aggregator's clickhouse batch_writer.rs.
package writer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"rask-log-stack/internal/aggregator/sink"
	"rask-log-stack/pkg/logentry"
)

// SessionLimits bounds one table's accumulate-then-flush session.
type SessionLimits struct {
	MaxBytes     int
	MaxRows      int
	FlushInterval time.Duration
	SendTimeout  time.Duration
}

// Config bounds the writer's three channels and per-table sessions.
type Config struct {
	ChannelCapacity int
	Logs            SessionLimits
	OTelLogs        SessionLimits
	OTelTraces      SessionLimits
	Tracer          oteltrace.Tracer // no-op tracer when self-observability tracing is disabled; nil skips spans
}

// State is one session's position in the Idle -> Accumulating -> Flushing
// state machine of spec.md §4.10.
type State string

const (
	StateIdle         State = "idle"
	StateAccumulating State = "accumulating"
	StateFlushing     State = "flushing"
	StateFatalFailed  State = "fatal_failed"
)

// Writer owns the three per-table channels and drives one session per
// table. Sender ends are shared by intake handlers; the receiver end of
// each channel is exclusively owned by the background task started in Run,
// per spec.md §3's ownership rule.
type Writer struct {
	cfg    Config
	sink   sink.ColumnarSink
	logger *logrus.Logger
	tracer oteltrace.Tracer

	logsCh       chan []logentry.LogRow
	otelLogsCh   chan []logentry.OTelLogRow
	otelTracesCh chan []logentry.OTelTraceRow

	stateMu sync.RWMutex
	states  map[string]State
}

// New builds a Writer with its three channels sized by cfg.ChannelCapacity.
func New(cfg Config, s sink.ColumnarSink, logger *logrus.Logger) *Writer {
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = 1024
	}
	return &Writer{
		cfg:          cfg,
		sink:         s,
		logger:       logger,
		tracer:       cfg.Tracer,
		logsCh:       make(chan []logentry.LogRow, cfg.ChannelCapacity),
		otelLogsCh:   make(chan []logentry.OTelLogRow, cfg.ChannelCapacity),
		otelTracesCh: make(chan []logentry.OTelTraceRow, cfg.ChannelCapacity),
		states: map[string]State{
			"logs":        StateIdle,
			"otel_logs":   StateIdle,
			"otel_traces": StateIdle,
		},
	}
}

// SubmitLogs hands rows to the logs table's channel, or reports false if
// ctx is done before the channel accepts them (it stayed full), which the
// aggregator intake turns into a 500 (spec.md §4.8/§7). Handlers pass the
// request's own context, so a slow/full channel cannot outlive the request
// that's trying to fill it.
func (w *Writer) SubmitLogs(ctx context.Context, rows []logentry.LogRow) bool {
	select {
	case w.logsCh <- rows:
		return true
	case <-ctx.Done():
		return false
	}
}

// SubmitOTelLogs hands rows to the otel_logs table's channel.
func (w *Writer) SubmitOTelLogs(ctx context.Context, rows []logentry.OTelLogRow) bool {
	select {
	case w.otelLogsCh <- rows:
		return true
	case <-ctx.Done():
		return false
	}
}

// SubmitOTelTraces hands rows to the otel_traces table's channel.
func (w *Writer) SubmitOTelTraces(ctx context.Context, rows []logentry.OTelTraceRow) bool {
	select {
	case w.otelTracesCh <- rows:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Writer) setState(table string, s State) {
	w.stateMu.Lock()
	w.states[table] = s
	w.stateMu.Unlock()
}

// State reports the current state of a named table's session, for tests
// and diagnostics.
func (w *Writer) State(table string) State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.states[table]
}

// Run starts the three independent session loops and blocks until all have
// drained and exited following shutdown-token cancellation (spec.md §4.10,
// §5's shutdown sequence step 4). Each session is independent: a logs-table
// stall never blocks the otel tables (spec.md §4.10's failure semantics).
func (w *Writer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		runLogsSession(ctx, w, w.logsCh, w.cfg.Logs)
	}()
	go func() {
		defer wg.Done()
		runOTelLogsSession(ctx, w, w.otelLogsCh, w.cfg.OTelLogs)
	}()
	go func() {
		defer wg.Done()
		runOTelTracesSession(ctx, w, w.otelTracesCh, w.cfg.OTelTraces)
	}()

	wg.Wait()
}
