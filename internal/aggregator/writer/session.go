package writer

import (
	"context"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"rask-log-stack/pkg/logentry"
)

// accumulator buffers one table's pending rows and tracks the Idle ->
// Accumulating transition's start time, generic over the three row types.
type accumulator[T any] struct {
	rows      []T
	byteSize  int
	openSince time.Time
}

func (a *accumulator[T]) add(rows []T, byteSize int) {
	if len(a.rows) == 0 {
		a.openSince = time.Now()
	}
	a.rows = append(a.rows, rows...)
	a.byteSize += byteSize
}

func (a *accumulator[T]) triggered(limits SessionLimits) bool {
	if len(a.rows) == 0 {
		return false
	}
	if limits.MaxRows > 0 && len(a.rows) >= limits.MaxRows {
		return true
	}
	if limits.MaxBytes > 0 && a.byteSize >= limits.MaxBytes {
		return true
	}
	if limits.FlushInterval > 0 && time.Since(a.openSince) >= limits.FlushInterval {
		return true
	}
	return false
}

func (a *accumulator[T]) take() []T {
	rows := a.rows
	a.rows = nil
	a.byteSize = 0
	return rows
}

// maxConsecutiveFlushFailures is the number of back-to-back flush errors a
// session tolerates before reporting StateFatalFailed instead of StateIdle.
// The session keeps running either way (spec.md §4.10: "log and drop the
// in-flight rows" rather than block); this only changes what State(table)
// reports, so a sustained sink outage on one table is visible separately
// from ordinary transient-retry churn.
const maxConsecutiveFlushFailures = 3

// flushOutcome updates a per-session consecutive-failure counter and
// returns the state the session should report after a flush attempt.
func flushOutcome(consecutiveFailures *int, err error) State {
	if err == nil {
		*consecutiveFailures = 0
		return StateIdle
	}
	*consecutiveFailures++
	if *consecutiveFailures >= maxConsecutiveFlushFailures {
		return StateFatalFailed
	}
	return StateIdle
}

// runLogsSession drives the logs table's Idle -> Accumulating -> Flushing
// loop. Grounded on internal/dispatcher/batch_processor.go's select over
// (channel receive, flush ticker, ctx.Done), per the "Background batch
// writer as state machine" design note of spec.md §9.
func runLogsSession(ctx context.Context, w *Writer, ch <-chan []logentry.LogRow, limits SessionLimits) {
	acc := &accumulator[logentry.LogRow]{}
	interval := limits.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var consecutiveFailures int
	flush := func() {
		if len(acc.rows) == 0 {
			return
		}
		w.setState("logs", StateFlushing)
		rows := acc.take()
		sendCtx, cancel := withTimeout(context.Background(), limits.SendTimeout)
		defer cancel()
		if w.tracer != nil {
			var span oteltrace.Span
			sendCtx, span = w.tracer.Start(sendCtx, "aggregator.flush_logs")
			defer span.End()
		}
		err := w.sink.WriteLogs(sendCtx, rows)
		if err != nil {
			logWriterError(w, "logs", len(rows), err)
		}
		w.setState("logs", flushOutcome(&consecutiveFailures, err))
	}

	for {
		select {
		case <-ctx.Done():
			drainLogs(w, ch, acc, limits)
			flush()
			return
		case rows, ok := <-ch:
			if !ok {
				flush()
				return
			}
			w.setState("logs", StateAccumulating)
			acc.add(rows, byteSizeOfLogRows(rows))
			if acc.triggered(limits) {
				flush()
			}
		case <-ticker.C:
			if acc.triggered(limits) {
				flush()
			}
		}
	}
}

func drainLogs(w *Writer, ch <-chan []logentry.LogRow, acc *accumulator[logentry.LogRow], limits SessionLimits) {
	for {
		select {
		case rows, ok := <-ch:
			if !ok {
				return
			}
			acc.add(rows, byteSizeOfLogRows(rows))
		default:
			return
		}
	}
}

func runOTelLogsSession(ctx context.Context, w *Writer, ch <-chan []logentry.OTelLogRow, limits SessionLimits) {
	acc := &accumulator[logentry.OTelLogRow]{}
	interval := limits.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var consecutiveFailures int
	flush := func() {
		if len(acc.rows) == 0 {
			return
		}
		w.setState("otel_logs", StateFlushing)
		rows := acc.take()
		sendCtx, cancel := withTimeout(context.Background(), limits.SendTimeout)
		defer cancel()
		if w.tracer != nil {
			var span oteltrace.Span
			sendCtx, span = w.tracer.Start(sendCtx, "aggregator.flush_otel_logs")
			defer span.End()
		}
		err := w.sink.WriteOTelLogs(sendCtx, rows)
		if err != nil {
			logWriterError(w, "otel_logs", len(rows), err)
		}
		w.setState("otel_logs", flushOutcome(&consecutiveFailures, err))
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rows, ok := <-ch:
					if !ok {
						flush()
						return
					}
					acc.add(rows, len(rows)*128)
				default:
					flush()
					return
				}
			}
		case rows, ok := <-ch:
			if !ok {
				flush()
				return
			}
			w.setState("otel_logs", StateAccumulating)
			acc.add(rows, len(rows)*128)
			if acc.triggered(limits) {
				flush()
			}
		case <-ticker.C:
			if acc.triggered(limits) {
				flush()
			}
		}
	}
}

func runOTelTracesSession(ctx context.Context, w *Writer, ch <-chan []logentry.OTelTraceRow, limits SessionLimits) {
	acc := &accumulator[logentry.OTelTraceRow]{}
	interval := limits.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var consecutiveFailures int
	flush := func() {
		if len(acc.rows) == 0 {
			return
		}
		w.setState("otel_traces", StateFlushing)
		rows := acc.take()
		sendCtx, cancel := withTimeout(context.Background(), limits.SendTimeout)
		defer cancel()
		if w.tracer != nil {
			var span oteltrace.Span
			sendCtx, span = w.tracer.Start(sendCtx, "aggregator.flush_otel_traces")
			defer span.End()
		}
		err := w.sink.WriteOTelTraces(sendCtx, rows)
		if err != nil {
			logWriterError(w, "otel_traces", len(rows), err)
		}
		w.setState("otel_traces", flushOutcome(&consecutiveFailures, err))
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rows, ok := <-ch:
					if !ok {
						flush()
						return
					}
					acc.add(rows, len(rows)*128)
				default:
					flush()
					return
				}
			}
		case rows, ok := <-ch:
			if !ok {
				flush()
				return
			}
			w.setState("otel_traces", StateAccumulating)
			acc.add(rows, len(rows)*128)
			if acc.triggered(limits) {
				flush()
			}
		case <-ticker.C:
			if acc.triggered(limits) {
				flush()
			}
		}
	}
}

func byteSizeOfLogRows(rows []logentry.LogRow) int {
	size := 0
	for _, r := range rows {
		size += len(r.Message) + len(r.ServiceName) + 64
	}
	return size
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func logWriterError(w *Writer, table string, rowCount int, err error) {
	if w.logger == nil {
		return
	}
	w.logger.WithError(err).WithField("table", table).WithField("rows", rowCount).
		Warn("batch writer: flush failed, dropping in-flight rows")
}
