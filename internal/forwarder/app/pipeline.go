package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"rask-log-stack/internal/forwarder/batch"
	"rask-log-stack/internal/forwarder/enrich"
	"rask-log-stack/internal/forwarder/memctl"
	"rask-log-stack/internal/forwarder/metrics"
	"rask-log-stack/internal/forwarder/parser"
	"rask-log-stack/internal/forwarder/queue"
	"rask-log-stack/internal/forwarder/sender"
	"rask-log-stack/internal/forwarder/spill"
	"rask-log-stack/pkg/logentry"
)

// Pipeline owns the data-plane path described by spec.md §1: parse ->
// enrich -> bounded queue -> batch former -> sender (+ retry/spill). It
// holds no goroutines of its own; App.Run (app.go) drives its DrainLoop and
// SendLoop.
type Pipeline struct {
	Registry  *parser.Registry
	Enricher  *enrich.Enricher
	Queue     *queue.Queue
	MemCtl    *memctl.Controller
	Former    *batch.Former
	Sender    *sender.Sender
	Spill     *spill.Store // nil when disk fallback is disabled
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
	Tracer    oteltrace.Tracer // no-op tracer when self-observability tracing is disabled; nil skips spans

	MaxAttempts int
}

// ProcessFrame runs one RawFrame through the Docker-envelope parse, inner
// dispatch, and enrichment, then offers the result to the bounded queue
// under the memory controller's backpressure decision. Parse failures are
// dropped with a metrics increment and never propagated (spec.md §7: "the
// forwarder never propagates a per-line parse error to its HTTP caller").
func (p *Pipeline) ProcessFrame(frame logentry.RawFrame, hint string, meta logentry.ContainerMetadata) {
	envelope, err := parser.ParseDockerEnvelope(frame.Bytes)
	if err != nil {
		p.countParseError(err)
		return
	}

	parsed := p.Registry.Dispatch(hint, envelope.InnerText)
	entry := p.Enricher.Enrich(parsed, envelope.Time.Format(time.RFC3339Nano), envelope.Stream, meta)

	byteSize := estimateSize(entry)
	decision := p.MemCtl.Allocate(int64(byteSize))
	p.recordPressure(decision)

	if decision.Delay > 0 {
		time.Sleep(decision.Delay)
	}
	if decision.ShouldDrop {
		p.MemCtl.Release(int64(byteSize))
		if p.Metrics != nil {
			p.Metrics.QueueDroppedTotal.Inc()
		}
		return
	}

	if !p.Queue.Push(entry, byteSize) {
		p.MemCtl.Release(int64(byteSize))
		if p.Metrics != nil {
			p.Metrics.QueueDroppedTotal.Inc()
		}
	}
}

func (p *Pipeline) countParseError(err error) {
	if p.Metrics == nil {
		return
	}
	kind := "unknown"
	if pe, ok := err.(*parser.ParseError); ok {
		kind = string(pe.Kind)
	}
	p.Metrics.ParseErrorsTotal.WithLabelValues(kind).Inc()
}

func (p *Pipeline) recordPressure(d memctl.Decision) {
	if p.Metrics == nil {
		return
	}
	switch d.Pressure {
	case memctl.PressureWarning:
		p.Metrics.PressureLevel.Set(1)
	case memctl.PressureCritical:
		p.Metrics.PressureLevel.Set(2)
	default:
		p.Metrics.PressureLevel.Set(0)
	}
}

// estimateSize is a cheap stand-in for the entry's wire size, used only to
// weight the memory controller's byte accounting and the batch former's
// byte trigger — not an exact serialization.
func estimateSize(e *logentry.EnrichedEntry) int {
	size := len(e.Message) + len(e.ServiceName) + len(e.ServiceType) + len(e.ContainerID) + 64
	for k, v := range e.Fields {
		size += len(k) + len(v)
	}
	return size
}

// DrainLoop pops entries off the queue, feeds the batch former, and hands
// off any batch the former emits (on a count/byte trigger) to batches. A
// ticker drives the max-wait trigger independently of arrivals, since a
// slow trickle of entries may never hit count/byte thresholds on its own.
func (p *Pipeline) DrainLoop(ctx context.Context, receiver *queue.Receiver, batches chan<- *logentry.Batch) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.flushRemaining(batches)
			return
		case <-ticker.C:
			if p.Former.ShouldFlushOnWait() {
				p.emit(batches)
			}
			if p.Metrics != nil {
				p.Metrics.QueueDepth.Set(float64(p.Queue.MetricsSnapshot().Depth))
			}
		default:
			entry, size := receiver.Pop()
			if entry == nil {
				time.Sleep(time.Millisecond)
				continue
			}
			p.MemCtl.Release(int64(size))
			if p.Former.Add(entry, size) {
				p.emit(batches)
			}
		}
	}
}

func (p *Pipeline) flushRemaining(batches chan<- *logentry.Batch) {
	if b := p.Former.Flush(); b != nil {
		batches <- b
	}
}

func (p *Pipeline) emit(batches chan<- *logentry.Batch) {
	if b := p.Former.Flush(); b != nil {
		batches <- b
	}
}

// SendLoop takes ready batches and drives them through the sender's
// retry-with-backoff policy until success, a non-retryable/fatal failure
// (counted lost), or give-up (spilled when Spill is configured). Grounded
// on the retry-driving loop spec.md §4.6 describes: the sender performs one
// attempt per call and the caller waits NextDelay between attempts.
func (p *Pipeline) SendLoop(ctx context.Context, batches <-chan *logentry.Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			p.sendWithRetry(ctx, b)
		}
	}
}

func (p *Pipeline) sendWithRetry(ctx context.Context, b *logentry.Batch) {
	if p.Tracer != nil {
		var span oteltrace.Span
		ctx, span = p.Tracer.Start(ctx, "forwarder.send_batch")
		defer span.End()
	}
	for {
		result, txErr := p.Sender.SendBatch(ctx, b)
		if txErr == nil {
			if p.Metrics != nil {
				p.Metrics.BatchesSentTotal.Inc()
				p.Metrics.EntriesSentTotal.Add(float64(b.Count()))
				p.Metrics.TransmissionLatency.Observe(result.Latency.Seconds())
			}
			return
		}

		switch txErr.Class {
		case sender.ClassNonRetryable, sender.ClassFatal:
			p.Sender.ClearState(b.ID)
			if p.Metrics != nil {
				reason := "non_retryable"
				if txErr.Class == sender.ClassFatal {
					reason = "fatal"
				}
				p.Metrics.BatchesLostTotal.WithLabelValues(reason).Inc()
			}
			if p.Logger != nil {
				p.Logger.WithError(txErr).WithField("batch_id", b.ID).Warn("batch transmission failed, not retrying")
			}
			return
		}

		if p.Metrics != nil {
			p.Metrics.RetriesTotal.Inc()
		}

		if p.Sender.ShouldGiveUp(b.ID, p.MaxAttempts) {
			p.giveUp(b)
			return
		}

		delay := p.Sender.NextDelay(b.ID)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (p *Pipeline) giveUp(b *logentry.Batch) {
	p.Sender.ClearState(b.ID)
	if p.Spill != nil {
		if _, err := p.Spill.Write(b); err != nil {
			if p.Metrics != nil {
				p.Metrics.BatchesLostTotal.WithLabelValues("spill_failed").Inc()
			}
			if p.Logger != nil {
				p.Logger.WithError(err).WithField("batch_id", b.ID).Error("failed to spill batch after give-up")
			}
			return
		}
		if p.Metrics != nil {
			p.Metrics.DiskFallbackTotal.Inc()
		}
		return
	}
	if p.Metrics != nil {
		p.Metrics.BatchesLostTotal.WithLabelValues("give_up_no_spill").Inc()
	}
	if p.Logger != nil {
		p.Logger.WithField("batch_id", b.ID).Warn("batch lost: retries exhausted and disk fallback disabled")
	}
}
