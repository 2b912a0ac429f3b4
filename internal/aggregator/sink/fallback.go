package sink

import (
	"context"

	"github.com/sirupsen/logrus"

	"rask-log-stack/pkg/logentry"
)

// FallbackSink writes through Primary, and on failure writes the same rows
// to Fallback instead of dropping them — the "persists rows locally when
// the primary sink is unavailable" behavior DOMAIN-SINK describes for the
// JSON file adapter. OnFallback, if set, is called once per fallback write
// so the caller can track it as a metric.
type FallbackSink struct {
	Primary    ColumnarSink
	Fallback   ColumnarSink
	Logger     *logrus.Logger
	OnFallback func(table string)
}

func (s *FallbackSink) WriteLogs(ctx context.Context, rows []logentry.LogRow) error {
	if err := s.Primary.WriteLogs(ctx, rows); err != nil {
		s.warn("logs", err)
		return s.Fallback.WriteLogs(ctx, rows)
	}
	return nil
}

func (s *FallbackSink) WriteOTelLogs(ctx context.Context, rows []logentry.OTelLogRow) error {
	if err := s.Primary.WriteOTelLogs(ctx, rows); err != nil {
		s.warn("otel_logs", err)
		return s.Fallback.WriteOTelLogs(ctx, rows)
	}
	return nil
}

func (s *FallbackSink) WriteOTelTraces(ctx context.Context, rows []logentry.OTelTraceRow) error {
	if err := s.Primary.WriteOTelTraces(ctx, rows); err != nil {
		s.warn("otel_traces", err)
		return s.Fallback.WriteOTelTraces(ctx, rows)
	}
	return nil
}

func (s *FallbackSink) warn(table string, err error) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("table", table).Warn("primary sink write failed, falling back to json file")
	}
	if s.OnFallback != nil {
		s.OnFallback(table)
	}
}
