// Package sink defines the ColumnarSink port the batch writer flushes
// through, and its two concrete implementations: an Elasticsearch bulk
// sink (the closest batched-bulk-HTTP analytics store client in the
// retrieved example pack) and a local JSON-file fallback used when the
// primary sink is unavailable. Grounded on internal/sinks/elasticsearch_sink.go
// for the bulk-write shape.
package sink

import (
	"context"

	"rask-log-stack/pkg/logentry"
)

// ColumnarSink is the external collaborator spec.md §1 explicitly excludes
// from this repository's scope: "the columnar analytics store (downstream
// sink)". This interface is the port the batch writer programs against;
// only its two concrete adapters below belong to this module.
type ColumnarSink interface {
	WriteLogs(ctx context.Context, rows []logentry.LogRow) error
	WriteOTelLogs(ctx context.Context, rows []logentry.OTelLogRow) error
	WriteOTelTraces(ctx context.Context, rows []logentry.OTelTraceRow) error
}
