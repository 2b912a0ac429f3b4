package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"rask-log-stack/pkg/logentry"
)

// JSONFileSink writes each flush's rows as one NDJSON file per table, for
// use when the primary ColumnarSink is unavailable. Grounded on the
// original Rust adapter's json_file sink (a 114-byte stub the spec
// explicitly leaves for expansion) and, for the one-file-per-flush shape,
// on internal/forwarder/spill's file-per-batch model — this sink is a
// fallback path expected to be drained quickly by
// internal/aggregator/cleaner, which needs discrete files to sweep
// oldest-first, not one ever-growing log.
type JSONFileSink struct {
	dir string
	seq uint64
}

// NewJSONFileSink ensures dir exists and returns a sink rooted there.
func NewJSONFileSink(dir string) (*JSONFileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create json fallback dir %s: %w", dir, err)
	}
	return &JSONFileSink{dir: dir}, nil
}

func (s *JSONFileSink) WriteLogs(_ context.Context, rows []logentry.LogRow) error {
	return appendNDJSON(s.fileFor("logs"), rows)
}

func (s *JSONFileSink) WriteOTelLogs(_ context.Context, rows []logentry.OTelLogRow) error {
	return appendNDJSON(s.fileFor("otel_logs"), rows)
}

func (s *JSONFileSink) WriteOTelTraces(_ context.Context, rows []logentry.OTelTraceRow) error {
	return appendNDJSON(s.fileFor("otel_traces"), rows)
}

// fileFor names each flush's file with a nanosecond timestamp prefix and an
// atomic sequence number, so flushes landing in the same nanosecond still
// get distinct files. The cleaner orders files by modification time.
func (s *JSONFileSink) fileFor(table string) string {
	seq := atomic.AddUint64(&s.seq, 1)
	return filepath.Join(s.dir, fmt.Sprintf("%020d-%s-%d.ndjson", time.Now().UnixNano(), table, seq))
}

func appendNDJSON[T any](path string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row to %s: %w", path, err)
		}
	}
	return nil
}
