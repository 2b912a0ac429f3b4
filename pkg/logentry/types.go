// Package logentry defines the canonical data types that flow through both
// the forwarder and the aggregator: the raw frame read from a container's
// log stream, the parser's output, the enriched record that enters the
// bounded queue, and the batch/row shapes used downstream.
package logentry

import "time"

// Stream identifies which container output stream a frame came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// RawFrame is one log line exactly as delivered by the container runtime,
// before any parsing. It is immutable once constructed.
type RawFrame struct {
	Bytes     []byte
	Stream    Stream
	Timestamp time.Time
}

// Level is the standardized severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// LevelToColumn maps a Level to the small enum used by the logs table.
// Unrecognized/empty levels default to Info, matching the aggregator's
// ColumnarRow mapping in spec.md §3.
func LevelToColumn(l Level) uint8 {
	switch l {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	case LevelFatal:
		return 4
	default:
		return 1 // Info, also the default for empty/unknown
	}
}

// LogType classifies which inner parser produced an entry.
type LogType string

const (
	LogTypeAccess     LogType = "access"
	LogTypeError      LogType = "error"
	LogTypeStructured LogType = "structured"
	LogTypeRelational LogType = "relational_db"
	LogTypeSearch     LogType = "search_engine"
	LogTypePlain      LogType = "plain"
)

// EnrichedEntry is the canonical record that enters the bounded queue, gets
// grouped into batches, and is eventually shipped to the aggregator. See
// spec.md §3.
type EnrichedEntry struct {
	ServiceType  string            `json:"service_type"`
	LogType      LogType           `json:"log_type"`
	Message      string            `json:"message"`
	Level        Level             `json:"level,omitempty"`
	Timestamp    string            `json:"timestamp"`
	Stream       Stream            `json:"stream"`
	ContainerID  string            `json:"container_id"`
	ServiceName  string            `json:"service_name"`
	ServiceGroup string            `json:"service_group,omitempty"`

	Method       string `json:"method,omitempty"`
	Path         string `json:"path,omitempty"`
	Status       int    `json:"status,omitempty"`
	ResponseSize int64  `json:"response_size,omitempty"`
	IP           string `json:"ip,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	Fields map[string]string `json:"fields"`
}

// ParsedTimestamp resolves Timestamp to a millisecond-precision UTC time,
// defaulting to "now" on parse failure (spec.md §3).
func (e *EnrichedEntry) ParsedTimestamp() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, e.Timestamp); err == nil {
			return t.UTC().Round(time.Millisecond)
		}
	}
	return time.Now().UTC().Round(time.Millisecond)
}

// Batch is an ordered sequence of EnrichedEntry ready for transmission.
type Batch struct {
	ID          string
	Fingerprint uint64
	CreatedAt   time.Time
	Entries     []*EnrichedEntry
	ByteSize    int
}

// Count of entries in the batch.
func (b *Batch) Count() int { return len(b.Entries) }

// LogRow mirrors EnrichedEntry for insertion into the "logs" table of the
// columnar sink (spec.md §3).
type LogRow struct {
	ServiceType  string
	LogType      string
	Message      string
	Level        uint8
	Timestamp    time.Time
	Stream       string
	ContainerID  string
	ServiceName  string
	ServiceGroup string
	Method       string
	Path         string
	Status       int
	ResponseSize int64
	IP           string
	UserAgent    string
	TraceID      string
	SpanID       string
	Fields       map[string]string
}

// ToLogRow converts an EnrichedEntry into its columnar row shape. ServiceGroup
// defaults to "unknown" when absent, per spec.md §3.
func ToLogRow(e *EnrichedEntry) LogRow {
	group := e.ServiceGroup
	if group == "" {
		group = "unknown"
	}
	return LogRow{
		ServiceType:  e.ServiceType,
		LogType:      string(e.LogType),
		Message:      e.Message,
		Level:        LevelToColumn(e.Level),
		Timestamp:    e.ParsedTimestamp(),
		Stream:       string(e.Stream),
		ContainerID:  e.ContainerID,
		ServiceName:  e.ServiceName,
		ServiceGroup: group,
		Method:       e.Method,
		Path:         e.Path,
		Status:       e.Status,
		ResponseSize: e.ResponseSize,
		IP:           e.IP,
		UserAgent:    e.UserAgent,
		TraceID:      e.TraceID,
		SpanID:       e.SpanID,
		Fields:       e.Fields,
	}
}

// OTelLogRow and OTelTraceRow carry OTLP payloads decoded from protobuf
// (spec.md §3). Fields are intentionally minimal projections suitable for a
// columnar analytics sink; the full OTLP payload is retained in Raw for
// sinks that want to index it directly.
type OTelLogRow struct {
	Timestamp      time.Time
	ObservedTime   time.Time
	TraceID        string
	SpanID         string
	SeverityText   string
	SeverityNumber int32
	Body           string
	ServiceName    string
	Attributes     map[string]string
}

type OTelTraceRow struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Name         string
	ServiceName  string
	StartTime    time.Time
	EndTime      time.Time
	StatusCode   int32
	Attributes   map[string]string
}

// ContainerMetadata describes the container a frame originated from, used by
// the enricher to populate EnrichedEntry.
type ContainerMetadata struct {
	ID      string
	Name    string
	Labels  map[string]string
	Group   string
	Image   string
}
