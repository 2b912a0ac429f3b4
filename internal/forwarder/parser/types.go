// Package parser implements the Docker JSON envelope parser plus the set of
// per-service inner-format parsers (web access/error, structured app JSON,
// relational DB log, search-engine log), dispatched through a priority-
// ordered registry. See spec.md §4.1 and the "Polymorphism over parsers"
// design note of §9.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rask-log-stack/pkg/logentry"
)

// DockerEnvelope is the outcome of the mandatory first parse stage: Docker's
// json-file log driver envelope. See spec.md §4.1.
type DockerEnvelope struct {
	InnerText string
	Stream    logentry.Stream
	Time      time.Time
}

// ErrorKind enumerates the ParseError variants of spec.md §4.1.
type ErrorKind string

const (
	ErrJSONMalformed ErrorKind = "json_malformed"
	ErrMissingField  ErrorKind = "missing_field"
	ErrInvalidFormat ErrorKind = "invalid_format"
)

// ParseError reports why a parse stage failed: the Docker envelope stage or
// an inner-format parser.
type ParseError struct {
	Kind  ErrorKind
	Field string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return string(e.Kind)
}

type dockerJSONLog struct {
	Log    *string `json:"log"`
	Stream *string `json:"stream"`
	Time   *string `json:"time"`
}

// ParseDockerEnvelope decodes the mandatory Docker json-file envelope
// (fields "log", "stream", "time"). A non-object root is InvalidFormat; a
// missing required field is MissingField.
func ParseDockerEnvelope(raw []byte) (*DockerEnvelope, error) {
	var doc dockerJSONLog
	if err := json.Unmarshal(raw, &doc); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return nil, &ParseError{Kind: ErrInvalidFormat}
		}
		return nil, &ParseError{Kind: ErrJSONMalformed}
	}
	if doc.Log == nil {
		return nil, &ParseError{Kind: ErrMissingField, Field: "log"}
	}
	if doc.Stream == nil {
		return nil, &ParseError{Kind: ErrMissingField, Field: "stream"}
	}
	if doc.Time == nil {
		return nil, &ParseError{Kind: ErrMissingField, Field: "time"}
	}

	ts, err := time.Parse(time.RFC3339Nano, *doc.Time)
	if err != nil {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	return &DockerEnvelope{
		InnerText: strings.TrimSuffix(*doc.Log, "\n"),
		Stream:    logentry.Stream(*doc.Stream),
		Time:      ts,
	}, nil
}

// ParsedEntry is the outcome of inner-format parsing: one flattened struct
// covering all variants of spec.md §3, mirroring the teacher's own
// single-struct LogEntry convention (pkg/types/types.go) rather than a set
// of Go sum-type workarounds.
type ParsedEntry struct {
	Kind        logentry.LogType
	ServiceType string // empty when the parser has no opinion
	Message     string
	Level       logentry.Level

	IP        string
	Method    string
	Path      string
	Status    int
	Size      int64
	UserAgent string
	Referrer  string

	WorkerID string

	// Timestamp overrides the Docker envelope's own timestamp when the
	// inner parser extracted one of its own (e.g. a structured app log's
	// "ts" field). Empty means "use the envelope's time".
	Timestamp string

	TraceID string
	SpanID  string

	Fields map[string]string
}

// ServiceParser is the capability set every inner-format parser implements
// (spec.md §4.1).
type ServiceParser interface {
	CanParse(text string) bool
	Parse(text string) (*ParsedEntry, error)
	DetectionPriority() uint8
	ServiceType() string
	Name() string
}
