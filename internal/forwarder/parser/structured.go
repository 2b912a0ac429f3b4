package parser

import (
	"encoding/json"
	"strings"

	"rask-log-stack/pkg/logentry"
)

// StructuredAppParser decodes a single-line JSON object emitted by
// structured application loggers and promotes recognized keys
// (level|ts|caller|msg|method|path|status|duration). Unrecognized keys are
// retained in Fields. Per the Open Question resolved in SPEC_FULL.md, "ts"
// is promoted to the canonical timestamp and "caller" is kept in Fields.
type StructuredAppParser struct{}

func NewStructuredAppParser() *StructuredAppParser { return &StructuredAppParser{} }

func (p *StructuredAppParser) Name() string            { return "structured" }
func (p *StructuredAppParser) ServiceType() string      { return "" } // defers to container hint
func (p *StructuredAppParser) DetectionPriority() uint8 { return 80 }

func (p *StructuredAppParser) CanParse(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}

var knownStructuredKeys = map[string]struct{}{
	"level": {}, "ts": {}, "caller": {}, "msg": {},
	"method": {}, "path": {}, "status": {}, "duration": {},
	"trace_id": {}, "span_id": {},
}

func (p *StructuredAppParser) Parse(text string) (*ParsedEntry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &ParseError{Kind: ErrJSONMalformed}
	}

	entry := &ParsedEntry{
		Kind:   logentry.LogTypeStructured,
		Level:  logentry.LevelInfo,
		Fields: map[string]string{},
	}

	if v, ok := raw["msg"]; ok {
		entry.Message = decodeJSONString(v)
	}
	if v, ok := raw["level"]; ok {
		entry.Level = levelFromWord(decodeJSONString(v))
	}
	if v, ok := raw["ts"]; ok {
		entry.Timestamp = decodeJSONString(v)
	}
	if v, ok := raw["caller"]; ok {
		entry.Fields["caller"] = decodeJSONString(v)
	}
	if v, ok := raw["method"]; ok {
		entry.Method = decodeJSONString(v)
	}
	if v, ok := raw["path"]; ok {
		entry.Path = decodeJSONString(v)
	}
	if v, ok := raw["status"]; ok {
		var n int
		if json.Unmarshal(v, &n) == nil {
			entry.Status = n
		}
	}
	if v, ok := raw["duration"]; ok {
		entry.Fields["duration"] = decodeJSONString(v)
	}
	if v, ok := raw["trace_id"]; ok {
		entry.TraceID = decodeJSONString(v)
	}
	if v, ok := raw["span_id"]; ok {
		entry.SpanID = decodeJSONString(v)
	}

	for k, v := range raw {
		if _, known := knownStructuredKeys[k]; known {
			continue
		}
		entry.Fields[k] = decodeJSONString(v)
	}

	if entry.Message == "" {
		entry.Message = text
	}

	return entry, nil
}

// decodeJSONString best-effort unwraps a raw JSON value to its string form,
// for both quoted strings and scalars promoted into Fields.
func decodeJSONString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}
