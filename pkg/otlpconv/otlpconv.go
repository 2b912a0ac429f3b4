// Package otlpconv converts between the OpenTelemetry Protocol's wire types
// (go.opentelemetry.io/proto/otlp) and this module's canonical row shapes
// (pkg/logentry). It backs both directions: the forwarder's sender encodes
// an EnrichedEntry batch into an OTLP ExportLogsServiceRequest when the
// OTLP/HTTP-protobuf format is selected (spec.md §4.6), and the
// aggregator's intake decodes incoming OTLP logs/traces requests (spec.md
// §4.9) into OTelLogRow/OTelTraceRow. Grounded on the wire-schema
// conversion responsibility described by original_source's
// rask-log-aggregator/app/src/otlp module, expressed against the real Go
// OTLP protobuf definitions rather than the Rust prost types it used.
package otlpconv

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	collectorlogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"rask-log-stack/pkg/logentry"
)

// EncodeLogsRequest groups entries by service_name, one ResourceLogs per
// group, and returns the OTLP request ready for protobuf marshaling.
func EncodeLogsRequest(entries []*logentry.EnrichedEntry) *collectorlogspb.ExportLogsServiceRequest {
	byService := map[string][]*logentry.EnrichedEntry{}
	var order []string
	for _, e := range entries {
		svc := e.ServiceName
		if _, ok := byService[svc]; !ok {
			order = append(order, svc)
		}
		byService[svc] = append(byService[svc], e)
	}

	req := &collectorlogspb.ExportLogsServiceRequest{}
	for _, svc := range order {
		group := byService[svc]
		records := make([]*logspb.LogRecord, 0, len(group))
		for _, e := range group {
			records = append(records, encodeLogRecord(e))
		}
		req.ResourceLogs = append(req.ResourceLogs, &logspb.ResourceLogs{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{stringKV("service.name", svc)},
			},
			ScopeLogs: []*logspb.ScopeLogs{{LogRecords: records}},
		})
	}
	return req
}

func encodeLogRecord(e *logentry.EnrichedEntry) *logspb.LogRecord {
	ts := e.ParsedTimestamp()
	rec := &logspb.LogRecord{
		TimeUnixNano:         uint64(ts.UnixNano()),
		ObservedTimeUnixNano: uint64(time.Now().UnixNano()),
		SeverityText:         strings.ToUpper(string(e.Level)),
		SeverityNumber:       logspb.SeverityNumber(severityNumber(e.Level)),
		Body:                 &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: e.Message}},
	}
	if e.TraceID != "" {
		if id, err := hex.DecodeString(e.TraceID); err == nil {
			rec.TraceId = id
		}
	}
	if e.SpanID != "" {
		if id, err := hex.DecodeString(e.SpanID); err == nil {
			rec.SpanId = id
		}
	}
	for k, v := range e.Fields {
		rec.Attributes = append(rec.Attributes, stringKV(k, v))
	}
	return rec
}

func severityNumber(l logentry.Level) int32 {
	switch l {
	case logentry.LevelDebug:
		return int32(logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG)
	case logentry.LevelWarn:
		return int32(logspb.SeverityNumber_SEVERITY_NUMBER_WARN)
	case logentry.LevelError:
		return int32(logspb.SeverityNumber_SEVERITY_NUMBER_ERROR)
	case logentry.LevelFatal:
		return int32(logspb.SeverityNumber_SEVERITY_NUMBER_FATAL)
	default:
		return int32(logspb.SeverityNumber_SEVERITY_NUMBER_INFO)
	}
}

func stringKV(k, v string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}}}
}

// DecodeLogsRequest flattens an incoming OTLP logs request into rows ready
// for the columnar sink's otel_logs table.
func DecodeLogsRequest(req *collectorlogspb.ExportLogsServiceRequest) []logentry.OTelLogRow {
	var rows []logentry.OTelLogRow
	for _, rl := range req.GetResourceLogs() {
		serviceName := resourceServiceName(rl.GetResource())
		for _, sl := range rl.GetScopeLogs() {
			for _, rec := range sl.GetLogRecords() {
				rows = append(rows, logentry.OTelLogRow{
					Timestamp:      time.Unix(0, int64(rec.GetTimeUnixNano())).UTC(),
					ObservedTime:   time.Unix(0, int64(rec.GetObservedTimeUnixNano())).UTC(),
					TraceID:        hex.EncodeToString(rec.GetTraceId()),
					SpanID:         hex.EncodeToString(rec.GetSpanId()),
					SeverityText:   rec.GetSeverityText(),
					SeverityNumber: int32(rec.GetSeverityNumber()),
					Body:           anyValueToString(rec.GetBody()),
					ServiceName:    serviceName,
					Attributes:     attributesToMap(rec.GetAttributes()),
				})
			}
		}
	}
	return rows
}

// DecodeTracesRequest flattens an incoming OTLP trace request into rows
// ready for the columnar sink's otel_traces table.
func DecodeTracesRequest(req *collectortracepb.ExportTraceServiceRequest) []logentry.OTelTraceRow {
	var rows []logentry.OTelTraceRow
	for _, rs := range req.GetResourceSpans() {
		serviceName := resourceServiceName(rs.GetResource())
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				rows = append(rows, logentry.OTelTraceRow{
					TraceID:      hex.EncodeToString(span.GetTraceId()),
					SpanID:       hex.EncodeToString(span.GetSpanId()),
					ParentSpanID: hex.EncodeToString(span.GetParentSpanId()),
					Name:         span.GetName(),
					ServiceName:  serviceName,
					StartTime:    time.Unix(0, int64(span.GetStartTimeUnixNano())).UTC(),
					EndTime:      time.Unix(0, int64(span.GetEndTimeUnixNano())).UTC(),
					StatusCode:   int32(span.GetStatus().GetCode()),
					Attributes:   attributesToMap(span.GetAttributes()),
				})
			}
		}
	}
	return rows
}

func resourceServiceName(r *resourcepb.Resource) string {
	for _, kv := range r.GetAttributes() {
		if kv.GetKey() == "service.name" {
			return anyValueToString(kv.GetValue())
		}
	}
	return ""
}

func attributesToMap(attrs []*commonpb.KeyValue) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		m[kv.GetKey()] = anyValueToString(kv.GetValue())
	}
	return m
}

func anyValueToString(v *commonpb.AnyValue) string {
	if v == nil {
		return ""
	}
	switch x := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return x.StringValue
	case *commonpb.AnyValue_BoolValue:
		if x.BoolValue {
			return "true"
		}
		return "false"
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(x.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(x.DoubleValue, 'f', -1, 64)
	default:
		return ""
	}
}
