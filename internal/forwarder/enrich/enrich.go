// Package enrich joins a parser.ParsedEntry with the container metadata the
// discovery subsystem tracks, producing the canonical logentry.EnrichedEntry
// that enters the bounded queue. Grounded on the label-enrichment approach
// of docker_json_parser.go's enrichLogEntryWithMetadata, adapted from a
// free-form Labels map to the fixed EnrichedEntry fields spec.md §3 defines.
package enrich

import (
	"strings"

	"rask-log-stack/internal/forwarder/parser"
	"rask-log-stack/pkg/logentry"
)

// Label keys read off container metadata. ServiceTypeLabel lets an operator
// pin a container's service_type explicitly, overriding both the inner
// parser's guess and the name heuristic.
const (
	ServiceTypeLabel = "rask.service_type"
	GroupLabel       = "rask.group"
)

// Enricher joins parsed entries with container metadata.
type Enricher struct{}

func New() *Enricher { return &Enricher{} }

// Enrich produces an EnrichedEntry per spec.md §4.2's resolution order for
// service_type: explicit container label override > inner parse's
// service_type > container name heuristic > literal "unknown".
func (e *Enricher) Enrich(p *parser.ParsedEntry, envelopeTime string, stream logentry.Stream, meta logentry.ContainerMetadata) *logentry.EnrichedEntry {
	ts := envelopeTime
	if p.Timestamp != "" {
		ts = p.Timestamp
	}

	entry := &logentry.EnrichedEntry{
		ServiceType:  resolveServiceType(p, meta),
		LogType:      p.Kind,
		Message:      p.Message,
		Level:        p.Level,
		Timestamp:    ts,
		Stream:       stream,
		ContainerID:  meta.ID,
		ServiceName:  meta.Name,
		ServiceGroup: meta.Labels[GroupLabel],
		Method:       p.Method,
		Path:         p.Path,
		Status:       p.Status,
		ResponseSize: p.Size,
		IP:           p.IP,
		UserAgent:    p.UserAgent,
		TraceID:      p.TraceID,
		SpanID:       p.SpanID,
		Fields:       p.Fields,
	}
	if entry.Fields == nil {
		entry.Fields = map[string]string{}
	}
	return entry
}

// resolveServiceType applies the §4.2 precedence: explicit label override,
// then the inner parser's own opinion, then a heuristic off the container
// name, then "unknown".
func resolveServiceType(p *parser.ParsedEntry, meta logentry.ContainerMetadata) string {
	if v, ok := meta.Labels[ServiceTypeLabel]; ok && v != "" {
		return v
	}
	if p.ServiceType != "" {
		return p.ServiceType
	}
	if st := serviceTypeFromName(meta.Name); st != "" {
		return st
	}
	return "unknown"
}

// nameHeuristics maps common container-name substrings to a service_type,
// for deployments that don't label their containers explicitly.
var nameHeuristics = []struct {
	substr string
	kind   string
}{
	{"nginx", "nginx"},
	{"postgres", "postgres"},
	{"postgresql", "postgres"},
	{"meilisearch", "meilisearch"},
	{"elasticsearch", "elasticsearch"},
	{"redis", "redis"},
}

func serviceTypeFromName(name string) string {
	lower := strings.ToLower(name)
	for _, h := range nameHeuristics {
		if strings.Contains(lower, h.substr) {
			return h.kind
		}
	}
	return ""
}
