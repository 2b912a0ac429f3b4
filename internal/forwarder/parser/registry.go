package parser

import (
	"sort"
	"sync/atomic"
)

// Registry holds every ServiceParser, compiled once at construction, and
// dispatches text to the best match. Construction fails fast (fatal at
// process startup) if any parser fails to build — mirroring the teacher's
// build-time regex validation for its dispatcher. Dispatch itself never
// fails: an unmatched line always falls through to PlainParser, per
// spec.md §4.1.
type Registry struct {
	byPriority []ServiceParser
	byHint     map[string]ServiceParser
	plain      ServiceParser

	misses uint64 // lines that fell through to PlainParser
}

// NewRegistry builds the registry with every known inner-format parser.
// Parsers whose patterns fail to compile make this call return an error;
// the caller is expected to treat that as fatal-at-startup.
func NewRegistry() (*Registry, error) {
	access, err := NewAccessParser()
	if err != nil {
		return nil, err
	}
	errorLog, err := NewErrorLogParser()
	if err != nil {
		return nil, err
	}
	relational, err := NewRelationalDBParser()
	if err != nil {
		return nil, err
	}
	searchEngine, err := NewSearchEngineParser()
	if err != nil {
		return nil, err
	}
	structured := NewStructuredAppParser()
	plain := NewPlainParser()

	parsers := []ServiceParser{access, errorLog, structured, relational, searchEngine}
	sort.SliceStable(parsers, func(i, j int) bool {
		return parsers[i].DetectionPriority() > parsers[j].DetectionPriority()
	})

	byHint := make(map[string]ServiceParser, len(parsers))
	for _, p := range parsers {
		if p.ServiceType() != "" {
			byHint[p.ServiceType()] = p
		}
	}

	return &Registry{
		byPriority: parsers,
		byHint:     byHint,
		plain:      plain,
	}, nil
}

// Dispatch picks a parser for text. When hint names a known service type its
// parser is tried first; on a miss, or when hint is empty/unknown, every
// parser is probed in DetectionPriority order. A line that matches nothing
// is handed to PlainParser, which always succeeds.
func (r *Registry) Dispatch(hint, text string) *ParsedEntry {
	if hint != "" {
		if p, ok := r.byHint[hint]; ok && p.CanParse(text) {
			entry, err := p.Parse(text)
			if err == nil {
				return entry
			}
		}
	}

	for _, p := range r.byPriority {
		if !p.CanParse(text) {
			continue
		}
		entry, err := p.Parse(text)
		if err != nil {
			continue
		}
		return entry
	}

	atomic.AddUint64(&r.misses, 1)
	entry, _ := r.plain.Parse(text)
	return entry
}

// Misses returns the number of lines that fell through to PlainParser.
func (r *Registry) Misses() uint64 {
	return atomic.LoadUint64(&r.misses)
}
