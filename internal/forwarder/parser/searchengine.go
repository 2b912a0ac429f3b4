package parser

import (
	"fmt"
	"regexp"
	"strings"

	"rask-log-stack/pkg/logentry"
)

// ansiEscapePattern matches ANSI/VT100 escape sequences of the form
// ESC[...letter, used by search-engine loggers (and many CLI frameworks) to
// colorize level tokens. Stripped before classification, per spec.md §4.1.
const ansiEscapePattern = "\x1b\\[[0-9;]*[a-zA-Z]"

// searchEngineLevelPattern recognizes a leading level token once escape
// codes have been stripped, e.g. "INFO HTTP request".
const searchEngineLevelPattern = `^(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL)\b\s*(.*)$`

// SearchEngineParser strips ANSI escape codes before classifying level and
// message, matching a Meilisearch/Elasticsearch-style CLI logger.
type SearchEngineParser struct {
	escapeRe *regexp.Regexp
	levelRe  *regexp.Regexp
}

func NewSearchEngineParser() (*SearchEngineParser, error) {
	escapeRe, err := regexp.Compile(ansiEscapePattern)
	if err != nil {
		return nil, fmt.Errorf("compile ansi escape pattern: %w", err)
	}
	levelRe, err := regexp.Compile(searchEngineLevelPattern)
	if err != nil {
		return nil, fmt.Errorf("compile search engine level pattern: %w", err)
	}
	return &SearchEngineParser{escapeRe: escapeRe, levelRe: levelRe}, nil
}

func (p *SearchEngineParser) Name() string            { return "search_engine" }
func (p *SearchEngineParser) ServiceType() string      { return "meilisearch" }
func (p *SearchEngineParser) DetectionPriority() uint8 { return 60 }

// StripEscapes removes all ANSI escape sequences from text.
func (p *SearchEngineParser) StripEscapes(text string) string {
	return p.escapeRe.ReplaceAllString(text, "")
}

func (p *SearchEngineParser) CanParse(text string) bool {
	stripped := p.StripEscapes(text)
	return p.levelRe.MatchString(stripped)
}

func (p *SearchEngineParser) Parse(text string) (*ParsedEntry, error) {
	stripped := p.StripEscapes(text)
	m := p.levelRe.FindStringSubmatch(stripped)
	if m == nil {
		return nil, &ParseError{Kind: ErrInvalidFormat}
	}
	return &ParsedEntry{
		Kind:        logentry.LogTypeSearch,
		ServiceType: p.ServiceType(),
		Message:     strings.TrimSpace(stripped),
		Level:       levelFromWord(m[1]),
		Fields:      map[string]string{},
	}, nil
}
