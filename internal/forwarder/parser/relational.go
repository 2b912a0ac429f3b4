package parser

import (
	"fmt"
	"regexp"
	"strings"

	"rask-log-stack/pkg/logentry"
)

// relationalLogPattern matches the common relational-database log line:
//
//	2024-01-01 12:00:00.123 UTC [1234] ERROR: connection refused
const relationalLogPattern = `^(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}\.\d{3}\s+\S+)\s+\[(\d+)\]\s+(\w+):\s*(.*)$`

// RelationalDBParser extracts timestamp, level, and message from a
// relational database's log format.
type RelationalDBParser struct {
	re *regexp.Regexp
}

func NewRelationalDBParser() (*RelationalDBParser, error) {
	re, err := regexp.Compile(relationalLogPattern)
	if err != nil {
		return nil, fmt.Errorf("compile relational db log pattern: %w", err)
	}
	return &RelationalDBParser{re: re}, nil
}

func (p *RelationalDBParser) Name() string             { return "relational_db" }
func (p *RelationalDBParser) ServiceType() string       { return "postgres" }
func (p *RelationalDBParser) DetectionPriority() uint8  { return 70 }
func (p *RelationalDBParser) CanParse(text string) bool { return p.re.MatchString(text) }

func (p *RelationalDBParser) Parse(text string) (*ParsedEntry, error) {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Kind: ErrInvalidFormat}
	}
	return &ParsedEntry{
		Kind:        logentry.LogTypeRelational,
		ServiceType: p.ServiceType(),
		Message:     strings.TrimSpace(m[4]),
		Level:       levelFromWord(m[3]),
		Timestamp:   m[1],
		Fields:      map[string]string{"pid": m[2]},
	}, nil
}
