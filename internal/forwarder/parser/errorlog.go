package parser

import (
	"fmt"
	"regexp"
	"strings"

	"rask-log-stack/pkg/logentry"
)

// errorLogPattern matches the standard web-server error-log line:
//
//	2023/12/25 10:00:00 [error] 29#29: *1 connect() failed (111: Connection refused) while connecting to upstream
const errorLogPattern = `^\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2}\s+\[(error|warn|notice|info|debug)\]\s+(\d+)#\d+:\s*(.*)$`

// ErrorLogParser extracts level, worker id, and message from web-server
// error logs.
type ErrorLogParser struct {
	re *regexp.Regexp
}

func NewErrorLogParser() (*ErrorLogParser, error) {
	re, err := regexp.Compile(errorLogPattern)
	if err != nil {
		return nil, fmt.Errorf("compile error log pattern: %w", err)
	}
	return &ErrorLogParser{re: re}, nil
}

func (p *ErrorLogParser) Name() string             { return "error" }
func (p *ErrorLogParser) ServiceType() string       { return "nginx" }
func (p *ErrorLogParser) DetectionPriority() uint8  { return 90 }
func (p *ErrorLogParser) CanParse(text string) bool { return p.re.MatchString(text) }

func levelFromWord(w string) logentry.Level {
	switch strings.ToLower(w) {
	case "error":
		return logentry.LevelError
	case "warn", "warning", "notice":
		return logentry.LevelWarn
	case "debug", "trace":
		return logentry.LevelDebug
	case "fatal":
		return logentry.LevelFatal
	default:
		return logentry.LevelInfo
	}
}

func (p *ErrorLogParser) Parse(text string) (*ParsedEntry, error) {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Kind: ErrInvalidFormat}
	}
	return &ParsedEntry{
		Kind:        logentry.LogTypeError,
		ServiceType: p.ServiceType(),
		Message:     strings.TrimSpace(m[3]),
		Level:       levelFromWord(m[1]),
		WorkerID:    m[2],
		Fields:      map[string]string{},
	}, nil
}
