package parser

import (
	"fmt"
	"regexp"
	"strconv"

	"rask-log-stack/pkg/logentry"
)

// accessLogPattern matches the standard combined/common log format family:
//
//	192.168.1.1 - - [25/Dec/2023:10:00:00 +0000] "GET /api/health HTTP/1.1" 200 612 "-" "curl/7.68.0"
//
// The referrer/user-agent group is optional to also accept the plain
// "common" format that omits them.
const accessLogPattern = `^(\S+)\s+\S+\s+\S+\s+\[([^\]]+)\]\s+"(\S+)\s+(\S+)\s+\S+"\s+(\d{3})\s+(\d+|-)(?:\s+"([^"]*)"\s+"([^"]*)")?\s*$`

// AccessParser extracts fields from web-server access logs.
type AccessParser struct {
	re *regexp.Regexp
}

// NewAccessParser compiles the access-log regex. A compile failure is fatal
// at process startup, per spec.md §4.1's build-time validation requirement.
func NewAccessParser() (*AccessParser, error) {
	re, err := regexp.Compile(accessLogPattern)
	if err != nil {
		return nil, fmt.Errorf("compile access log pattern: %w", err)
	}
	return &AccessParser{re: re}, nil
}

func (p *AccessParser) Name() string             { return "access" }
func (p *AccessParser) ServiceType() string       { return "nginx" }
func (p *AccessParser) DetectionPriority() uint8  { return 100 }
func (p *AccessParser) CanParse(text string) bool { return p.re.MatchString(text) }

func (p *AccessParser) Parse(text string) (*ParsedEntry, error) {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Kind: ErrInvalidFormat}
	}

	status, _ := strconv.Atoi(m[5])
	var size int64
	if m[6] != "-" {
		size, _ = strconv.ParseInt(m[6], 10, 64)
	}

	return &ParsedEntry{
		Kind:        logentry.LogTypeAccess,
		ServiceType: p.ServiceType(),
		Message:     text,
		Level:       logentry.LevelInfo,
		IP:          m[1],
		Method:      m[3],
		Path:        m[4],
		Status:      status,
		Size:        size,
		Referrer:    m[7],
		UserAgent:   m[8],
		Fields:      map[string]string{},
	}, nil
}
