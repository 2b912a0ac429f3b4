package parser

import "rask-log-stack/pkg/logentry"

// PlainParser is the terminal fallback: it never fails and always matches,
// so the registry can guarantee "never fail the pipeline because of parser
// miss" (spec.md §4.1).
type PlainParser struct{}

func NewPlainParser() *PlainParser { return &PlainParser{} }

func (p *PlainParser) Name() string             { return "plain" }
func (p *PlainParser) ServiceType() string       { return "" }
func (p *PlainParser) DetectionPriority() uint8  { return 0 }
func (p *PlainParser) CanParse(text string) bool { return true }

func (p *PlainParser) Parse(text string) (*ParsedEntry, error) {
	return &ParsedEntry{
		Kind:    logentry.LogTypePlain,
		Message: text,
		Level:   logentry.LevelInfo,
		Fields:  map[string]string{},
	}, nil
}
