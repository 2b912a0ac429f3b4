package logentry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// EncodeNDJSON serializes entries as newline-delimited JSON, one object per
// line, matching the wire format the aggregator's legacy intake expects
// (spec.md §4.6/§6).
func EncodeNDJSON(w io.Writer, entries []*EnrichedEntry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode ndjson entry: %w", err)
		}
	}
	return nil
}

// MarshalNDJSON is a convenience wrapper returning the encoded bytes.
func MarshalNDJSON(entries []*EnrichedEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeNDJSON(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeNDJSON parses a body of zero or more NDJSON lines. Malformed lines
// are skipped and counted in skipped rather than aborting the whole body,
// matching the aggregator's legacy handler (spec.md §4.8): "malformed lines
// are logged and skipped."
func DecodeNDJSON(r io.Reader) (entries []*EnrichedEntry, skipped int) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e EnrichedEntry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, &e)
	}
	return entries, skipped
}
