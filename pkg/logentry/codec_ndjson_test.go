package logentry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDJSONRoundTrip(t *testing.T) {
	entries := []*EnrichedEntry{
		{
			ServiceType: "nginx",
			LogType:     LogTypeAccess,
			Message:     "GET /api/health",
			Level:       LevelInfo,
			Timestamp:   "2023-12-25T10:00:00.000Z",
			Stream:      StreamStdout,
			ContainerID: "abc123",
			ServiceName: "web",
			Method:      "GET",
			Path:        "/api/health",
			Status:      200,
			Fields:      map[string]string{"caller": "main.go:1"},
		},
	}

	encoded, err := MarshalNDJSON(entries)
	require.NoError(t, err)

	decoded, skipped := DecodeNDJSON(bytes.NewReader(encoded))
	require.Equal(t, 0, skipped)
	require.Len(t, decoded, 1)
	assert.Equal(t, entries[0].ServiceType, decoded[0].ServiceType)
	assert.Equal(t, entries[0].Fields, decoded[0].Fields)
	assert.Equal(t, entries[0].Status, decoded[0].Status)
}

func TestDecodeNDJSONEmptyBody(t *testing.T) {
	entries, skipped := DecodeNDJSON(bytes.NewReader(nil))
	assert.Empty(t, entries)
	assert.Equal(t, 0, skipped)
}

func TestDecodeNDJSONSkipsMalformedLines(t *testing.T) {
	body := []byte("{\"service_type\":\"a\"}\nnot json\n{\"service_type\":\"b\"}\n")
	entries, skipped := DecodeNDJSON(bytes.NewReader(body))
	require.Len(t, entries, 2)
	assert.Equal(t, 1, skipped)
}
