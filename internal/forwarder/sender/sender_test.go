package sender

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rask-log-stack/pkg/logentry"
)

func testBatch() *logentry.Batch {
	return &logentry.Batch{
		ID: "batch-1",
		Entries: []*logentry.EnrichedEntry{
			{ServiceName: "web", Message: "hello", Fields: map[string]string{}},
		},
	}
}

func TestSendBatchSuccessNDJSON(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, Format: FormatNDJSON}, logrus.New())
	result, txErr := s.SendBatch(t.Context(), testBatch())

	require.Nil(t, txErr)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Contains(t, string(gotBody), "hello")
	assert.Equal(t, "batch-1:0", gotHeader.Get("Idempotency-Key"))
}

func TestSendBatchRetryableServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, Format: FormatNDJSON}, logrus.New())
	result, txErr := s.SendBatch(t.Context(), testBatch())

	assert.Nil(t, result)
	require.NotNil(t, txErr)
	assert.Equal(t, ClassRetryable, txErr.Class)
	assert.Equal(t, 1, s.Attempts("batch-1"))
}

func TestSendBatchFatalAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, Format: FormatNDJSON}, logrus.New())
	_, txErr := s.SendBatch(t.Context(), testBatch())

	require.NotNil(t, txErr)
	assert.Equal(t, ClassFatal, txErr.Class)
}

func TestSendBatchGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, Format: FormatNDJSON, Backoff: BackoffConfig{Base: time.Millisecond, Max: time.Millisecond}}, logrus.New())
	batch := testBatch()

	for i := 0; i < 3; i++ {
		_, txErr := s.SendBatch(t.Context(), batch)
		require.NotNil(t, txErr)
	}

	assert.True(t, s.ShouldGiveUp("batch-1", 3))
}

func TestSendBatchClearsStateOnSuccess(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, Format: FormatNDJSON}, logrus.New())
	batch := testBatch()

	_, txErr := s.SendBatch(t.Context(), batch)
	require.NotNil(t, txErr)
	assert.Equal(t, 1, s.Attempts("batch-1"))

	result, txErr := s.SendBatch(t.Context(), batch)
	require.Nil(t, txErr)
	require.NotNil(t, result)
	assert.Equal(t, 0, s.Attempts("batch-1"))
}

func TestClearStateRemovesRetryBookkeeping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, Format: FormatNDJSON}, logrus.New())
	batch := testBatch()

	_, txErr := s.SendBatch(t.Context(), batch)
	require.NotNil(t, txErr)
	assert.Equal(t, 1, s.Attempts("batch-1"))

	// A fatal/non-retryable classification is terminal: the caller clears
	// state instead of retrying, so the map does not grow unboundedly.
	s.ClearState("batch-1")
	assert.Equal(t, 0, s.Attempts("batch-1"))
	assert.False(t, s.ShouldGiveUp("batch-1", 1))
}

func TestSendBatchOTLPFormat(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, Format: FormatOTLP}, logrus.New())
	result, txErr := s.SendBatch(t.Context(), testBatch())

	require.Nil(t, txErr)
	require.NotNil(t, result)
	assert.Equal(t, "application/x-protobuf", gotContentType)
}
