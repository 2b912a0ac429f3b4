package intake

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	collectorlogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"rask-log-stack/internal/aggregator/writer"
	"rask-log-stack/pkg/logentry"
)

// recordingSink is a sink.ColumnarSink that accepts and discards every write,
// so the writer behind the intake handlers always has a working sink.
type recordingSink struct{}

func (recordingSink) WriteLogs(context.Context, []logentry.LogRow) error             { return nil }
func (recordingSink) WriteOTelLogs(context.Context, []logentry.OTelLogRow) error     { return nil }
func (recordingSink) WriteOTelTraces(context.Context, []logentry.OTelTraceRow) error { return nil }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(nil)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testWriter(t *testing.T) (*writer.Writer, func()) {
	t.Helper()
	w := writer.New(writer.Config{
		ChannelCapacity: 16,
		Logs:            writer.SessionLimits{MaxRows: 1, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelLogs:        writer.SessionLimits{MaxRows: 1, FlushInterval: time.Hour, SendTimeout: time.Second},
		OTelTraces:      writer.SessionLimits{MaxRows: 1, FlushInterval: time.Hour, SendTimeout: time.Second},
	}, recordingSink{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	return w, func() {
		cancel()
		<-done
	}
}

func TestLegacyHandlerEmptyBodyReturns200(t *testing.T) {
	w, stop := testWriter(t)
	defer stop()
	h := &LegacyHandler{Writer: w, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/v1/aggregate", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLegacyHandlerAllInvalidLinesReturns200(t *testing.T) {
	w, stop := testWriter(t)
	defer stop()
	h := &LegacyHandler{Writer: w, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/v1/aggregate", strings.NewReader("not json\n{also not json\n"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLegacyHandlerValidLineAccepted(t *testing.T) {
	w, stop := testWriter(t)
	defer stop()
	h := &LegacyHandler{Writer: w, Logger: testLogger()}

	body := `{"service_type":"web","log_type":"plain","message":"hi","timestamp":"2026-01-01T00:00:00Z","stream":"stdout","container_id":"c1","service_name":"svc","fields":{}}` + "\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/aggregate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLegacyHandlerRejectsWhenChannelFullAndContextExpires(t *testing.T) {
	w := writer.New(writer.Config{
		ChannelCapacity: 1,
		Logs:            writer.SessionLimits{MaxRows: 1, FlushInterval: time.Hour, SendTimeout: time.Second},
	}, recordingSink{}, testLogger())
	// No Run(ctx) started: nothing ever drains logsCh, so its one slot of
	// capacity is the whole budget available to producers.
	h := &LegacyHandler{Writer: w, Logger: testLogger()}

	body := `{"service_type":"web","log_type":"plain","message":"hi","timestamp":"2026-01-01T00:00:00Z","stream":"stdout","container_id":"c1","service_name":"svc","fields":{}}` + "\n"

	// First request fills the single buffered slot.
	req1 := httptest.NewRequest(http.MethodPost, "/v1/aggregate", strings.NewReader(body))
	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	// Second request has nowhere to go and its context expires quickly.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req2 := httptest.NewRequest(http.MethodPost, "/v1/aggregate", strings.NewReader(body)).WithContext(ctx)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)

	assert.Equal(t, http.StatusInternalServerError, rec2.Code)
}

func TestOTLPLogsHandlerDecodeFailureReturns400(t *testing.T) {
	w, stop := testWriter(t)
	defer stop()
	h := &OTLPLogsHandler{Writer: w, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader("not a protobuf message"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOTLPLogsHandlerAcceptsValidRequest(t *testing.T) {
	w, stop := testWriter(t)
	defer stop()
	h := &OTLPLogsHandler{Writer: w, Logger: testLogger()}

	reqPB := &collectorlogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			ScopeLogs: []*logspb.ScopeLogs{{
				LogRecords: []*logspb.LogRecord{{TimeUnixNano: 1}},
			}},
		}},
	}
	body, err := proto.Marshal(reqPB)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOTLPTracesHandlerAcceptsValidRequest(t *testing.T) {
	w, stop := testWriter(t)
	defer stop()
	h := &OTLPTracesHandler{Writer: w, Logger: testLogger()}

	reqPB := &collectortracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			ScopeSpans: []*tracepb.ScopeSpans{{
				Spans: []*tracepb.Span{{Name: "span-a"}},
			}},
		}},
	}
	body, err := proto.Marshal(reqPB)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/traces", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOTLPTracesHandlerDecodeFailureReturns400(t *testing.T) {
	w, stop := testWriter(t)
	defer stop()
	h := &OTLPTracesHandler{Writer: w, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/v1/traces", strings.NewReader("\xff\xff\xff"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
