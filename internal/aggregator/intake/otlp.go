package intake

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"

	collectorlogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"rask-log-stack/internal/aggregator/writer"
	"rask-log-stack/pkg/otlpconv"
)

// OTLPLogsHandler serves POST /v1/logs, decoding an OTLP/HTTP-protobuf
// ExportLogsServiceRequest (spec.md §4.9).
type OTLPLogsHandler struct {
	Writer *writer.Writer
	Logger *logrus.Logger
}

func (h *OTLPLogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024*1024))
	if err != nil {
		h.Logger.WithError(err).Warn("otlp logs intake: read body failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req collectorlogspb.ExportLogsServiceRequest
	if err := proto.Unmarshal(body, &req); err != nil {
		h.Logger.WithError(err).Warn("otlp logs intake: decode failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rows := otlpconv.DecodeLogsRequest(&req)
	if len(rows) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	if !h.Writer.SubmitOTelLogs(r.Context(), rows) {
		h.Logger.Warn("otlp logs intake: writer not accepting rows, rejecting request")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// OTLPTracesHandler serves POST /v1/traces, decoding an OTLP/HTTP-protobuf
// ExportTraceServiceRequest (spec.md §4.9).
type OTLPTracesHandler struct {
	Writer *writer.Writer
	Logger *logrus.Logger
}

func (h *OTLPTracesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024*1024))
	if err != nil {
		h.Logger.WithError(err).Warn("otlp traces intake: read body failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req collectortracepb.ExportTraceServiceRequest
	if err := proto.Unmarshal(body, &req); err != nil {
		h.Logger.WithError(err).Warn("otlp traces intake: decode failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rows := otlpconv.DecodeTracesRequest(&req)
	if len(rows) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	if !h.Writer.SubmitOTelTraces(r.Context(), rows) {
		h.Logger.Warn("otlp traces intake: writer not accepting rows, rejecting request")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
