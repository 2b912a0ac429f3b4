// Package intake implements the aggregator's two HTTP surfaces: the legacy
// NDJSON endpoint forwarders already speak, and the OTLP/HTTP-protobuf
// endpoints for logs and traces (spec.md §4.8/§4.9). Both translate a
// request body into rows and hand them to the writer.Writer; neither
// performs any buffering or retry of its own — that belongs to the writer.
package intake

import (
	"bytes"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"rask-log-stack/internal/aggregator/writer"
	"rask-log-stack/pkg/logentry"
)

// LegacyHandler serves POST /v1/aggregate, the NDJSON intake path existing
// forwarders speak (spec.md §4.8). Grounded on the teacher's HTTP handler
// shape in internal/sinks/kafka_sink.go's sibling HTTP surface, adapted to
// this module's decode-then-submit contract.
type LegacyHandler struct {
	Writer *writer.Writer
	Logger *logrus.Logger
}

func (h *LegacyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, 32*1024*1024))
	if err != nil {
		h.Logger.WithError(err).Warn("legacy intake: read body failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	entries, skipped := logentry.DecodeNDJSON(bytes.NewReader(body))
	if skipped > 0 {
		h.Logger.WithField("skipped", skipped).Warn("legacy intake: malformed lines skipped")
	}

	if len(entries) == 0 {
		// Per spec.md §9's Open Question decision: an empty or
		// all-invalid body is not an intake failure. Respond 200.
		w.WriteHeader(http.StatusOK)
		return
	}

	rows := make([]logentry.LogRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, logentry.ToLogRow(e))
	}

	if !h.Writer.SubmitLogs(r.Context(), rows) {
		h.Logger.Warn("legacy intake: writer not accepting rows, rejecting request")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
