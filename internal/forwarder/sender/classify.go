package sender

// ErrorClass is the retry disposition assigned to a transmission failure.
// Grounded on classifyLokiError in internal/sinks/loki_sink.go, extended
// with the explicit "fatal" tier spec.md §4.6 adds on top of that file's
// permanent/rate_limit/server/temporary split.
type ErrorClass string

const (
	ClassRetryable    ErrorClass = "retryable"
	ClassNonRetryable ErrorClass = "non_retryable"
	ClassFatal        ErrorClass = "fatal"
)

// ClassifyStatus classifies an HTTP response status code. networkErr should
// be true when there was no response at all (connection failure, timeout).
func ClassifyStatus(statusCode int, networkErr bool) ErrorClass {
	if networkErr || statusCode == 0 {
		return ClassRetryable
	}
	switch statusCode {
	case 401, 403:
		return ClassFatal
	case 429:
		return ClassRetryable
	}
	switch {
	case statusCode >= 500:
		return ClassRetryable
	case statusCode >= 400:
		return ClassNonRetryable
	default:
		return ClassRetryable
	}
}

// ClassifyConfig classifies a configuration error (e.g. an unparsable
// endpoint URL discovered at send time). These are always fatal: no amount
// of retrying fixes a bad config.
func ClassifyConfig(_ error) ErrorClass {
	return ClassFatal
}
