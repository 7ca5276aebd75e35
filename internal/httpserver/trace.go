package httpserver

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// traceIDFromHeaders extracts a W3C traceparent header
// ("00-<32 hex trace id>-<16 hex span id>-<2 hex flags>") and validates the
// trace ID segment via otel/trace, rather than pulling in the full
// propagation.TraceContext machinery for a single read-only header check.
func traceIDFromHeaders(h http.Header) (string, bool) {
	tp := h.Get("traceparent")
	if tp == "" {
		return "", false
	}

	parts := strings.Split(tp, "-")
	if len(parts) != 4 {
		return "", false
	}

	id, err := trace.TraceIDFromHex(parts[1])
	if err != nil || !id.IsValid() {
		return "", false
	}

	return id.String(), true
}
