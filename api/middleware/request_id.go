package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

const (
	requestIDHeader    = "X-Request-Id"
	cloudTraceHeader   = "X-Cloud-Trace-Context"
	maxRequestIDLength = 128
)

// RequestID tags every request with an id for log correlation. A caller id is
// reused when it is safe to echo; otherwise the load balancer trace id, then a
// fresh uuid.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := inboundRequestID(r)
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func inboundRequestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); echoable(id) {
		return id
	}
	// TRACE_ID/SPAN_ID;o=OPTIONS
	trace := r.Header.Get(cloudTraceHeader)
	if i := strings.IndexByte(trace, '/'); i > 0 {
		trace = trace[:i]
	}
	if echoable(trace) {
		return trace
	}
	return uuid.NewString()
}

func echoable(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return true
}
