// Package logcorr emits one access-log line per request, correlated with the
// active trace when one exists.
package logcorr

import (
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Middleware logs method, path, status and duration for every request and
// mirrors trace/span ids into X-Trace-Id/X-Span-Id response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}

		sc := trace.SpanContextFromContext(r.Context())
		tid, sid := "", ""
		if sc.HasTraceID() {
			tid = sc.TraceID().String()
		}
		if sc.HasSpanID() {
			sid = sc.SpanID().String()
		}
		if tid != "" {
			rec.Header().Set("X-Trace-Id", tid)
		}
		if sid != "" {
			rec.Header().Set("X-Span-Id", sid)
		}
		next.ServeHTTP(rec, r)

		dur := time.Since(start)
		if tid != "" || sid != "" {
			log.Printf("access method=%s path=%s status=%d dur_ms=%d trace_id=%s span_id=%s",
				r.Method, r.URL.Path, rec.status, dur.Milliseconds(), tid, sid)
		} else {
			log.Printf("access method=%s path=%s status=%d dur_ms=%d",
				r.Method, r.URL.Path, rec.status, dur.Milliseconds())
		}
	})
}

type recorder struct {
	http.ResponseWriter
	status int
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
