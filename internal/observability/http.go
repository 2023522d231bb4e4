package observability

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TraceHeader carries the request trace id. Clients may supply their own;
// the middleware mints one otherwise and always echoes it back.
const TraceHeader = "X-Querydesk-Trace"

// probePaths are traced but excluded from request metrics and the request
// log: scrapes and kubelet probes would otherwise dominate both.
var probePaths = map[string]bool{
	"/v1/health":  true,
	"/v1/ready":   true,
	"/v1/metrics": true,
}

// HTTPMiddleware is the single outer wrapper for the API: it assigns the
// trace id, records request metrics, and logs the outcome of every
// non-probe request.
func HTTPMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceHeader)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			ctx := ContextWithTraceID(r.Context(), traceID)
			w.Header().Set(TraceHeader, traceID)

			if probePaths[r.URL.Path] {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))
			elapsed := time.Since(start)

			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			httpRequestDurationSeconds.WithLabelValues(r.Method, r.URL.Path, status).Observe(elapsed.Seconds())

			logger.InfoContext(ctx, "http_request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.String("duration", elapsed.String()),
				slog.Int64("bytes", rw.written),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(body []byte) (int, error) {
	n, err := w.ResponseWriter.Write(body)
	w.written += int64(n)
	return n, err
}
