package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/monitoring"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Recovery converts a handler panic into a 500 instead of killing the
// connection.
func Recovery(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorw("handler panic",
						"panic", rec, "method", r.Method, "path", r.URL.Path)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs every request with its status and duration and feeds
// the HTTP metrics.
func RequestLogger(log *zap.SugaredLogger, metrics *monitoring.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			if metrics != nil {
				metrics.ObserveRequest(routeLabel(r), r.Method, rec.status, duration)
			}
			log.Debugw("request",
				"method", r.Method, "path", r.URL.Path,
				"status", rec.status, "duration_ms", duration.Milliseconds())
		})
	}
}

// routeLabel returns the matched route template ("/api/market/price/{symbol}")
// rather than the concrete path, keeping the metric label set bounded.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return r.URL.Path
}
