package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// HTTPRecorder receives one observation per served request.
// *metrics.Metrics satisfies it.
type HTTPRecorder interface {
	RecordHTTPRequest(route, method, status string, duration time.Duration)
	TrackInFlight() func()
}

// RequestLogger logs every request as one structured line and records it in rec.
// The route label is chi's route pattern so path parameters do not explode
// label cardinality. rec may be nil.
func RequestLogger(log zerolog.Logger, rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rec != nil {
				defer rec.TrackInFlight()()
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			duration := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			if rec != nil {
				rec.RecordHTTPRequest(route, r.Method, strconv.Itoa(status), duration)
			}

			ev := log.Info()
			if status >= http.StatusInternalServerError {
				ev = log.Error()
			} else if status >= http.StatusBadRequest {
				ev = log.Warn()
			}
			ev.
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
