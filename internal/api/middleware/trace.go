package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/snaptrace/snaptrace-api/internal/api/shared"
	"github.com/snaptrace/snaptrace-api/internal/platform/logger"
)

// quietPaths are not logged on every request.
var quietPaths = map[string]bool{
	"/health": true,
}

// Trace adds a trace ID to the request context together with a
// request-scoped logger carrying it and, when chi's RequestID middleware ran
// first, the request id. Apply it early in the chain.
func Trace(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			if reqID := chimw.GetReqID(ctx); reqID != "" {
				ctx = logger.WithRequestID(ctx, reqID)
				log = log.With(slog.String("request_id", reqID))
			}
			ctx = logger.WithLogger(ctx, log)

			if !quietPaths[r.URL.Path] {
				log.Debug("request started",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
