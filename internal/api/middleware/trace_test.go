package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/snaptrace/snaptrace-api/internal/api/shared"
	"github.com/snaptrace/snaptrace-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestTrace(t *testing.T) {
	log, buf := logger.GetTestLogger(t)

	var traceID, requestID string
	var scoped bool
	handler := chimw.RequestID(Trace(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		requestID = logger.RequestIDFromContext(r.Context())
		scoped = logger.FromContextOrDefault(r.Context(), nil) != nil
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/feed", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, traceID, 32)
	assert.NotEmpty(t, requestID)
	assert.True(t, scoped)

	logger.AssertLogContains(t, buf, "request started")
	logger.AssertLogContains(t, buf, traceID)
}

func TestTrace_HealthIsQuiet(t *testing.T) {
	log, buf := logger.GetTestLogger(t)

	handler := Trace(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, shared.GetTraceID(r.Context()))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	logger.AssertLogNotContains(t, buf, "request started")
}
