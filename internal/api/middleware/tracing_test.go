package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func tracedEngine(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := gin.New()
	r.Use(RequestID(), Tracing(tp.Tracer("test")))
	r.GET("/terms/:term_id", func(c *gin.Context) {
		inner := trace.SpanFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"trace_id": c.GetString(traceIDKey),
			"in_span":  inner.SpanContext().IsValid(),
		})
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return r, rec
}

func TestTracing_RecordsServerSpan(t *testing.T) {
	r, rec := tracedEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/terms/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"in_span":true`)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "HTTP GET /terms/:term_id", s.Name())
	assert.Equal(t, trace.SpanKindServer, s.SpanKind())
	assert.Contains(t, w.Body.String(), s.SpanContext().TraceID().String())
	assert.Contains(t, s.Attributes(), attribute.Int("http.response.status_code", http.StatusOK))
	assert.NotEqual(t, codes.Error, s.Status().Code)
}

func TestTracing_ServerErrorMarksSpan(t *testing.T) {
	r, rec := tracedEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_NilTracerPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Tracing(nil))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(traceIDKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
