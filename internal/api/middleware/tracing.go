package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const traceIDKey = "trace_id"

// Tracing 为每个请求创建一个服务端 span，并将 trace_id 注入上下文供日志关联
// 下游 Service 的 span 通过 c.Request.Context() 成为其子 span；tracer 为 nil 时直接放行
func Tracing(tracer trace.Tracer) gin.HandlerFunc {
	if tracer == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.Start(c.Request.Context(), fmt.Sprintf("HTTP %s %s", c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", c.GetString(requestIDKey)),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Set(traceIDKey, sc.TraceID().String())
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if userID := c.GetString("user_id"); userID != "" {
			span.SetAttributes(attribute.String("enduser.id", userID))
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
