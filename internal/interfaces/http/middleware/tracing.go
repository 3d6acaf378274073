package middleware

import (
	"net/http"
	"slices"

	"github.com/bizops/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength bounds client-supplied request IDs
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	SkipPaths   []string
}

// Tracing returns the otelgin middleware, or a pass-through when disabled.
// Span names follow "HTTP METHOD route".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return !slices.Contains(cfg.SkipPaths, r.URL.Path)
		}),
	)
}

// TracingAttributeInjector copies request, principal and device attributes onto
// the current span. Place it after JWTAuth and DeviceIdentity.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			span.SetAttributes(spanAttributes(c)...)
		}
		c.Next()
	}
}

func spanAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := GetRequestID(c); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	if p, ok := GetPrincipal(c); ok {
		attrs = append(attrs, attribute.String("user_id", p.UserID.String()))
		if p.TenantID != uuid.Nil {
			attrs = append(attrs, attribute.String(telemetry.SpanAttrTenantID, p.TenantID.String()))
		}
	}
	if identity, ok := GetDeviceIdentity(c); ok {
		attrs = append(attrs,
			attribute.String(telemetry.SpanAttrDeviceID, identity.DeviceID),
			attribute.String(telemetry.SpanAttrDeviceType, identity.DeviceType.String()),
		)
	}
	return attrs
}

// SpanErrorMarker marks the span as failed for 4xx/5xx responses.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
