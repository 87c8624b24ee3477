package telemetry

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the HTTP server tracer
	TracerName = "gin-server"

	// TraceIDHeader returns the request's trace id to the client
	TraceIDHeader = "X-Trace-ID"
)

// RouteAttributes derives span attributes from a matched route once the
// handler has run, when path params and the authenticated user are known
type RouteAttributes func(c *gin.Context) []attribute.KeyValue

// TracingConfig configures TracingMiddleware
type TracingConfig struct {
	ServiceName string
	// SkipRoutes are route templates that get no span, e.g. "/health"
	SkipRoutes []string
	// Attributes adds service-specific attributes per route
	Attributes RouteAttributes
	// Provider defaults to the global tracer provider
	Provider trace.TracerProvider
}

// TracingMiddleware starts one server span per matched route, named
// "<METHOD> <route template>" so that /schedules/abc and /schedules/def
// aggregate together. Unmatched paths are traced as "<METHOD> unmatched"
// to keep span names bounded.
func TracingMiddleware(cfg TracingConfig) gin.HandlerFunc {
	provider := cfg.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(TracerName,
		trace.WithInstrumentationAttributes(attribute.String("service.name", cfg.ServiceName)))
	propagator := otel.GetTextMapPropagator()

	skip := make(map[string]bool, len(cfg.SkipRoutes))
	for _, r := range cfg.SkipRoutes {
		skip[r] = true
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if skip[route] {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}

		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(c.Request.Method),
				semconv.HTTPRoute(route),
				semconv.UserAgentOriginal(c.Request.UserAgent()),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			c.Header(TraceIDHeader, traceID)
			c.Set("trace_id", traceID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if cfg.Attributes != nil {
			span.SetAttributes(cfg.Attributes(c)...)
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
