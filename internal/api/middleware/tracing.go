package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/eventeye/server/internal/api"

// Tracing opens a server span for each request and continues an incoming
// W3C traceparent when one is present. Spans are marked failed on 5xx only;
// rejected participants and unknown codes are expected traffic.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parent := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		attrs := []attribute.KeyValue{
			semconv.HTTPMethod(r.Method),
			semconv.HTTPScheme(schemeFromRequest(r)),
			attribute.String("http.target", r.URL.Path),
			semconv.NetHostName(r.Host),
			attribute.String("user_agent.original", r.UserAgent()),
		}
		if id := GetRequestID(r.Context()); id != "" {
			attrs = append(attrs, attribute.String("request_id", id))
		}

		ctx, span := tracer.Start(parent, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(semconv.HTTPStatusCode(rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

func schemeFromRequest(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	switch proto := r.Header.Get("X-Forwarded-Proto"); proto {
	case "http", "https":
		return proto
	}
	return "http"
}
