package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// httpStatusServerError is the threshold for HTTP server errors.
const httpStatusServerError = 500

// Error taxonomy attribute values, attached to spans via RecordSpanError so
// the diagnostics server's failures are queryable by kind regardless of
// which handler produced them.
const (
	ErrTypeValidation            = "validation"
	ErrTypeDependencyUnavailable = "dependency_unavailable"
	ErrTypePanic                 = "panic"

	ErrSourceDependency = "dependency"
)

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter

	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}

	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(buf []byte) (int, error) {
	if !sw.written {
		sw.statusCode = http.StatusOK
		sw.written = true
	}

	n, err := sw.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

// HTTPMiddleware returns an http.Handler that creates a span per request
// (named "METHOD /path"), recovers panics into a 500 response with a
// recorded error.type=panic span attribute and a panic.stack event, and
// emits a structured access-log line once the handler returns.
func HTTPMiddleware(tracer trace.Tracer, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		start := time.Now()

		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		spanName := hr.Method + " " + hr.URL.Path

		ctx, span := tracer.Start(parentCtx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				attribute.String("http.target", hr.URL.Path),
			),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: rw}

		defer func() {
			if r := recover(); r != nil {
				sw.statusCode = http.StatusInternalServerError
				sw.ResponseWriter.WriteHeader(http.StatusInternalServerError)

				span.SetAttributes(attribute.String("error.type", ErrTypePanic))
				span.AddEvent("panic.stack", trace.WithAttributes(
					attribute.String("panic.value", fmt.Sprint(r)),
					attribute.String("stack", string(debug.Stack())),
				))
				span.SetStatus(codes.Error, fmt.Sprint(r))

				logAccess(logger, hr, sw.statusCode, time.Since(start))
			}
		}()

		next.ServeHTTP(sw, hr.WithContext(ctx))

		span.SetAttributes(semconv.HTTPResponseStatusCode(sw.statusCode))

		if sw.statusCode >= httpStatusServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.statusCode))
		}

		logAccess(logger, hr, sw.statusCode, time.Since(start))
	})
}

func logAccess(logger *slog.Logger, hr *http.Request, status int, elapsed time.Duration) {
	if logger == nil {
		return
	}

	logger.Info("http.request",
		"method", hr.Method,
		"path", hr.URL.Path,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// RecordSpanError marks span as failed with err's message, tagging it with
// an error.type taxonomy value and an optional error.source (the
// collaborator that produced the failure, e.g. "dependency"). An empty
// errSource is not recorded, so handlers that can't attribute a failure to
// a specific collaborator don't emit a misleading attribute.
func RecordSpanError(span trace.Span, err error, errType, errSource string) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.type", errType))

	if errSource != "" {
		span.SetAttributes(attribute.String("error.source", errSource))
	}
}
