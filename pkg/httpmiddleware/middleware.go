// Package httpmiddleware contains the net/http middleware chain of the API
// server: panic recovery, CORS, rate limiting, request IDs, logging and
// OpenTelemetry instrumentation.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost one.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RouteFinder returns the route pattern that serves r.
type RouteFinder func(r *http.Request) (string, bool)

// MakeRouteFinder resolves routes against the patterns registered on mux.
func MakeRouteFinder(mux *http.ServeMux) RouteFinder {
	return func(r *http.Request) (string, bool) {
		_, pattern := mux.Handler(r)
		return pattern, pattern != ""
	}
}

func routeOf(find RouteFinder, r *http.Request) string {
	if route, ok := find(r); ok {
		return route
	}
	return "unknown"
}

// InjectLogger makes lg the base logger of every request context.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), lg)))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// LogRequests logs every completed request with its route, status and
// duration. Server errors are logged at error level.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", routeOf(find, r)),
				zap.Int("status", sw.status),
				zap.Int("bytes", sw.bytes),
				zap.Duration("duration", time.Since(start)),
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
			}

			lg := zctx.From(r.Context())
			if sw.status >= http.StatusInternalServerError {
				lg.Error("Request", fields...)
				return
			}
			lg.Debug("Request", fields...)
		})
	}
}

// Telemetry provides the tracer and meter providers, as *app.Telemetry does.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Instrument traces and measures every request with otelhttp and tracks the
// number of in-flight requests.
func Instrument(service string, find RouteFinder, m Telemetry) Middleware {
	inFlight, err := m.MeterProvider().
		Meter("github.com/xenking/munchify/pkg/httpmiddleware").
		Int64UpDownCounter("http.server.in_flight",
			metric.WithDescription("Requests currently being served."),
			metric.WithUnit("{request}"),
		)
	return func(next http.Handler) http.Handler {
		counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			attrs := metric.WithAttributes(attribute.String("http.route", routeOf(find, r)))
			inFlight.Add(r.Context(), 1, attrs)
			defer inFlight.Add(r.Context(), -1, attrs)
			next.ServeHTTP(w, r)
		})
		return otelhttp.NewHandler(counted, service,
			otelhttp.WithServerName(service),
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return routeOf(find, r)
			}),
		)
	}
}

// Labeler attaches the route to the otelhttp metrics and the server span.
// It must run inside Instrument.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := attribute.String("http.route", routeOf(find, r))
			if labeler, ok := otelhttp.LabelerFromContext(r.Context()); ok {
				labeler.Add(route)
			}
			trace.SpanFromContext(r.Context()).SetAttributes(route)
			next.ServeHTTP(w, r)
		})
	}
}
