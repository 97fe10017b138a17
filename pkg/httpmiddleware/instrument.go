package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// RouteFinder returns the route pattern that serves r, or "" when none does.
type RouteFinder func(r *http.Request) string

// MakeRouteFinder resolves routes against mux without dispatching.
func MakeRouteFinder(mux *http.ServeMux) RouteFinder {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}
}

// Instrument records an OpenTelemetry server span and HTTP metrics for each
// request, naming spans after the matched route.
func Instrument(service string, route RouteFinder, m *app.Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if p := route(r); p != "" {
					return p
				}
				return r.Method + " unmatched"
			}),
		)
	}
}

// Labeler adds the matched route to the metric attributes collected by
// Instrument. It must run inside Instrument.
func Labeler(route RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := route(r); p != "" {
				labeler, _ := otelhttp.LabelerFromContext(r.Context())
				labeler.Add(attribute.String("http.route", p))
			}
			next.ServeHTTP(w, r)
		})
	}
}
