package app

import (
	"net/http"

	"github.com/carlmjohnson/requests"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewHTTPTransport creates an HTTP RoundTripper instrumented with OpenTelemetry tracing.
// The TracerProvider and Propagator are explicitly injected to avoid global state.
func NewHTTPTransport(tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(prop),
	)
}

// RequestFactory returns a fresh [requests.Builder] with the instrumented transport pre-wired.
// Handlers use it to fetch upstream content; outbound requests become child spans of the
// request being served.
//
//	func (h *Handlers) Weather(req *bprovide.Request, res *bprovide.Response) error {
//	    var forecast string
//	    if err := h.fetch().BaseURL(h.upstream).ToString(&forecast).Fetch(req.Context()); err != nil {
//	        return bprovide.NewError(bprovide.CodeBadGateway, err)
//	    }
//	    ...
//	}
type RequestFactory func() *requests.Builder

// NewRequestFactory creates a [RequestFactory] for the transport.
func NewRequestFactory(t http.RoundTripper) RequestFactory {
	return func() *requests.Builder {
		return requests.New().Transport(t)
	}
}
