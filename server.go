package bprovide

import (
	"log"
	"net/http"
	"path"
	"strings"
	"sync/atomic"

	"github.com/advdv/bprovide/cache"
	"github.com/advdv/bprovide/mediatype"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ExtensionTable maps url path extensions, without the leading dot, to media types. An extension
// found in the table decides the negotiated type before the Accept header is considered.
type ExtensionTable map[string]string

// Lookup returns the media type registered for the extension of urlPath.
func (t ExtensionTable) Lookup(urlPath string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(urlPath), "."))
	if ext == "" {
		return "", false
	}

	mime, ok := t[ext]

	return mime, ok
}

// Server is the provider registry and dispatcher. Providers are registered at startup with
// [Server.Provide]; once the first request has been handled the registry is read-only.
type Server struct {
	logs       Logger
	records    RecordSink
	store      cache.Store
	extensions ExtensionTable
	providers  []*Provider
	serving    atomic.Bool
}

// NewServer creates a Server that reports through the standard logger, caches in memory and
// does not map url extensions.
func NewServer(records RecordSink) *Server {
	return NewServerWith(records, NewStdLogger(log.Default()), cache.NewMemory(), nil)
}

// NewServerWith creates a Server with custom settings.
func NewServerWith(records RecordSink, logger Logger, store cache.Store, exts ExtensionTable) *Server {
	return &Server{
		logs:    logger,
		records: records,
		store:   store,
		extensions: lo.MapKeys(exts, func(_ string, ext string) string {
			return strings.ToLower(strings.TrimPrefix(ext, "."))
		}),
	}
}

// Provide registers a provider for the MIME template and returns the builder for its pipeline.
// Providers are matched in the order they were registered.
func (s *Server) Provide(pattern string) *Builder {
	s.ensureNotServing()

	p := &Provider{
		pattern: mediatype.MustCompile(pattern),
		logs:    s.logs,
		records: s.records,
	}

	s.providers = append(s.providers, p)

	return &Builder{provider: p, store: s.store, serving: &s.serving}
}

// Providers returns the registered providers in registration order.
func (s *Server) Providers() []*Provider {
	return append([]*Provider(nil), s.providers...)
}

// Resolve selects the provider for r together with the media type it will announce. Bound
// providers are tried in registration order; for each, the candidates derived from the request
// are tried in preference order.
func (s *Server) Resolve(r *http.Request) (*Provider, string, error) {
	providers := lo.Filter(s.providers, func(p *Provider, _ int) bool { return p.bound() })
	accept := strings.TrimSpace(r.Header.Get("Accept"))

	var candidates []string
	switch ext, ok := s.extensions.Lookup(r.URL.Path); {
	case ok:
		candidates = []string{ext}
	case accept == "" || accept == mediatype.Wildcard:
		if len(providers) < 1 {
			return nil, "", newDispatchError(r, nil)
		}

		return providers[0], providers[0].negotiate(""), nil
	case strings.Contains(accept, mediatype.Wildcard):
		candidates = []string{"text/html"}
	default:
		candidates = lo.Map(
			lo.Filter(mediatype.Preferences(accept), func(e mediatype.Entry, _ int) bool { return e.Q > 0 }),
			func(e mediatype.Entry, _ int) string { return e.String() })
	}

	for _, p := range providers {
		if c, ok := p.pattern.MatchAny(candidates...); ok {
			return p, p.negotiate(c), nil
		}
	}

	return nil, "", newDispatchError(r, candidates)
}

// Handle resolves the provider for r and runs its pipeline. When no provider matches, nothing is
// written and a [*DispatchError] is returned so the caller decides the reply.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) (*Response, error) {
	s.serving.Store(true)

	p, mime, err := s.Resolve(r)
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("bprovide.mime", mime),
		attribute.String("bprovide.provider", p.Pattern()))

	return p.Serve(w, r, mime), nil
}

// ServeHTTP makes the server implement the http.Handler interface. Requests no provider can
// serve are answered with 406 Not Acceptable.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Handle(w, r); err != nil {
		s.logs.LogDispatchFailure(err)
		http.Error(w, http.StatusText(http.StatusNotAcceptable), http.StatusNotAcceptable)
	}
}

func (s *Server) ensureNotServing() {
	if s.serving.Load() {
		panic("bprovide: cannot call Provide() after serving requests")
	}
}
