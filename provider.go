package bprovide

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/advdv/bprovide/cache"
	"github.com/advdv/bprovide/mediatype"
	"github.com/cockroachdb/errors"
)

// Provider is a registered MIME pattern together with its compiled pipeline. It is immutable
// once bound and safe for concurrent use.
type Provider struct {
	pattern  *mediatype.Pattern
	incoming []Step
	outgoing []Step
	handler  Step
	pipeline []Step

	logs    Logger
	records RecordSink
}

// Pattern returns the MIME template the provider was registered with.
func (p *Provider) Pattern() string { return p.pattern.String() }

// Len returns the number of steps in the pipeline: the incoming steps, the handler, the
// outgoing steps and the finalizer.
func (p *Provider) Len() int { return len(p.pipeline) }

func (p *Provider) bound() bool { return p.pipeline != nil }

// negotiate picks the media type announced for a request matched via candidate.
func (p *Provider) negotiate(candidate string) string {
	if candidate != "" && !strings.Contains(candidate, "*") {
		return candidate
	}

	if tmpl := p.pattern.String(); !strings.Contains(tmpl, "*") {
		return tmpl
	}

	return "application/octet-stream"
}

// Serve runs the pipeline for r and returns the response once the pipeline is done. A
// pipeline that returns control without ending the response fails with a 500.
func (p *Provider) Serve(w http.ResponseWriter, r *http.Request, mime string) *Response {
	req := &Request{Request: r, MIME: mime, Pattern: p.Pattern()}
	res := newResponse(w, req, p)
	res.Continue(req)

	if !res.Ended() {
		res.Fail(errors.Newf("pipeline of %q stalled at step %d", p.Pattern(), res.Cursor()-1))
	}

	return res
}

// Builder accumulates the filters of one provider until [Builder.Bind] freezes them.
type Builder struct {
	provider    *Provider
	store       cache.Store
	middlewares []Middleware
	serving     *atomic.Bool
	bound       bool
}

func (b *Builder) ensureNotBound() {
	if b.bound {
		panic("bprovide: cannot add filters after calling Bind")
	}
}

// With appends filters in order. Incoming halves run in registration order, outgoing halves in
// reverse registration order.
func (b *Builder) With(filters ...Filter) *Builder {
	b.ensureNotBound()

	for _, f := range filters {
		b.provider.incoming = append(b.provider.incoming, orPass(f.Incoming))
		b.provider.outgoing = append([]Step{orPass(f.Outgoing)}, b.provider.outgoing...)
	}

	return b
}

// Filter appends a filter from a raw pair of steps, either may be nil.
func (b *Builder) Filter(incoming, outgoing Step) *Builder {
	return b.With(Filter{Incoming: incoming, Outgoing: outgoing})
}

// Buffer reads the complete request body into [Request.Payload] before the handler runs.
func (b *Builder) Buffer() *Builder {
	return b.With(BufferFilter())
}

// Cache answers from the server's cache store when it holds a body for the url and
// negotiated type, and stores what the handler produced otherwise.
func (b *Builder) Cache() *Builder {
	return b.With(CacheFilter(b.store, b.provider.logs))
}

// ContentType stamps the negotiated type on responses that carry a body.
func (b *Builder) ContentType() *Builder {
	return b.With(ContentTypeFilter())
}

// Log emits the access record once the handler completed.
func (b *Builder) Log() *Builder {
	return b.With(LogFilter())
}

// Use wraps the handler with middleware once it is bound. See [Wrap] for the order.
func (b *Builder) Use(mw ...Middleware) *Builder {
	b.ensureNotBound()
	b.middlewares = append(b.middlewares, mw...)

	return b
}

// Bind installs h as the handler and freezes the pipeline. The content type and log filters are
// appended automatically. Binding is not possible once the server handled a request.
func (b *Builder) Bind(h Handler) *Provider {
	b.ensureNotBound()
	if b.serving != nil && b.serving.Load() {
		panic("bprovide: cannot call Bind() after serving requests")
	}

	b.ContentType()
	b.Log()

	p := b.provider
	p.handler = handlerStep(Wrap(h, b.middlewares...))

	pipeline := make([]Step, 0, len(p.incoming)+len(p.outgoing)+2)
	pipeline = append(pipeline, p.incoming...)
	pipeline = append(pipeline, p.handler)
	pipeline = append(pipeline, p.outgoing...)
	pipeline = append(pipeline, finalize)

	p.pipeline = pipeline
	b.bound = true

	return p
}

// BindFunc is a shorthand for binding a [HandlerFunc].
func (b *Builder) BindFunc(h func(*Request, *Response) error) *Provider {
	return b.Bind(HandlerFunc(h))
}
