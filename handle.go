package bprovide

import (
	"net/http"
)

// Request is the inbound request as seen by the pipeline of one provider.
type Request struct {
	*http.Request

	// MIME is the media type negotiated for this request.
	MIME string
	// Pattern is the template of the provider that was selected.
	Pattern string

	// Payload holds the complete request body once the buffer filter ran.
	Payload []byte
	// Buffered reports whether the buffer filter ran.
	Buffered bool
}

// Handler produces the content of a provider. It writes to the response and returns an error
// to fail the request, see [Response.Fail].
type Handler interface {
	Serve(req *Request, res *Response) error
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc func(*Request, *Response) error

// Serve implements the [Handler] interface.
func (f HandlerFunc) Serve(req *Request, res *Response) error {
	return f(req, res)
}

// Next hands control to the next step of the pipeline. Calling it more than once, or after the
// response moved on by other means, has no effect.
type Next func(req *Request)

// Step is one unit of pipeline execution. A step either invokes next, ends the response or
// fails it. A step that does none of these stalls the pipeline.
type Step func(req *Request, res *Response, next Next)

// Filter is a reusable pair of steps. Incoming runs before the handler, Outgoing after it.
// Either half may be nil.
type Filter struct {
	Incoming Step
	Outgoing Step
}

// pass is the step that stands in for a nil filter half.
func pass(req *Request, _ *Response, next Next) {
	next(req)
}

func orPass(s Step) Step {
	if s == nil {
		return pass
	}

	return s
}

// handlerStep runs h and moves on once it returns without error.
func handlerStep(h Handler) Step {
	return func(req *Request, res *Response, next Next) {
		if err := h.Serve(req, res); err != nil {
			res.Fail(err)
			return
		}

		next(req)
	}
}

// finalize flushes the accumulated state to the connection.
func finalize(_ *Request, res *Response, _ Next) {
	res.End(nil)
}
