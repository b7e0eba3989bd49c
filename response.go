package bprovide

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/http/httpguts"
)

// Response drives one provider pipeline for one request. It owns the status, headers and body
// chunks of the reply and only hands them to the underlying connection when the pipeline ends.
type Response struct {
	w        http.ResponseWriter
	req      *Request
	provider *Provider

	header http.Header
	status int
	buffer [][]byte

	pipeline []Step
	cursor   int

	start   time.Time
	elapsed time.Duration

	ended      bool
	abandoned  bool
	logPending bool
	logged     bool
	failure    error
}

func newResponse(w http.ResponseWriter, req *Request, p *Provider) *Response {
	return &Response{
		w:        w,
		req:      req,
		provider: p,
		header:   http.Header{},
		status:   http.StatusOK,
		pipeline: p.pipeline,
		start:    time.Now(),
	}
}

// Continue runs the step under the cursor and advances it by one. The step receives a
// continuation that runs the step after it. Once the response ended Continue does nothing. A
// canceled request context abandons the request; an expired deadline fails it with 504.
func (r *Response) Continue(req *Request) {
	if req != nil {
		r.req = req
	}

	if r.ended || r.cursor >= len(r.pipeline) {
		return
	}

	if err := r.req.Context().Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.Fail(NewError(CodeGatewayTimeout, err))
			return
		}

		r.abandon(err)
		return
	}

	step := r.pipeline[r.cursor]
	r.cursor++
	r.run(step, r.cursor)
}

func (r *Response) run(step Step, at int) {
	defer func() {
		if v := recover(); v != nil {
			r.Fail(errors.Newf("panic in pipeline step %d: %v", at-1, v))
		}
	}()

	step(r.req, r, func(req *Request) {
		if r.cursor != at {
			return
		}

		r.Continue(req)
	})
}

// Return updates the status when non-zero, merges headers when non-nil and appends data when
// non-nil. It then continues with the next step: it does not end the response.
func (r *Response) Return(status int, headers map[string]string, data []byte) {
	if r.ended {
		r.provider.logs.LogUnhandledServeError(errors.Newf(
			"return at step %d after the response ended, %d bytes dropped", r.cursor-1, len(data)))
		return
	}

	r.SetStatus(status)
	r.SetHeaders(headers)
	if data != nil {
		_, _ = r.Write(data)
	}

	r.Continue(r.req)
}

// Break writes the head and ends the response with data, skipping every remaining step.
// Chunks buffered so far are discarded.
func (r *Response) Break(status int, headers map[string]string, data []byte) {
	if r.ended {
		return
	}

	r.buffer = nil
	r.WriteHead(status, headers)
	r.End(data)
}

// Fail ends the response with an error reply. The status is taken from an [*Error] in err's
// chain, or 500 otherwise, in which case the error is also reported to the Logger. Anything
// buffered so far is discarded. When the request deadline expired the reply is 504, when the
// request was canceled nothing is written.
func (r *Response) Fail(err error) {
	if r.ended {
		return
	}

	cerr := r.req.Context().Err()
	if cerr != nil && !errors.Is(cerr, context.DeadlineExceeded) {
		r.abandon(errors.CombineErrors(cerr, err))
		return
	}

	code := CodeOf(err)
	if code == CodeUnknown && cerr != nil {
		err = NewError(CodeGatewayTimeout, errors.CombineErrors(err, cerr))
		code = CodeGatewayTimeout
	} else if code == CodeUnknown {
		code = CodeInternalServerError
		r.provider.logs.LogUnhandledServeError(err)
	}

	r.failure = err
	r.buffer = nil
	r.header = http.Header{}
	r.status = int(code)
	r.header.Set("Content-Type", "text/plain; charset=utf-8")
	r.header.Set("X-Content-Type-Options", "nosniff")
	r.End([]byte(http.StatusText(int(code)) + "\n"))
}

// End appends data, writes status, headers and body to the connection and then reports the
// request to the access log unless a log step is waiting to do so. Only the first call has an
// effect.
func (r *Response) End(data []byte) {
	if r.ended {
		return
	}

	if len(data) > 0 {
		_, _ = r.Write(data)
	}

	r.ended = true
	r.cursor = len(r.pipeline)
	r.elapsed = time.Since(r.start)

	dst := r.w.Header()
	for k, vals := range r.header {
		dst[k] = append([]string(nil), vals...)
	}

	r.w.WriteHeader(r.status)
	for _, chunk := range r.buffer {
		if _, err := r.w.Write(chunk); err != nil {
			r.provider.logs.LogAbandonedRequest(errors.Wrap(err, "failed to write response body"))
			break
		}
	}

	if !r.logPending {
		r.emitRecord()
	}
}

func (r *Response) abandon(err error) {
	r.ended = true
	r.abandoned = true
	r.cursor = len(r.pipeline)
	r.elapsed = time.Since(r.start)
	r.provider.logs.LogAbandonedRequest(err)
}

// Write appends p to the body. It never writes to the connection directly.
func (r *Response) Write(p []byte) (int, error) {
	if r.ended {
		return 0, errors.New("bprovide: write after response ended")
	}

	if len(p) > 0 {
		r.buffer = append(r.buffer, bytes.Clone(p))
	}

	return len(p), nil
}

// WriteHead sets the status when non-zero and merges headers. Both reach the connection when
// the response ends.
func (r *Response) WriteHead(status int, headers map[string]string) {
	r.SetStatus(status)
	r.SetHeaders(headers)
}

// SetHeader sets one header. Invalid field names or values are dropped.
func (r *Response) SetHeader(key, value string) {
	if !httpguts.ValidHeaderFieldName(key) || !httpguts.ValidHeaderFieldValue(value) {
		return
	}

	r.header.Set(key, value)
}

// SetHeaders merges headers into the response. Empty values never replace an existing header.
func (r *Response) SetHeaders(headers map[string]string) {
	for k, v := range headers {
		if v == "" {
			continue
		}

		r.SetHeader(k, v)
	}
}

// SetStatus sets the status code when it is non-zero.
func (r *Response) SetStatus(status int) {
	if status == 0 {
		return
	}

	r.status = status
}

// Header returns the headers that will be written when the response ends.
func (r *Response) Header() http.Header { return r.header }

// Status returns the status that will be written when the response ends.
func (r *Response) Status() int { return r.status }

// Body returns the buffered body chunks joined together.
func (r *Response) Body() []byte { return bytes.Join(r.buffer, nil) }

// Buffered reports whether any body chunk has been written.
func (r *Response) Buffered() bool { return len(r.buffer) > 0 }

// Cursor returns the index of the next step to run.
func (r *Response) Cursor() int { return r.cursor }

// Ended reports whether the response was written, or abandoned.
func (r *Response) Ended() bool { return r.ended }

// Abandoned reports whether the pipeline stopped because the request context was done.
func (r *Response) Abandoned() bool { return r.abandoned }

// Err returns the error the response failed with, if any.
func (r *Response) Err() error { return r.failure }

// Elapsed returns the time spent from the first step until the response ended.
func (r *Response) Elapsed() time.Duration {
	if !r.ended {
		return time.Since(r.start)
	}

	return r.elapsed
}

// Request returns the request as last passed along the pipeline.
func (r *Response) Request() *Request { return r.req }
