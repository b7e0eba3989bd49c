package bprovide_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/advdv/bprovide"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func tracing(trace *[]string, name string) bprovide.Filter {
	return bprovide.Filter{
		Incoming: func(req *bprovide.Request, _ *bprovide.Response, next bprovide.Next) {
			*trace = append(*trace, name+".in")
			next(req)
		},
		Outgoing: func(req *bprovide.Request, _ *bprovide.Response, next bprovide.Next) {
			*trace = append(*trace, name+".out")
			next(req)
		},
	}
}

func handle(t *testing.T, srv *bprovide.Server, r *http.Request) (*httptest.ResponseRecorder, *bprovide.Response) {
	t.Helper()
	rec := httptest.NewRecorder()

	res, err := srv.Handle(rec, r)
	require.NoError(t, err)

	return rec, res
}

func get(accept string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", accept)

	return req
}

func TestPipelineOrder(t *testing.T) {
	var trace []string

	srv, _ := newTestServer(t, nil)
	p := srv.Provide("text/plain").
		With(tracing(&trace, "A")).
		With(tracing(&trace, "B")).
		BindFunc(func(*bprovide.Request, *bprovide.Response) error {
			trace = append(trace, "handler")
			return nil
		})

	require.Equal(t, 10, p.Len())
	require.Equal(t, "text/plain", p.Pattern())

	handle(t, srv, get("text/plain"))
	require.Equal(t, []string{"A.in", "B.in", "handler", "B.out", "A.out"}, trace)
}

func TestNilFilterHalvesPass(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(nil, nil).
		With(bprovide.Filter{}).
		BindFunc(func(_ *bprovide.Request, res *bprovide.Response) error {
			_, err := res.Write([]byte("ok"))
			return err
		})

	rec, res := handle(t, srv, get("text/plain"))
	require.Equal(t, "ok", rec.Body.String())
	require.True(t, res.Ended())
	require.Equal(t, 10, res.Cursor())
}

func TestHandlerInterface(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.Provide("text/plain").Bind(greeter{name: "foo"})

	rec, _ := handle(t, srv, get("text/plain"))
	require.Equal(t, "hello foo", rec.Body.String())
}

type greeter struct{ name string }

func (g greeter) Serve(_ *bprovide.Request, res *bprovide.Response) error {
	_, err := fmt.Fprintf(res, "hello %s", g.name)
	return err
}

func TestReturnContinues(t *testing.T) {
	var called bool

	srv, _ := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(func(_ *bprovide.Request, res *bprovide.Response, _ bprovide.Next) {
			res.Return(http.StatusCreated, map[string]string{"X-Seeded": "1"}, []byte("pre-"))
		}, nil).
		BindFunc(func(_ *bprovide.Request, res *bprovide.Response) error {
			called = true
			_, err := res.Write([]byte("body"))
			return err
		})

	rec, _ := handle(t, srv, get("text/plain"))
	require.True(t, called)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Seeded"))
	require.Equal(t, "pre-body", rec.Body.String())
}

func TestReturnFalsyArgumentsKeepState(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(nil, func(_ *bprovide.Request, res *bprovide.Response, _ bprovide.Next) {
			res.Return(0, map[string]string{"X-Kept": ""}, nil)
		}).
		BindFunc(func(_ *bprovide.Request, res *bprovide.Response) error {
			res.SetHeader("X-Kept", "v")
			res.SetStatus(http.StatusAccepted)
			_, err := res.Write([]byte("x"))
			return err
		})

	rec, _ := handle(t, srv, get("text/plain"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "v", rec.Header().Get("X-Kept"))
	require.Equal(t, "x", rec.Body.String())
}

func TestReturnAfterEndIsReported(t *testing.T) {
	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(func(_ *bprovide.Request, res *bprovide.Response, _ bprovide.Next) {
			res.Return(0, nil, []byte("a"))
			res.Return(0, nil, []byte("b"))
		}, nil).
		BindFunc(func(*bprovide.Request, *bprovide.Response) error { return nil })

	rec, _ := handle(t, srv, get("text/plain"))
	require.Equal(t, "a", rec.Body.String())
	require.Equal(t, int64(1), logs.NumLogUnhandledServeError)
}

func TestBreakEndsPipeline(t *testing.T) {
	var called bool

	srv, _ := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(func(req *bprovide.Request, res *bprovide.Response, next bprovide.Next) {
			_, _ = res.Write([]byte("discarded"))
			next(req)
		}, nil).
		Filter(func(_ *bprovide.Request, res *bprovide.Response, _ bprovide.Next) {
			res.Break(http.StatusTeapot, map[string]string{"X-Short": "1"}, []byte("short"))
		}, nil).
		BindFunc(func(*bprovide.Request, *bprovide.Response) error {
			called = true
			return nil
		})

	rec, res := handle(t, srv, get("text/plain"))
	require.False(t, called)
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Short"))
	require.Equal(t, "short", rec.Body.String())
	require.True(t, res.Ended())

	_, err := res.Write([]byte("late"))
	require.Error(t, err)
}

func TestContinuationIsOneShot(t *testing.T) {
	var calls int
	var stale bprovide.Next

	srv, _ := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(func(req *bprovide.Request, _ *bprovide.Response, next bprovide.Next) {
			stale = next
			next(req)
			next(req)
		}, nil).
		BindFunc(func(req *bprovide.Request, res *bprovide.Response) error {
			calls++
			stale(req)
			_, err := res.Write([]byte("once"))
			return err
		})

	rec, _ := handle(t, srv, get("text/plain"))
	require.Equal(t, 1, calls)
	require.Equal(t, "once", rec.Body.String())
}

func TestHandlerErrorWithCode(t *testing.T) {
	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").BindFunc(func(_ *bprovide.Request, res *bprovide.Response) error {
		res.SetHeader("X-Partial", "1")
		_, _ = res.Write([]byte("partial"))
		return bprovide.NewError(bprovide.CodeNotFound, errors.New("no such item"))
	})

	rec, res := handle(t, srv, get("text/plain"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not Found\n", rec.Body.String())
	require.Empty(t, rec.Header().Get("X-Partial"))
	require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, bprovide.CodeNotFound, bprovide.CodeOf(res.Err()))
	require.Equal(t, int64(0), logs.NumLogUnhandledServeError)
}

func TestHandlerErrorDefault(t *testing.T) {
	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").BindFunc(func(_ *bprovide.Request, res *bprovide.Response) error {
		_, _ = res.Write([]byte("partial"))
		return errors.New("triggered error")
	})

	rec, _ := handle(t, srv, get("text/plain"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Internal Server Error\n", rec.Body.String())
	require.Equal(t, int64(1), logs.NumLogUnhandledServeError)
}

func TestPanicInStepFails(t *testing.T) {
	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(func(*bprovide.Request, *bprovide.Response, bprovide.Next) {
			panic("boom")
		}, nil).
		BindFunc(func(*bprovide.Request, *bprovide.Response) error { return nil })

	rec, res := handle(t, srv, get("text/plain"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.ErrorContains(t, res.Err(), "boom")
	require.Equal(t, int64(1), logs.NumLogUnhandledServeError)
}

func TestStalledPipelineFails(t *testing.T) {
	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(func(*bprovide.Request, *bprovide.Response, bprovide.Next) {}, nil).
		BindFunc(func(*bprovide.Request, *bprovide.Response) error { return nil })

	rec, res := handle(t, srv, get("text/plain"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.ErrorContains(t, res.Err(), "stalled at step 0")
	require.Equal(t, int64(1), logs.NumLogUnhandledServeError)
}

func TestCanceledRequestIsAbandoned(t *testing.T) {
	var called bool

	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(func(req *bprovide.Request, _ *bprovide.Response, next bprovide.Next) {
			ctx, cancel := context.WithCancel(req.Context())
			cancel()
			req.Request = req.WithContext(ctx)
			next(req)
		}, nil).
		BindFunc(func(*bprovide.Request, *bprovide.Response) error {
			called = true
			return nil
		})

	rec, res := handle(t, srv, get("text/plain"))
	require.False(t, called)
	require.True(t, res.Abandoned())
	require.True(t, res.Ended())
	require.Equal(t, 0, rec.Body.Len())
	require.Equal(t, int64(1), logs.NumLogAbandonedRequest)
	require.Equal(t, int64(0), logs.NumLogUnhandledServeError)
}

func TestExpiredDeadlineFailsWithGatewayTimeout(t *testing.T) {
	var called bool

	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").
		Filter(func(req *bprovide.Request, _ *bprovide.Response, next bprovide.Next) {
			ctx, cancel := context.WithTimeout(req.Context(), -time.Second)
			defer cancel()
			req.Request = req.WithContext(ctx)
			next(req)
		}, nil).
		BindFunc(func(*bprovide.Request, *bprovide.Response) error {
			called = true
			return nil
		})

	rec, res := handle(t, srv, get("text/plain"))
	require.False(t, called)
	require.False(t, res.Abandoned())
	require.True(t, res.Ended())
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	require.Equal(t, "Gateway Timeout\n", rec.Body.String())
	require.ErrorIs(t, res.Err(), context.DeadlineExceeded)
	require.Equal(t, int64(0), logs.NumLogAbandonedRequest)
	require.Equal(t, int64(0), logs.NumLogUnhandledServeError)
}

func TestHandlerErrorAfterDeadlineIsGatewayTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").BindFunc(func(req *bprovide.Request, _ *bprovide.Response) error {
		<-req.Context().Done()
		return errors.Wrap(req.Context().Err(), "upstream too slow")
	})

	rec, res := handle(t, srv, get("text/plain").WithContext(ctx))
	require.False(t, res.Abandoned())
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	require.Equal(t, bprovide.CodeGatewayTimeout, bprovide.CodeOf(res.Err()))
	require.Equal(t, int64(0), logs.NumLogUnhandledServeError)
}

func TestFailAfterCancelIsAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, logs := newTestServer(t, nil)
	srv.Provide("text/plain").BindFunc(func(*bprovide.Request, *bprovide.Response) error {
		cancel()
		return errors.New("upstream gone")
	})

	rec, res := handle(t, srv, get("text/plain").WithContext(ctx))
	require.True(t, res.Abandoned())
	require.NoError(t, res.Err())
	require.Equal(t, 0, rec.Body.Len())
	require.Equal(t, int64(1), logs.NumLogAbandonedRequest)
	require.Equal(t, int64(0), logs.NumLogUnhandledServeError)
}

func TestBuilderPanicsAfterBind(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	b := srv.Provide("text/plain")
	b.BindFunc(func(*bprovide.Request, *bprovide.Response) error { return nil })

	require.PanicsWithValue(t, "bprovide: cannot add filters after calling Bind", func() { b.Buffer() })
	require.PanicsWithValue(t, "bprovide: cannot add filters after calling Bind", func() {
		b.BindFunc(func(*bprovide.Request, *bprovide.Response) error { return nil })
	})
}

func TestSetHeaderDropsInvalidFields(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.Provide("text/plain").BindFunc(func(_ *bprovide.Request, res *bprovide.Response) error {
		res.SetHeader("Bad Name", "v")
		res.SetHeader("X-Bad-Value", "a\nb")
		res.WriteHead(http.StatusCreated, map[string]string{"X-Good": "ok"})
		return nil
	})

	rec, res := handle(t, srv, get("text/plain"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "ok", rec.Header().Get("X-Good"))
	require.Empty(t, rec.Header().Get("X-Bad-Value"))
	require.Len(t, res.Header(), 1)
}
