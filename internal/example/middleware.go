// Package example implements example filters and middleware in an outside package.
package example

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/advdv/bprovide"
	"go.uber.org/zap"
)

// ctxKey type scopes middlware values.
type ctxKey string

// Middleware provides an example for middleware that adds a logger to the context.
func Middleware(logs *zap.Logger) bprovide.Middleware {
	return func(n bprovide.Handler) bprovide.Handler {
		return bprovide.HandlerFunc(func(req *bprovide.Request, res *bprovide.Response) error {
			logs := logs.With(zap.String("method", req.Method), zap.String("mime", req.MIME))

			req.Request = req.WithContext(context.WithValue(req.Context(), ctxKey("zap"), logs))

			return n.Serve(req, res)
		})
	}
}

func Log(ctx context.Context) *zap.Logger {
	v, ok := ctx.Value(ctxKey("zap")).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}

	return v
}

// RequestID numbers requests on the way in and echoes the number as a response header on the
// way out. Ids start at 1 for every filter created.
func RequestID(header string) bprovide.Filter {
	var last atomic.Uint64

	return bprovide.Filter{
		Incoming: func(req *bprovide.Request, _ *bprovide.Response, next bprovide.Next) {
			id := strconv.FormatUint(last.Add(1), 10)
			req.Request = req.WithContext(context.WithValue(req.Context(), ctxKey("request-id"), id))
			next(req)
		},
		Outgoing: func(req *bprovide.Request, res *bprovide.Response, next bprovide.Next) {
			if id, ok := req.Context().Value(ctxKey("request-id")).(string); ok {
				res.SetHeader(header, id)
			}

			next(req)
		},
	}
}

// Vary marks responses as depending on the Accept header.
var Vary = bprovide.Filter{Outgoing: func(req *bprovide.Request, res *bprovide.Response, next bprovide.Next) {
	res.Header().Add("Vary", http.CanonicalHeaderKey("accept"))
	next(req)
}}
