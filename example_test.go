package bprovide_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/advdv/bprovide"
	"github.com/cockroachdb/errors"
)

func Example() {
	srv := bprovide.NewServer(bprovide.DiscardRecords)

	srv.Provide("application/json").BindFunc(func(req *bprovide.Request, res *bprovide.Response) error {
		return json.NewEncoder(res).Encode(map[string]string{"name": "Example Item"})
	})

	srv.Provide("text/*").BindFunc(func(req *bprovide.Request, res *bprovide.Response) error {
		_, err := fmt.Fprint(res, "<p>Example Item</p>")
		return err
	})

	for _, accept := range []string{"application/json", "text/html", "image/png"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
		req.Header.Set("Accept", accept)
		srv.ServeHTTP(rec, req)

		fmt.Println(rec.Code, rec.Header().Get("Content-Type"), strings.TrimSpace(rec.Body.String()))
	}
	// Output:
	// 200 application/json {"name":"Example Item"}
	// 200 text/html <p>Example Item</p>
	// 406 text/plain; charset=utf-8 Not Acceptable
}

func ExampleNewError() {
	srv := bprovide.NewServer(bprovide.DiscardRecords)

	srv.Provide("text/plain").BindFunc(func(req *bprovide.Request, res *bprovide.Response) error {
		token := req.Header.Get("Authorization")
		if token == "" {
			return bprovide.NewError(bprovide.CodeUnauthorized, errors.New("missing token"))
		}
		if token != "Bearer secret" {
			return bprovide.NewError(bprovide.CodeForbidden, errors.New("invalid token"))
		}
		fmt.Fprint(res, "welcome")
		return nil
	})

	for _, token := range []string{"", "Bearer wrong", "Bearer secret"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if token != "" {
			req.Header.Set("Authorization", token)
		}
		srv.ServeHTTP(rec, req)
		fmt.Println(rec.Code)
	}
	// Output:
	// 401
	// 403
	// 200
}

func ExampleBuilder_Filter() {
	srv := bprovide.NewServer(bprovide.DiscardRecords)

	srv.Provide("text/plain").
		Filter(func(req *bprovide.Request, res *bprovide.Response, next bprovide.Next) {
			// Set header before the handler runs
			res.SetHeader("X-Request-ID", "req-123")
			next(req)
		}, nil).
		BindFunc(func(req *bprovide.Request, res *bprovide.Response) error {
			fmt.Fprint(res, "pong")
			return nil
		})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	fmt.Println("Body:", rec.Body.String())
	fmt.Println("Request ID:", rec.Header().Get("X-Request-ID"))
	// Output:
	// Body: pong
	// Request ID: req-123
}

func ExampleResponse_Break() {
	srv := bprovide.NewServer(bprovide.DiscardRecords)

	srv.Provide("text/plain").
		Filter(func(req *bprovide.Request, res *bprovide.Response, next bprovide.Next) {
			if req.URL.Query().Get("maintenance") == "true" {
				// Nothing after this step runs, including the handler
				res.Break(http.StatusServiceUnavailable, map[string]string{"Retry-After": "120"}, []byte("down"))
				return
			}
			next(req)
		}, nil).
		BindFunc(func(req *bprovide.Request, res *bprovide.Response) error {
			fmt.Fprint(res, "up")
			return nil
		})

	for _, target := range []string{"/status", "/status?maintenance=true"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		fmt.Println(rec.Code, rec.Body.String())
	}
	// Output:
	// 200 up
	// 503 down
}

func ExampleCodeOf() {
	// Create an error with a specific code
	err := bprovide.NewError(bprovide.CodeNotFound, errors.New("user not found"))
	fmt.Println("Code:", bprovide.CodeOf(err))

	// Wrapped errors preserve the code
	wrapped := fmt.Errorf("handler failed: %w", err)
	fmt.Println("Wrapped code:", bprovide.CodeOf(wrapped))

	// Other errors return CodeUnknown
	plainErr := errors.New("something went wrong")
	fmt.Println("Plain error code:", bprovide.CodeOf(plainErr))
	// Output:
	// Code: 404
	// Wrapped code: 404
	// Plain error code: 0
}
