package bprovide

import (
	"bytes"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/advdv/bprovide/cache"
	"github.com/cockroachdb/errors"
)

// BufferFilter reads the complete request body into [Request.Payload] before continuing. The
// body is replaced by a reader over the same bytes so the handler may read it again.
func BufferFilter() Filter {
	return Filter{Incoming: func(req *Request, res *Response, next Next) {
		if req.Body == nil || req.Body == http.NoBody {
			req.Payload, req.Buffered = []byte{}, true
			next(req)
			return
		}

		body, err := io.ReadAll(req.Body)
		if err != nil {
			res.Fail(NewError(CodeBadRequest, errors.Wrap(err, "failed to read request body")))
			return
		}

		req.Payload, req.Buffered = body, true
		req.Body = io.NopCloser(bytes.NewReader(body))
		next(req)
	}}
}

// CacheFilter answers from store when it holds a body for the request url and negotiated type.
// A hit ends the response right away so the handler does not run: with 304 when the request's
// validators both match the entry, with the cached body otherwise. On a miss the outgoing step
// stores what the handler produced. Faults of the store are reported to logs and treated as a
// miss.
func CacheFilter(store cache.Store, logs Logger) Filter {
	return Filter{
		Incoming: func(req *Request, res *Response, next Next) {
			entry, ok, err := lookup(store, req.URL.RequestURI(), req.MIME)
			if err != nil {
				logs.LogCacheFault(err)
			}

			if !ok {
				next(req)
				return
			}

			res.SetHeader("Etag", `"`+entry.ETag+`"`)
			res.SetHeader("Last-Modified", entry.ModTime.UTC().Format(http.TimeFormat))

			if notModified(req.Request, entry) {
				res.Break(http.StatusNotModified, nil, nil)
				return
			}

			res.Break(http.StatusOK, map[string]string{
				"Content-Length": strconv.Itoa(len(entry.Data)),
				"Content-Type":   req.MIME,
				"X-Provider":     strconv.FormatInt(entry.MTimeMillis(), 10),
			}, entry.Data)
		},
		Outgoing: func(req *Request, res *Response, next Next) {
			body := res.Body()
			if res.Status() != http.StatusOK || len(body) == 0 {
				next(req)
				return
			}

			sum := md5.Sum(body) //nolint:gosec
			entry := cache.Entry{
				ETag:    hex.EncodeToString(sum[:]),
				Data:    body,
				ModTime: time.Now().Truncate(time.Millisecond),
			}

			if err := save(store, req.URL.RequestURI(), req.MIME, entry); err != nil {
				logs.LogCacheFault(err)
				next(req)
				return
			}

			res.SetHeader("Etag", `"`+entry.ETag+`"`)
			res.SetHeader("Last-Modified", entry.ModTime.UTC().Format(http.TimeFormat))
			next(req)
		},
	}
}

// lookup reads from store, turning a panicking store into an error.
func lookup(store cache.Store, url, mime string) (e cache.Entry, ok bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			e, ok, err = cache.Entry{}, false, errors.Newf("cache lookup of %q (%s) panicked: %v", url, mime, v)
		}
	}()

	e, ok = store.Get(url, mime)

	return e, ok, nil
}

// save writes to store, turning a panicking store into an error.
func save(store cache.Store, url, mime string, e cache.Entry) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Newf("cache write of %q (%s) panicked: %v", url, mime, v)
		}
	}()

	if err := store.Set(url, mime, e); err != nil {
		return errors.Wrapf(err, "failed to cache %q (%s)", url, mime)
	}

	return nil
}

// notModified reports whether both validators of r match e. The entry's time is compared at the
// one-second resolution of HTTP dates.
func notModified(r *http.Request, e cache.Entry) bool {
	inm, ims := r.Header.Get("If-None-Match"), r.Header.Get("If-Modified-Since")
	if inm == "" || ims == "" {
		return false
	}

	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}

	if e.ModTime.Truncate(time.Second).After(since) {
		return false
	}

	for _, tag := range strings.Split(inm, ",") {
		tag = strings.TrimSpace(tag)
		tag = strings.TrimPrefix(tag, "W/")
		if tag == "*" || strings.Trim(tag, `"`) == e.ETag {
			return true
		}
	}

	return false
}

// ContentTypeFilter stamps the negotiated type on responses that carry a body. A Content-Type
// that a step already chose is kept rather than overwritten, so handlers can announce parameters
// such as a charset.
func ContentTypeFilter() Filter {
	return Filter{Outgoing: func(req *Request, res *Response, next Next) {
		if res.Buffered() && res.Header().Get("Content-Type") == "" {
			res.SetHeader("Content-Type", req.MIME)
		}

		next(req)
	}}
}

// LogFilter emits the access record once the rest of the pipeline finished, so the record shows
// what was written to the connection.
func LogFilter() Filter {
	return Filter{Outgoing: func(req *Request, res *Response, next Next) {
		res.logPending = true
		next(req)

		if res.Abandoned() {
			return
		}

		if !res.Ended() {
			res.logPending = false
			return
		}

		res.emitRecord()
	}}
}
