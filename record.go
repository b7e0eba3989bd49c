package bprovide

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SnippetLimit is the number of characters of a body kept in a [Record].
const SnippetLimit = 256

// snippetEllipsis marks a truncated body.
const snippetEllipsis = "‥"

// Record is the structured access record emitted once per completed request. Formatting it for
// terminals or log files is left to the consumer of the [RecordSink].
type Record struct {
	Timestamp       time.Time         `json:"timestamp"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Status          int               `json:"status"`
	RequestBody     string            `json:"requestBody,omitempty"`
	ResponseBody    string            `json:"responseBody,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders"`
	ContentType     string            `json:"contentType,omitempty"`
	ElapsedMillis   int64             `json:"elapsedMillis"`
	HTTPVersion     string            `json:"httpVersion"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (rec Record) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("timestamp", rec.Timestamp)
	enc.AddString("method", rec.Method)
	enc.AddString("url", rec.URL)
	enc.AddInt("status", rec.Status)
	if rec.RequestBody != "" {
		enc.AddString("requestBody", rec.RequestBody)
	}
	if rec.ResponseBody != "" {
		enc.AddString("responseBody", rec.ResponseBody)
	}
	if rec.ContentType != "" {
		enc.AddString("contentType", rec.ContentType)
	}
	enc.AddInt64("elapsedMillis", rec.ElapsedMillis)
	enc.AddString("httpVersion", rec.HTTPVersion)

	return enc.AddObject("responseHeaders", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		keys := lo.Keys(rec.ResponseHeaders)
		slices.Sort(keys)
		for _, k := range keys {
			enc.AddString(k, rec.ResponseHeaders[k])
		}
		return nil
	}))
}

// Snippet truncates s to [SnippetLimit] characters, marking the cut with an ellipsis, and
// escapes newlines so the result fits on one line.
func Snippet(s string) string {
	if runes := []rune(s); len(runes) > SnippetLimit {
		s = string(runes[:SnippetLimit]) + snippetEllipsis
	}

	return strings.ReplaceAll(s, "\n", `\n`)
}

// RecordSink receives access records.
type RecordSink interface {
	Emit(ctx context.Context, rec Record)
}

// RecordSinkFunc allow casting a function to implement [RecordSink].
type RecordSinkFunc func(context.Context, Record)

// Emit implements the [RecordSink] interface.
func (f RecordSinkFunc) Emit(ctx context.Context, rec Record) { f(ctx, rec) }

// DiscardRecords drops every record.
var DiscardRecords RecordSink = RecordSinkFunc(func(context.Context, Record) {})

type zapRecordSink struct{ *zap.Logger }

func (s zapRecordSink) Emit(_ context.Context, rec Record) {
	s.Logger.Info("request", zap.Inline(rec))
}

// NewZapRecordSink writes one info entry per record, with the record's fields inlined.
func NewZapRecordSink(l *zap.Logger) RecordSink {
	return zapRecordSink{l.Named("access")}
}

// newRecord captures the state of res for the access log.
func newRecord(req *Request, res *Response) Record {
	rec := Record{
		Timestamp:       time.Now(),
		Method:          req.Method,
		URL:             req.URL.RequestURI(),
		Status:          res.Status(),
		ResponseHeaders: make(map[string]string, len(res.Header())),
		ContentType:     res.Header().Get("Content-Type"),
		ElapsedMillis:   res.Elapsed().Milliseconds(),
		HTTPVersion:     req.Proto,
	}

	for k, vals := range res.Header() {
		rec.ResponseHeaders[k] = strings.Join(vals, ", ")
	}

	if req.Buffered {
		rec.RequestBody = Snippet(string(req.Payload))
	}

	if body := res.Body(); len(body) > 0 {
		rec.ResponseBody = Snippet(string(body))
	}

	return rec
}

// emitRecord sends the access record for this response, at most once.
func (r *Response) emitRecord() {
	if r.logged || r.provider.records == nil {
		return
	}

	r.logged = true
	r.provider.records.Emit(r.req.Context(), newRecord(r.req, r))
}
