// Package bprovide negotiates, per request, which of several registered content providers
// answers an HTTP request, and runs the chosen provider through an ordered chain of filters
// before the response is written.
//
// # Overview
//
// A [Server] holds providers registered under MIME templates. For every request it picks one
// provider based on the url's file extension or the client's Accept header and hands the
// request to that provider's pipeline: the incoming halves of its filters, the handler, the
// outgoing halves of its filters in reverse order and a finalizer that writes the response.
//
// A minimal example:
//
//	srv := bprovide.NewServer(bprovide.NewZapRecordSink(logs))
//	srv.Provide("application/json").Cache().BindFunc(func(req *bprovide.Request, res *bprovide.Response) error {
//	    return json.NewEncoder(res).Encode(items)
//	})
//	srv.Provide("text/html").BindFunc(renderItems)
//
//	http.ListenAndServe(":8080", srv)
//
// # Negotiation
//
// The provider is resolved using, in order:
//
//   - a url path extension found in the [ExtensionTable], which bypasses the Accept header
//   - an Accept header of exactly "*/*" (or none at all), which selects the first provider
//   - an Accept header listing "*/*" among other ranges, which is read as a browser asking
//     for "text/html"
//   - otherwise the Accept header sorted by quality value and specificity, see
//     [mediatype.Preferences]
//
// Providers are tried in registration order and, for each provider, the candidates in
// preference order. The first provider matching any candidate wins, so the server's
// registration order takes precedence over the client's quality values. Ranges with q=0 are
// never used as candidates.
//
// When no provider matches, [Server.Handle] writes nothing and returns a [*DispatchError].
// [Server.ServeHTTP] answers such requests with 406 Not Acceptable.
//
// # Pipelines and continuations
//
// Every [Step] receives the request, the [Response] and a [Next] continuation. A step hands
// control onwards by calling next exactly once; calling it again is a no-op. A step may instead
// end the pipeline early:
//
//   - [Response.Return] sets status, headers and body and continues with the next step
//   - [Response.Break] writes the head and ends the response, skipping every remaining step
//   - [Response.Fail] discards what was buffered and ends with an error reply
//
// Nothing reaches the connection until the response ends, so a failing handler or filter can
// always replace the response completely. Handlers return an error to fail:
//
//	return bprovide.NewError(bprovide.CodeNotFound, errors.New("no such item"))
//
// An [*Error] picks the status of the reply. Other errors, and panics inside a step, are
// reported to the [Logger] and answered with 500 Internal Server Error. A step that neither
// continues nor ends the response stalls the pipeline, which is also answered with a 500.
//
// Before each step the request context is checked. Once it is done the pipeline stops and
// nothing is written.
//
// # Filters
//
// [Builder.Buffer], [Builder.Cache], [Builder.ContentType] and [Builder.Log] add the built-in
// filters. [Builder.Filter] and [Builder.With] add user filters. [Builder.Bind] adds the content
// type and log filters, installs the handler and freezes the pipeline.
//
// The cache filter answers from the server's [cache.Store]. A hit ends the response before the
// handler runs: with 304 Not Modified when both If-None-Match and If-Modified-Since match the
// entry, or with the stored body otherwise.
//
// # Access records
//
// One [Record] is emitted per completed request to the [RecordSink] passed at construction.
// Bodies in the record are shortened with [Snippet].
package bprovide
