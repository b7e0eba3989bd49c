// Package app provides a batteries-included service that serves [bprovide] providers over HTTP.
//
// # Overview
//
// app handles the boilerplate around a provider registry: environment parsing, structured
// logging, OpenTelemetry tracing, AWS SDK clients, access record delivery and graceful
// shutdown. A complete service is created in a single call:
//
//	app.NewApp[Env](func(s *bprovide.Server, h *Handlers) {
//	    s.Provide("application/json").Cache().BindFunc(h.ItemJSON)
//	    s.Provide("text/*").Buffer().BindFunc(h.ItemHTML)
//	},
//	    app.WithFx(fx.Provide(NewHandlers)),
//	).Run()
//
// # Environment Configuration
//
// Define your environment by embedding [BaseEnvironment]:
//
//	type Env struct {
//	    app.BaseEnvironment
//	    UpstreamURL string `env:"UPSTREAM_URL,required"`
//	}
//
// BaseEnvironment provides the following environment variables:
//
//	| Variable                | Required | Default                      | Description                                   |
//	|-------------------------|----------|------------------------------|-----------------------------------------------|
//	| BP_PORT                 | Yes      | -                            | Port the HTTP server listens on               |
//	| BP_SERVICE_NAME         | Yes      | -                            | Service name for logging and tracing          |
//	| BP_READINESS_CHECK_PATH | No       | /health                      | Health check endpoint path                    |
//	| BP_LOG_LEVEL            | No       | info                         | Log level (debug, info, warn, error)          |
//	| BP_OTEL_EXPORTER        | No       | stdout                       | Trace exporter: "stdout", "xrayudp" or "none" |
//	| BP_REQUEST_TIMEOUT      | No       | 30s                          | Deadline for a single provider pipeline       |
//	| BP_EXTENSION_TYPES      | No       | html=text/html,json=...      | Url path extensions and the type they select  |
//	| BP_RECORD_SINK          | No       | log                          | Where access records go: "log" or "sqs"       |
//	| BP_RECORD_QUEUE_URL     | With sqs | -                            | Queue that receives access records            |
//
// # Access records
//
// Every completed request produces one [bprovide.Record]. With BP_RECORD_SINK=log the record
// is written to the zap logger under the "access" name. With BP_RECORD_SINK=sqs it is sent as
// a JSON message so a separate consumer can format or archive it.
//
// # Request context
//
// [Log] returns a trace-correlated logger for the request being served and [Span] returns its
// span. Both work from the request context handlers receive through [bprovide.Request]:
//
//	func (h *Handlers) ItemJSON(req *bprovide.Request, res *bprovide.Response) error {
//	    app.Log(req.Context()).Info("rendering item", zap.String("mime", req.MIME))
//	    return json.NewEncoder(res).Encode(h.item)
//	}
//
// # Outbound HTTP
//
// A [RequestFactory] is available for injection. Its builders share an instrumented transport
// so calls to upstream services show up as child spans of the request being served.
package app
