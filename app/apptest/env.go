package apptest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting [app.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets all [app.BaseEnvironment] env vars to sensible test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - BP_SERVICE_NAME: "test"
//   - BP_READINESS_CHECK_PATH: "/health"
//   - BP_OTEL_EXPORTER: "none"
//   - BP_RECORD_SINK: "log"
//   - AWS_REGION: "us-east-1"
//   - AWS_ACCESS_KEY_ID: "test"
//   - AWS_SECRET_ACCESS_KEY: "test"
//
// Use the returned [Env] to override individual values:
//
//	apptest.SetBaseEnv(t, 18085).ExtensionTypes("csv=text/csv").RequestTimeout("2s")
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BP_PORT", strconv.Itoa(port))
	t.Setenv("BP_SERVICE_NAME", "test")
	t.Setenv("BP_READINESS_CHECK_PATH", "/health")
	t.Setenv("BP_OTEL_EXPORTER", "none")
	t.Setenv("BP_RECORD_SINK", "log")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	return &Env{t: t}
}

// ServiceName overrides BP_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_SERVICE_NAME", name)
	return e
}

// ReadinessCheckPath overrides BP_READINESS_CHECK_PATH.
func (e *Env) ReadinessCheckPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_READINESS_CHECK_PATH", path)
	return e
}

// ExtensionTypes overrides BP_EXTENSION_TYPES.
func (e *Env) ExtensionTypes(pairs string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_EXTENSION_TYPES", pairs)
	return e
}

// RequestTimeout overrides BP_REQUEST_TIMEOUT.
func (e *Env) RequestTimeout(d string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_REQUEST_TIMEOUT", d)
	return e
}

// RecordSink overrides BP_RECORD_SINK and BP_RECORD_QUEUE_URL.
func (e *Env) RecordSink(sink, queueURL string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_RECORD_SINK", sink)
	e.t.Setenv("BP_RECORD_QUEUE_URL", queueURL)
	return e
}
