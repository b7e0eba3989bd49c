package bprovide

import (
	"log"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogUnhandledServeError(err error)
	LogDispatchFailure(err error)
	LogCacheFault(err error)
	LogAbandonedRequest(err error)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledServeError(err error) {
	l.Logger.Printf("bprovide: unhandled serve error: %s", err)
}

func (l stdLogger) LogDispatchFailure(err error) {
	l.Logger.Printf("bprovide: dispatch failed: %s", err)
}

func (l stdLogger) LogCacheFault(err error) {
	l.Logger.Printf("bprovide: cache fault, continuing uncached: %s", err)
}

func (l stdLogger) LogAbandonedRequest(err error) {
	l.Logger.Printf("bprovide: request abandoned: %s", err)
}

func NewStdLogger(l *log.Logger) Logger {
	return stdLogger{l}
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogUnhandledServeError(err error) {
	l.Logger.Error("unhandled serve error", zap.Error(err))
}

func (l zapLogger) LogDispatchFailure(err error) {
	l.Logger.Info("dispatch failed", zap.Error(err))
}

func (l zapLogger) LogCacheFault(err error) {
	l.Logger.Warn("cache fault, continuing uncached", zap.Error(err))
}

func (l zapLogger) LogAbandonedRequest(err error) {
	l.Logger.Debug("request abandoned", zap.Error(err))
}

// NewZapLogger reports through a named child of l.
func NewZapLogger(l *zap.Logger) Logger {
	return zapLogger{l.Named("bprovide")}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogDispatchFailure     int64
	NumLogCacheFault          int64
	NumLogAbandonedRequest    int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("bprovide: unhandled serve error: %s", err)
}

func (l *TestLogger) LogDispatchFailure(err error) {
	atomic.AddInt64(&l.NumLogDispatchFailure, 1)
	l.tb.Logf("bprovide: dispatch failed: %s", err)
}

func (l *TestLogger) LogCacheFault(err error) {
	atomic.AddInt64(&l.NumLogCacheFault, 1)
	l.tb.Logf("bprovide: cache fault, continuing uncached: %s", err)
}

func (l *TestLogger) LogAbandonedRequest(err error) {
	atomic.AddInt64(&l.NumLogAbandonedRequest, 1)
	l.tb.Logf("bprovide: request abandoned: %s", err)
}

var _ Logger = &TestLogger{}
