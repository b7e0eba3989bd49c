// Package apptest provides test helpers for app services.
//
// It constructs the identical DI graph as [app.NewApp] but uses
// [fxtest.App] which fails the test immediately on DI errors.
//
// Example:
//
//	apptest.SetBaseEnv(t, 18081)
//	svc := apptest.New[TestEnv](t, registration, app.WithFx(...))
//	svc.RequireStart()
//	t.Cleanup(svc.RequireStop)
package apptest

import (
	"testing"

	"github.com/advdv/bprovide/app"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing app services.
type App struct {
	*fxtest.App
}

// New creates a test app with the same DI graph as [app.NewApp].
func New[E app.Environment](t testing.TB, registration any, opts ...app.Option) *App {
	return &App{App: fxtest.New(t, app.FxOptions[E](registration, opts...)...)}
}
