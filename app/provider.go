package app

import (
	"github.com/advdv/bprovide"
	"github.com/advdv/bprovide/cache"
	"go.uber.org/fx"
)

// ProvidersParams holds the dependencies for creating the provider registry.
type ProvidersParams struct {
	fx.In

	Env     Environment
	Logger  bprovide.Logger
	Records bprovide.RecordSink
	Store   cache.Store
}

// NewProviders creates the registry that the registration function binds providers on. The
// url path extensions it recognizes come from BP_EXTENSION_TYPES.
func NewProviders(params ProvidersParams) *bprovide.Server {
	return bprovide.NewServerWith(
		params.Records,
		params.Logger,
		params.Store,
		bprovide.ExtensionTable(params.Env.extensionTypes()),
	)
}
