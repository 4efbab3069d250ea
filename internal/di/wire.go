//go:build wireinject
// +build wireinject

package di

import (
	"EmaScreen/pkg/config"
	"EmaScreen/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideHistoryStore,
		ProvideCacheStore,
		ProvideStateStore,
		ProvidePublisher,

		// Services
		ProvideRegistry,
		ProvidePacer,
		ProvideBarSource,

		// Use cases
		ProvideScreener,
		ProvideUpdater,

		// Delivery
		ProvideScheduler,
		ProvideHandler,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
