//go:build wireinject
// +build wireinject

package di

import (
	"complywatch/internal"
	"complywatch/internal/controllers"
	"complywatch/internal/executor"
	"complywatch/internal/mailer"
	"complywatch/internal/providers"
	"complywatch/internal/scheduler"
	"complywatch/internal/services"
	"complywatch/internal/storage"
	"complywatch/internal/structures"
	wire "github.com/google/wire"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		providers.NewConfigProvider,
		provideLogger,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewClock,
		providers.NewPlanCatalogProvider,

		storage.NewBackend,
		wire.FieldsOf(new(*storage.Backend), "Store", "Files"),
		providePinger,

		executor.NewExecutor,
		mailer.NewMailer,
		services.NewScanTriggerService,
		services.NewAlertService,
		services.NewDigestService,
		scheduler.NewScheduler,

		controllers.NewApiController,
		controllers.NewTriggerController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewHandler,
		internal.NewApp,
	)

	return nil, nil, nil
}
