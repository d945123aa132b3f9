package internal

import (
	"complywatch/internal/controllers"
	"complywatch/internal/providers"
	"complywatch/internal/structures"
	"net/http"
)

func InitRoutes(apiController *controllers.ApiController, triggerController *controllers.TriggerController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/plans", http.HandlerFunc(apiController.GetPlans))
	routers.Get("/alerts", http.HandlerFunc(apiController.GetAlerts))

	secured := routers.With(func(next http.Handler) http.Handler {
		return providers.SecretMiddleware(conf.Trigger.Secret, next)
	})
	secured.Post("/snapshots", http.HandlerFunc(apiController.ReceiveSnapshot))
	secured.Post("/alerts/ack", http.HandlerFunc(apiController.AcknowledgeAlert))
	secured.Post("/cron/scans", http.HandlerFunc(triggerController.RunScans))
	secured.Post("/cron/alerts", http.HandlerFunc(triggerController.RunAlerts))
	secured.Post("/cron/digest", http.HandlerFunc(triggerController.RunDigest))
	return routers
}
