package router

import (
	"github.com/stammtisch-app/stammtisch/app/controllers"
	"github.com/stammtisch-app/stammtisch/internal/pkg/constants"
	"github.com/stammtisch-app/stammtisch/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group(constants.AdminRoute, middleware.RequireAPIAdmin)

	// Subscription overrides
	adminGroup.Post("/users/:id/subscription/grant", controllers.HandleAdminGrantSubscription)
	adminGroup.Post("/users/:id/subscription/cancel", controllers.HandleAdminCancelSubscription)
	adminGroup.Post("/users/:id/subscription/revoke", controllers.HandleAdminRevokeAccess)

	// Maintenance
	adminGroup.Post("/maintenance/dedup-sweep", controllers.HandleAdminDedupSweep)
	adminGroup.Post("/maintenance/lookups/invalidate", controllers.HandleAdminInvalidateLookups)
	adminGroup.Get("/maintenance/webhook-stats", controllers.HandleAdminWebhookStats)
	adminGroup.Post("/maintenance/webhook-stats/reset", controllers.HandleAdminResetWebhookStats)
}
