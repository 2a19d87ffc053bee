package router

import (
	"github.com/stammtisch-app/stammtisch/app/controllers"
	"github.com/stammtisch-app/stammtisch/internal/pkg/constants"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Provider webhooks authenticate via signature, not session.
	app.Post(constants.WebhookBillingRoute, controllers.HandleBillingWebhook)

	app.Post(constants.RegisterRoute, controllers.HandleRegister)
	app.Post(constants.LoginRoute, controllers.HandleLogin)
	app.Post(constants.LogoutRoute, controllers.HandleLogout)
}
