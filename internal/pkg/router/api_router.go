package router

import (
	"github.com/stammtisch-app/stammtisch/app/controllers"
	"github.com/stammtisch-app/stammtisch/internal/pkg/constants"
	"github.com/stammtisch-app/stammtisch/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1", middleware.RequireAPISessionAuth)
	v1.Get("/me", controllers.HandleGetMe)
	v1.Get("/notifications", controllers.HandleListNotifications)
	v1.Post("/subscription/sync", controllers.HandleSubscriptionSync)
	v1.Get("/billing/promo/:code", controllers.HandlePromoLookup)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
