package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/stammtisch-app/stammtisch/app/controllers"
	"github.com/stammtisch-app/stammtisch/app/repository"
	"github.com/stammtisch-app/stammtisch/internal/pkg/billing"
	"github.com/stammtisch-app/stammtisch/internal/pkg/cache"
	"github.com/stammtisch-app/stammtisch/internal/pkg/database"
	"github.com/stammtisch-app/stammtisch/internal/pkg/env"
	"github.com/stammtisch-app/stammtisch/internal/pkg/router"
	"github.com/stammtisch-app/stammtisch/internal/pkg/sweeper"
)

func main() {
	app := NewApplication()

	// Graceful shutdown: stop the sweeps, then the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		sweeper.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	svc := billing.NewServiceFromDB(
		database.GetDB(),
		billing.NewStripeProvider(env.GetEnv("STRIPE_SECRET_KEY", "")),
		repository.GetGlobalFactory().GetNotificationRepository(),
		cache.NewWebhookSeenCache(),
		billing.Config{},
	)
	controllers.SetBillingService(svc)

	app := fiber.New(fiber.Config{
		AppName: "Stammtisch",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	// background sweeps (grace expiry, profile dedup)
	sweeper.GetManager().Init(svc)
	sweeper.GetManager().Start()

	return app
}
