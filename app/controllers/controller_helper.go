package controllers

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stammtisch-app/stammtisch/app/models"
	"github.com/stammtisch-app/stammtisch/app/repository"
	"github.com/stammtisch-app/stammtisch/internal/pkg/billing"
	"github.com/stammtisch-app/stammtisch/internal/pkg/cache"
	"github.com/stammtisch-app/stammtisch/internal/pkg/database"
	"github.com/stammtisch-app/stammtisch/internal/pkg/env"
)

var (
	billingService     *billing.Service
	billingServiceOnce sync.Once
)

// SetBillingService injects the billing service; tests and main use this.
func SetBillingService(svc *billing.Service) {
	billingService = svc
}

// getBillingService returns the shared billing service. One instance per
// process: it owns the per-customer locks and the catalog caches.
func getBillingService() *billing.Service {
	billingServiceOnce.Do(func() {
		if billingService != nil {
			return
		}
		billingService = billing.NewServiceFromDB(
			database.GetDB(),
			billing.NewStripeProvider(env.GetEnv("STRIPE_SECRET_KEY", "")),
			repository.GetGlobalFactory().GetNotificationRepository(),
			cache.NewWebhookSeenCache(),
			billing.Config{},
		)
	})
	return billingService
}

// writeBillingError maps the billing error taxonomy onto HTTP responses.
func writeBillingError(c *fiber.Ctx, err error) error {
	var (
		authErr     *billing.AuthenticityError
		validErr    *billing.ValidationError
		notFoundErr *billing.NotFoundError
		providerErr *billing.ProviderError
	)
	switch {
	case errors.As(err, &authErr):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature", "message": authErr.Reason})
	case errors.As(err, &validErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_data", "message": validErr.Reason})
	case errors.As(err, &notFoundErr):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": notFoundErr.What + " not found"})
	case errors.As(err, &providerErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_unavailable", "message": "billing provider request failed"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "unexpected error"})
	}
}

// subscriptionJSON is the wire shape of an account's subscription state.
func subscriptionJSON(u *models.User) fiber.Map {
	return fiber.Map{
		"id":                   u.BillingSubscriptionRef,
		"status":               u.SubscriptionStatus,
		"product_ref":          u.BillingProductRef,
		"period_start":         formatTimePtr(u.PeriodStart),
		"period_end":           formatTimePtr(u.PeriodEnd),
		"cancel_at_period_end": u.CancelAtPeriodEnd,
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
