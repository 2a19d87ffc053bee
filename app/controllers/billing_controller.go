package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stammtisch-app/stammtisch/internal/pkg/billing"
	"github.com/stammtisch-app/stammtisch/internal/pkg/env"
	counter "github.com/stammtisch-app/stammtisch/internal/pkg/metrics/counter"
	"github.com/stammtisch-app/stammtisch/internal/pkg/usercontext"
)

// HandleBillingWebhook receives provider webhook deliveries. The signature
// is verified over the raw body before anything else happens; an invalid
// signature produces a 401 and no state change. Duplicate deliveries are
// acknowledged with 200 so the provider stops retrying.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	_ = counter.AddWebhook(counter.FieldReceived)

	event, err := billing.VerifyWebhookSignature(rawBody, signature, secret)
	if err != nil {
		_ = counter.AddWebhook(counter.FieldRejected)
		return writeBillingError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := getBillingService().IngestEvent(ctx, event)
	if err != nil {
		_ = counter.AddWebhook(counter.FieldFailed)
		return writeBillingError(c, err)
	}
	if res.Duplicate {
		_ = counter.AddWebhook(counter.FieldDuplicates)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "duplicate": true})
	}
	if res.Ignored {
		_ = counter.AddWebhook(counter.FieldIgnored)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "ignored": true})
	}
	_ = counter.AddWebhook(counter.FieldProcessed)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// HandleSubscriptionSync lets the logged-in user pull their subscription
// state from the provider. Recently synced accounts are answered from the
// database without a provider round trip.
func HandleSubscriptionSync(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	user, err := getBillingService().SyncUser(ctx, usercontext.GetUserID(c))
	if err != nil {
		return writeBillingError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "subscription": subscriptionJSON(user)})
}

// HandlePromoLookup resolves a promotion code against the provider catalog.
// Results are cached, so hammering the endpoint stays cheap.
func HandlePromoLookup(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	coupon, err := getBillingService().PromoCoupon(ctx, c.Params("code"))
	if err != nil {
		return writeBillingError(c, err)
	}
	return c.JSON(fiber.Map{
		"code":        coupon.Code,
		"percent_off": coupon.PercentOff,
		"amount_off":  coupon.AmountOff,
	})
}
