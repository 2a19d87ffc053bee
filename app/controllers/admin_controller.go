package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	counter "github.com/stammtisch-app/stammtisch/internal/pkg/metrics/counter"
)

func adminTargetUserID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	return uint(id), nil
}

// HandleAdminGrantSubscription subscribes the user to the current membership
// product on the admin's behalf. The state flows through the reconciler, so
// the result is indistinguishable from a self-service purchase.
func HandleAdminGrantSubscription(c *fiber.Ctx) error {
	userID, err := adminTargetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_data", "message": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := getBillingService().GrantSubscription(ctx, userID)
	if err != nil {
		return writeBillingError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "subscription": subscriptionJSON(user)})
}

// HandleAdminCancelSubscription cancels at period end; the member keeps
// access until the paid period lapses.
func HandleAdminCancelSubscription(c *fiber.Ctx) error {
	userID, err := adminTargetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_data", "message": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := getBillingService().CancelSubscription(ctx, userID)
	if err != nil {
		return writeBillingError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "subscription": subscriptionJSON(user)})
}

// HandleAdminRevokeAccess expires the member immediately, without grace.
func HandleAdminRevokeAccess(c *fiber.Ctx) error {
	userID, err := adminTargetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_data", "message": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := getBillingService().RevokeAccess(ctx, userID)
	if err != nil {
		return writeBillingError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "subscription": subscriptionJSON(user)})
}

// HandleAdminDedupSweep converges duplicate profiles across all addresses.
func HandleAdminDedupSweep(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	n, err := getBillingService().RunDedupSweep(ctx)
	if err != nil {
		return writeBillingError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "converged_addresses": n})
}

// HandleAdminWebhookStats reports the webhook ingestion counters and when
// the maintenance sweeps last ran.
func HandleAdminWebhookStats(c *fiber.Ctx) error {
	stats, err := counter.WebhookStats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to load webhook stats"})
	}
	return c.JSON(fiber.Map{
		"webhooks": stats,
		"sweeps": fiber.Map{
			"last_expiry": counter.LastSweepRun(counter.SweepExpiry),
			"last_dedup":  counter.LastSweepRun(counter.SweepDedup),
		},
	})
}

// HandleAdminResetWebhookStats clears the webhook ingestion counters.
func HandleAdminResetWebhookStats(c *fiber.Ctx) error {
	if err := counter.ResetWebhook(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to reset webhook stats"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleAdminInvalidateLookups drops the cached provider catalog data so the
// next product or coupon read hits the provider again, e.g. after a price
// change in the provider dashboard.
func HandleAdminInvalidateLookups(c *fiber.Ctx) error {
	getBillingService().InvalidateLookups()
	return c.JSON(fiber.Map{"success": true})
}
