package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/stammtisch-app/stammtisch/app/models"
	"github.com/stammtisch-app/stammtisch/app/repository"
	"github.com/stammtisch-app/stammtisch/internal/pkg/entitlements"
	"github.com/stammtisch-app/stammtisch/internal/pkg/usercontext"
	"github.com/stammtisch-app/stammtisch/internal/pkg/utils"
)

// HandleGetMe returns the authenticated user's account, subscription state
// and capabilities. A lapsed grace period is expired on the way, so the
// response never claims access the user no longer has.
func HandleGetMe(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(usercontext.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to load user"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hasAccess, err := getBillingService().EnsureAccess(ctx, user)
	if err != nil {
		return writeBillingError(c, err)
	}

	unread, err := repository.GetGlobalFactory().GetNotificationRepository().CountUnread(user.ID)
	if err != nil {
		unread = 0
	}

	return c.JSON(fiber.Map{
		"id":                   user.ID,
		"name":                 user.Name,
		"email":                user.Email,
		"avatar_url":           utils.GetGravatarURL(user.Email, 200),
		"is_admin":             user.Role == models.ROLE_ADMIN,
		"created_at":           user.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at":        formatTimePtr(user.LastLoginAt),
		"has_paid_access":      hasAccess,
		"subscription":         subscriptionJSON(user),
		"capabilities":         entitlements.ForUser(user, time.Now()),
		"unread_notifications": unread,
	})
}

// HandleListNotifications returns the user's notifications, newest first.
func HandleListNotifications(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	rows, err := repository.GetGlobalFactory().GetNotificationRepository().ListByUser(usercontext.GetUserID(c), offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to load notifications"})
	}
	return c.JSON(fiber.Map{"notifications": rows})
}
