package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stammtisch-app/stammtisch/app/models"
	"github.com/stammtisch-app/stammtisch/app/repository"
	"github.com/stammtisch-app/stammtisch/internal/pkg/session"
	"github.com/stammtisch-app/stammtisch/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request.
// The subscription status is read from the database, not cached in the
// session: webhooks change it behind the user's back.
func UserContextMiddleware(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return anonymous(c)
	}

	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		return anonymous(c)
	}

	id, ok := userID.(uint)
	if !ok {
		return anonymous(c)
	}

	username := session.GetSessionValue(c, usercontext.KeyUsername)
	isAdmin := sess.Get(usercontext.KeyIsAdmin)

	status := string(models.SubscriptionFree)
	if user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(id); err == nil {
		status = string(user.SubscriptionStatus)
	}

	c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
		UserID:     id,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin != nil && isAdmin.(bool),
		Status:     status,
	})

	return c.Next()
}

func anonymous(c *fiber.Ctx) error {
	c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	return c.Next()
}
