package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/stammtisch-app/stammtisch/app/models"
	"github.com/stammtisch-app/stammtisch/app/repository"
	"github.com/stammtisch-app/stammtisch/internal/pkg/session"
	"github.com/stammtisch-app/stammtisch/internal/pkg/usercontext"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a local account. A second registration with the
// same address is allowed; the dedup engine keeps the rows converged.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_data", "message": "malformed request body"})
	}

	user, err := models.CreateUser(strings.TrimSpace(req.Name), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_data", "message": err.Error()})
	}

	if err := repository.GetGlobalFactory().GetUserRepository().Create(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not create account"})
	}

	// A pre-existing profile for this address may already carry a paid
	// subscription; pull it over right away.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := getBillingService().SyncDuplicateProfiles(ctx, user.Email); err != nil {
		log.Warnf("register: duplicate sync for %s: %v", user.Email, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": user.ID, "name": user.Name, "email": user.Email})
}

// HandleLogin verifies credentials and opens a session.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_data", "message": "malformed request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	rows, err := repository.GetGlobalFactory().GetUserRepository().ListByEmail(email)
	if err != nil || len(rows) == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid credentials"})
	}

	var user *models.User
	for i := range rows {
		if rows[i].CheckPassword(req.Password) {
			user = &rows[i]
			break
		}
	}
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid credentials"})
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "session unavailable"})
	}
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyIsAdmin, user.IsAdmin())
	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not save session"})
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := repository.GetGlobalFactory().GetUserRepository().Update(user); err != nil {
		log.Warnf("login: update last login for user %d: %v", user.ID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := getBillingService().SyncDuplicateProfiles(ctx, user.Email); err != nil {
		log.Warnf("login: duplicate sync for %s: %v", user.Email, err)
	}

	return c.JSON(fiber.Map{"id": user.ID, "name": user.Name, "is_admin": user.IsAdmin()})
}

// HandleLogout destroys the session.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			log.Warnf("logout: destroy session: %v", err)
		}
	}
	return c.JSON(fiber.Map{"success": true})
}
