package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/pkg/utils"
)

const sessionDuration = 24 * time.Hour

type AuthHandler struct {
	cfg config.Config
}

func NewAuthHandler(cfg config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// Login turns an authenticated bearer request into a session cookie for the
// dashboard.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	token, err := utils.GenerateToken(h.cfg.SecretKey, GetOperator(c), sessionDuration)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   false,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(sessionDuration),
	})
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"operator": GetOperator(c)})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:   h.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return c.SendStatus(fiber.StatusNoContent)
}
