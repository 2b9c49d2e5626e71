package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postcadence/internal/transfer"
)

// LinkedInProfiler resolves a configured LinkedIn account to its member.
type LinkedInProfiler interface {
	Profile(ctx context.Context, account string) (*transfer.LinkedInProfile, error)
}

type AccountHandler struct {
	linkedin LinkedInProfiler
}

func NewAccountHandler(linkedin LinkedInProfiler) *AccountHandler {
	return &AccountHandler{linkedin: linkedin}
}

// LinkedInProfile checks that an account's token still works by resolving it
// to its urn:li:person identifier.
func (h *AccountHandler) LinkedInProfile(c *fiber.Ctx) error {
	profile, err := h.linkedin.Profile(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(profile)
}
