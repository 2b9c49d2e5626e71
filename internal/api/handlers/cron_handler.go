package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/transfer"
)

// DuePostRunner is implemented by the due-post job.
type DuePostRunner interface {
	RunDuePosts(ctx context.Context, ref time.Time) ([]models.PublishSummary, error)
}

type CronHandler struct {
	runner DuePostRunner
	now    func() time.Time
}

func NewCronHandler(runner DuePostRunner) *CronHandler {
	return &CronHandler{runner: runner, now: time.Now}
}

// RunDuePosts publishes every due post and returns one entry per post. Post
// failures are entries in the list, not request errors.
func (h *CronHandler) RunDuePosts(c *fiber.Ctx) error {
	ref := h.now().UTC()
	results, err := h.runner.RunDuePosts(c.UserContext(), ref)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(transfer.DueRunResult{
		RanAt:   ref.Format(time.RFC3339),
		Results: results,
	})
}
