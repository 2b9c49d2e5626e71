package handlers

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/queue"
	"github.com/maheshrc27/postcadence/internal/service"
	"github.com/maheshrc27/postcadence/internal/transfer"
)

type PostHandler struct {
	s  service.PostService
	ps service.PublicationService
	q  queue.Enqueuer
}

func NewPostHandler(s service.PostService, ps service.PublicationService, q queue.Enqueuer) *PostHandler {
	return &PostHandler{s: s, ps: ps, q: q}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	var image []byte

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		pc.Title = c.FormValue("title")
		pc.Text = c.FormValue("text")
		pc.ImagePrompt = c.FormValue("image_prompt")
		pc.ImageURL = c.FormValue("image_url")
		if targets := c.FormValue("targets"); targets != "" {
			if err := json.Unmarshal([]byte(targets), &pc.Targets); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid targets")
			}
		}

		if fh, err := c.FormFile("image"); err == nil {
			image, err = readFormFile(fh)
			if err != nil {
				return err
			}
		}
	} else if err := c.BodyParser(&pc); err != nil {
		slog.Info(err.Error())
		return fiber.NewError(fiber.StatusBadRequest, "Unable to parse body")
	}

	post, delay, err := h.s.CreatePost(c.Context(), &pc, image)
	if err != nil {
		return err
	}

	// the cron scan still picks the post up if enqueueing fails
	if err := queue.EnqueuePost(c.Context(), h.q, queue.PublishPostPayload{PostID: post.ID}, delay); err != nil {
		slog.Error("unable to enqueue publish task", "post_id", post.ID, "error", err)
	}

	return c.Status(fiber.StatusCreated).JSON(transfer.PostScheduled{
		Post:  post,
		Delay: delay.String(),
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context())
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) PostInfo(c *fiber.Ctx) error {
	post, err := h.s.PostInfo(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var upd models.PostUpdate
	if err := c.BodyParser(&upd); err != nil {
		slog.Info(err.Error())
		return fiber.NewError(fiber.StatusBadRequest, "Unable to parse body")
	}

	post, err := h.s.Update(c.Context(), c.Params("id"), &upd)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PublishPost runs the publication of one post right away and reports the
// outcome, including failure details.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	summary, err := h.ps.PublishPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	slog.Info("manual publish", "post_id", summary.PostID, "operator", GetOperator(c), "status", summary.Status)
	return c.Status(fiber.StatusOK).JSON(summary)
}

func (h *PostHandler) UploadImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file provided")
	}
	data, err := readFormFile(fh)
	if err != nil {
		return err
	}

	url, err := h.s.UploadImage(c.Context(), data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(transfer.UploadResult{URL: url})
}
