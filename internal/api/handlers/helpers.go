package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postcadence/internal/service"
)

const maxUploadBytes = 10 << 20

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var channelErr *service.ChannelPublishError
	switch {
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrAccountNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrPostNotEditable), errors.Is(err, service.ErrPublishInProcess):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrInvalidPost):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNoSlotAvailable):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &channelErr):
		return fiber.StatusBadGateway
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by a handler as {"error": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error(err.Error(), "path", c.Path())
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadBytes {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, "file is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
}

func GetOperator(c *fiber.Ctx) string {
	operator, _ := c.Locals("operator").(string)
	return operator
}
