package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"blueprint-annotator/internal/annotator/drawing"
	"blueprint-annotator/internal/annotator/gesture"
	"blueprint-annotator/internal/annotator/pagecache"
	"blueprint-annotator/internal/annotator/repository"
	"blueprint-annotator/internal/annotator/service"
)

// ============================================================
// Error mapping
// ============================================================

func statusFor(err error) int {
	var fetchErr *pagecache.FetchError
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, gesture.ErrGestureActive),
		errors.Is(err, gesture.ErrNotArmed),
		errors.Is(err, gesture.ErrNoDrop):
		return http.StatusConflict
	case errors.Is(err, drawing.ErrOutOfBounds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, drawing.ErrInvalidAnnotation),
		errors.Is(err, repository.ErrInvalidPage),
		errors.Is(err, drawing.ErrNotReady),
		errors.Is(err, pagecache.ErrUnsupportedMedia):
		return http.StatusBadRequest
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail writes {"error": ...}. Internal errors are logged and hidden.
func fail(c fiber.Ctx, tag string, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[%s] %s %s: %v", tag, c.Method(), c.Path(), err)
		msg = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
