package handlers

import (
	"github.com/gofiber/fiber/v3"

	"blueprint-annotator/internal/annotator/repository"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Repo        *repository.Repository
	Pages       *PageHandler
	Annotations *AnnotationHandler
	Sessions    *SessionHandler
}

// Register mounts the annotator API on app.
func Register(app *fiber.App, h Handlers) {
	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", Live)
	app.Get("/health/ready", Ready(h.Repo))
	app.Get("/docs", SwaggerUI)
	app.Get("/docs/openapi.yaml", OpenAPI)

	// ============================================================
	// Page Routes
	// ============================================================

	app.Post("/projects/:project/pages", h.Pages.Create)
	app.Get("/projects/:project/pages", h.Pages.List)
	app.Get("/pages/:id/meta", h.Pages.Meta)
	app.Get("/pages/:id/source", h.Pages.Source)
	app.Delete("/pages/:id", h.Pages.Delete)

	// ============================================================
	// Annotation Routes
	// ============================================================

	app.Get("/projects/:project/annotations", h.Annotations.List)
	app.Post("/projects/:project/annotations", h.Annotations.Create)
	app.Get("/projects/:project/overlay.svg", h.Annotations.Overlay)
	app.Patch("/annotations/:id", h.Annotations.Update)
	app.Delete("/annotations/:id", h.Annotations.Delete)

	// ============================================================
	// Canvas Session Routes
	// ============================================================

	app.Post("/sessions", h.Sessions.Create)
	sessions := app.Group("/sessions")
	sessions.Get("/:id", h.Sessions.Get)
	sessions.Delete("/:id", h.Sessions.Close)
	sessions.Post("/:id/layout", h.Sessions.Layout)
	sessions.Post("/:id/bounds", h.Sessions.Bounds)
	sessions.Post("/:id/tool", h.Sessions.Arm)
	sessions.Delete("/:id/tool", h.Sessions.Disarm)
	sessions.Post("/:id/pointer", h.Sessions.Pointer)
	sessions.Post("/:id/zoom", h.Sessions.Zoom)
	sessions.Post("/:id/drop", h.Sessions.Drop)
	sessions.Post("/:id/page", h.Sessions.Page)
}
