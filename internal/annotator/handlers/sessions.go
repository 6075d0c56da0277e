package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"

	"blueprint-annotator/internal/annotator/gesture"
	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/repository"
	"blueprint-annotator/internal/annotator/service"
	"blueprint-annotator/internal/common/middleware"
)

// ============================================================
// Session Handler
// ============================================================

// SessionHandler exposes canvas sessions over HTTP and acts as their
// host: finished annotations are persisted here and shown on the canvas
// once stored.
type SessionHandler struct {
	sessions     *service.Manager
	repo         *repository.Repository
	fetchTimeout time.Duration
}

func NewSessionHandler(sessions *service.Manager, repo *repository.Repository, fetchTimeout time.Duration) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		repo:         repo,
		fetchTimeout: fetchTimeout,
	}
}

type createSessionRequest struct {
	ProjectID string  `json:"projectId"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	PageID    string  `json:"pageId"`
}

type sizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type toolRequest struct {
	Shape string `json:"shape"`
}

type pointerRequest struct {
	Type service.PointerKind `json:"type"`
	X    float64             `json:"x"`
	Y    float64             `json:"y"`
}

type dropRequest struct {
	Type service.DropKind   `json:"type"`
	Item models.CatalogItem `json:"item"`
	X    float64            `json:"x"`
	Y    float64            `json:"y"`
}

type pageRequestBody struct {
	PageID string `json:"pageId"`
}

func decode(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return errors.New("empty body")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

func (h *SessionHandler) session(c fiber.Ctx) (*service.Session, error) {
	return h.sessions.Resolve(c.Params("id"))
}

// respond returns the drained events together with the new state.
func (h *SessionHandler) respond(c fiber.Ctx, s *service.Session, status int) error {
	events := h.persist(s, s.Drain())
	return c.Status(status).JSON(fiber.Map{
		"events":  events,
		"session": s.Snapshot(),
	})
}

// persist stores every finished annotation among events. A store failure
// turns the event into a rejection; the canvas only shows what was saved.
func (h *SessionHandler) persist(s *service.Session, events []gesture.Event) []gesture.Event {
	out := make([]gesture.Event, 0, len(events))
	for _, ev := range events {
		if ev.Annotation != nil && (ev.Kind == gesture.EventAnnotationDrawn || ev.Kind == gesture.EventAnnotationDropped) {
			a := *ev.Annotation
			a.ProjectID = s.ProjectID
			a.PageRef = s.PageRef()

			created, err := h.repo.CreateAnnotation(context.Background(), a)
			if err != nil {
				log.Printf("[SESSION] %s: store annotation: %v", s.ID, err)
				ev = gesture.Event{Kind: gesture.EventAnnotationRejected, Shape: a.Shape, Message: err.Error()}
			} else {
				ev.Annotation = created
				s.AddAnnotation(*created)
			}
		}
		out = append(out, ev)
	}
	return out
}

func (h *SessionHandler) showPage(s *service.Session, pageID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.fetchTimeout)
	defer cancel()

	if _, err := s.GoToPage(ctx, pageID); err != nil {
		return err
	}
	list, err := h.repo.ListAnnotations(context.Background(), s.ProjectID, &pageID)
	if err != nil {
		return err
	}
	s.SetAnnotations(list)
	return nil
}

// Create opens a canvas on a project's pages.
func (h *SessionHandler) Create(c fiber.Ctx) error {
	var req createSessionRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.ProjectID == "" {
		return badRequest(c, "projectId required")
	}

	pages, err := h.repo.ListPages(context.Background(), req.ProjectID)
	if err != nil {
		return fail(c, "SESSION", err)
	}

	s := h.sessions.Issue(req.ProjectID)
	s.SetPages(pages)
	if req.Width > 0 && req.Height > 0 {
		s.Layout(req.Width, req.Height)
	}

	if req.PageID != "" {
		if err := h.showPage(s, req.PageID); err != nil {
			h.sessions.Close(s.ID)
			return fail(c, "SESSION", err)
		}
	} else {
		list, err := h.repo.ListAnnotations(context.Background(), req.ProjectID, nil)
		if err != nil {
			h.sessions.Close(s.ID)
			return fail(c, "SESSION", err)
		}
		s.SetAnnotations(list)
	}

	c.Set(middleware.SessionHeader, s.ID)
	return h.respond(c, s, http.StatusCreated)
}

func (h *SessionHandler) Get(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	return c.JSON(s.Snapshot())
}

func (h *SessionHandler) Close(c fiber.Ctx) error {
	if !h.sessions.Close(c.Params("id")) {
		return fail(c, "SESSION", service.ErrSessionNotFound)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *SessionHandler) Layout(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	var req sizeRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	s.Layout(req.Width, req.Height)
	return h.respond(c, s, http.StatusOK)
}

// Bounds records where the canvas sits on the host screen, for drops.
func (h *SessionHandler) Bounds(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	var req models.Rect
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	s.SetCanvasBounds(req)
	return h.respond(c, s, http.StatusOK)
}

// Arm selects a drawing tool for the next gesture.
func (h *SessionHandler) Arm(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	var req toolRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	shape, err := models.ParseShape(req.Shape)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.Arm(shape); err != nil {
		return fail(c, "SESSION", err)
	}
	return h.respond(c, s, http.StatusOK)
}

func (h *SessionHandler) Disarm(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	if err := s.Disarm(); err != nil {
		return fail(c, "SESSION", err)
	}
	return h.respond(c, s, http.StatusOK)
}

func (h *SessionHandler) Pointer(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	var req pointerRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.Pointer(req.Type, req.X, req.Y); err != nil {
		return fail(c, "SESSION", err)
	}
	return h.respond(c, s, http.StatusOK)
}

func (h *SessionHandler) Zoom(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	var req service.ZoomRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.Zoom(req); err != nil {
		return badRequest(c, err.Error())
	}
	return h.respond(c, s, http.StatusOK)
}

func (h *SessionHandler) Drop(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	var req dropRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if _, err := s.Drop(req.Type, req.Item, req.X, req.Y); err != nil {
		// rejected drops are reported through the events
		if status := statusFor(err); status != http.StatusUnprocessableEntity {
			return fail(c, "SESSION", err)
		}
	}
	return h.respond(c, s, http.StatusOK)
}

// Page switches the canvas to another blueprint page.
func (h *SessionHandler) Page(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, "SESSION", err)
	}
	var req pageRequestBody
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.showPage(s, req.PageID); err != nil {
		return fail(c, "SESSION", err)
	}
	return h.respond(c, s, http.StatusOK)
}
