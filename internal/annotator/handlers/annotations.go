package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/pagecache"
	"blueprint-annotator/internal/annotator/render"
	"blueprint-annotator/internal/annotator/repository"
	"blueprint-annotator/internal/annotator/viewport"
)

// ============================================================
// Annotation Handler
// ============================================================

type AnnotationHandler struct {
	repo         *repository.Repository
	cache        *pagecache.Cache
	defaultRatio float64
	fetchTimeout time.Duration
}

func NewAnnotationHandler(repo *repository.Repository, cache *pagecache.Cache, defaultRatio float64, fetchTimeout time.Duration) *AnnotationHandler {
	return &AnnotationHandler{
		repo:         repo,
		cache:        cache,
		defaultRatio: defaultRatio,
		fetchTimeout: fetchTimeout,
	}
}

// pageQuery reads ?page=; absent means the project's default plan.
func pageQuery(c fiber.Ctx) *string {
	return models.String(c.Query("page"))
}

func (h *AnnotationHandler) List(c fiber.Ctx) error {
	list, err := h.repo.ListAnnotations(context.Background(), c.Params("project"), pageQuery(c))
	if err != nil {
		return fail(c, "ANNOTATIONS", err)
	}
	return c.JSON(list)
}

// Create validates and stores an annotation. Out-of-bounds geometry is
// rejected with 422 and nothing is stored.
func (h *AnnotationHandler) Create(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return badRequest(c, "empty body")
	}
	var a models.Annotation
	if err := json.Unmarshal(c.Body(), &a); err != nil {
		return badRequest(c, "invalid json")
	}
	a.ProjectID = c.Params("project")
	if a.PageRef == nil {
		a.PageRef = pageQuery(c)
	}

	created, err := h.repo.CreateAnnotation(context.Background(), a)
	if err != nil {
		return fail(c, "ANNOTATIONS", err)
	}
	log.Printf("[ANNOTATIONS] created %s (%s) in project %s", created.ID, created.Shape, created.ProjectID)
	return c.Status(http.StatusCreated).JSON(created)
}

// Update changes completion state or colour. Geometry cannot be edited.
func (h *AnnotationHandler) Update(c fiber.Ctx) error {
	var patch repository.AnnotationPatch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return badRequest(c, "invalid json")
	}
	updated, err := h.repo.UpdateAnnotation(context.Background(), c.Params("id"), patch)
	if err != nil {
		return fail(c, "ANNOTATIONS", err)
	}
	return c.JSON(updated)
}

func (h *AnnotationHandler) Delete(c fiber.Ctx) error {
	if err := h.repo.DeleteAnnotation(context.Background(), c.Params("id")); err != nil {
		return fail(c, "ANNOTATIONS", err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ============================================================
// Overlay
// ============================================================

// Overlay renders a page's annotations as SVG for a given container size
// and optional zoom/pan, fitted exactly like the live image.
func (h *AnnotationHandler) Overlay(c fiber.Ctx) error {
	width, _, err := queryFloat(c, "width")
	if err != nil || width <= 0 {
		return badRequest(c, "width must be a positive number")
	}
	height, _, err := queryFloat(c, "height")
	if err != nil || height <= 0 {
		return badRequest(c, "height must be a positive number")
	}
	zoom, hasZoom, err := queryFloat(c, "zoom")
	if err != nil {
		return badRequest(c, err.Error())
	}
	panX, hasPanX, err := queryFloat(c, "panX")
	if err != nil {
		return badRequest(c, err.Error())
	}
	panY, hasPanY, err := queryFloat(c, "panY")
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := context.Background()
	page := pageQuery(c)
	ratio := h.defaultRatio
	if page != nil {
		p, err := h.repo.GetPage(ctx, *page)
		if err != nil {
			return fail(c, "ANNOTATIONS", err)
		}
		entry, err := h.resolve(p.URI)
		if err != nil {
			return fail(c, "ANNOTATIONS", err)
		}
		ratio = entry.AspectRatio
	}

	list, err := h.repo.ListAnnotations(ctx, c.Params("project"), page)
	if err != nil {
		return fail(c, "ANNOTATIONS", err)
	}

	vp := viewport.New()
	vp.Layout(width, height, ratio)
	if hasZoom {
		vp.SetZoom(zoom)
	}
	if hasPanX || hasPanY {
		pan := vp.Pan()
		if !hasPanX {
			panX = pan.X
		}
		if !hasPanY {
			panY = pan.Y
		}
		vp.PanBy(panX-pan.X, panY-pan.Y)
	}

	var opts render.SVGOptions
	if page != nil && c.Query("image") == "1" {
		opts.ImageHref = "/pages/" + *page + "/source"
	}

	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(render.SVG(list, vp, opts))
}

func (h *AnnotationHandler) resolve(uri string) (*pagecache.Entry, error) {
	if entry, ok := h.cache.Lookup(uri); ok {
		return entry, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.fetchTimeout)
	defer cancel()
	return h.cache.Resolve(ctx, uri)
}

func queryFloat(c fiber.Ctx, key string) (float64, bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number", key)
	}
	return v, true, nil
}
