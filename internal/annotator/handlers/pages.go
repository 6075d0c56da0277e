package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/pagecache"
	"blueprint-annotator/internal/annotator/repository"
	"blueprint-annotator/internal/annotator/service"
)

// ============================================================
// Page Handler
// ============================================================

type PageHandler struct {
	repo         *repository.Repository
	cache        *pagecache.Cache
	storage      *service.FileStorage
	fetchTimeout time.Duration
}

func NewPageHandler(repo *repository.Repository, cache *pagecache.Cache, storage *service.FileStorage, fetchTimeout time.Duration) *PageHandler {
	return &PageHandler{
		repo:         repo,
		cache:        cache,
		storage:      storage,
		fetchTimeout: fetchTimeout,
	}
}

type pageRequest struct {
	URI        string `json:"uri"`
	GroupName  string `json:"groupName"`
	PageNumber int    `json:"pageNumber"`
}

// Create registers a page, either by URI (JSON body) or by upload
// (multipart "file" field).
func (h *PageHandler) Create(c fiber.Ctx) error {
	projectID := c.Params("project")
	log.Printf("[PAGES] Create page for project %s", projectID)

	var req pageRequest
	uploaded := false
	if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "file required")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, pagecache.MaxSourceSize+1))
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read file"})
		}
		if len(data) > pagecache.MaxSourceSize {
			return c.Status(http.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file too large"})
		}
		if _, err := pagecache.DetectMedia(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data); err != nil {
			return fail(c, "PAGES", err)
		}

		uri, err := h.storage.SavePage(projectID, fileHeader.Filename, data)
		if err != nil {
			log.Printf("[PAGES] save upload error: %v", err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save file"})
		}
		req.URI = uri
		uploaded = true
		req.GroupName = c.FormValue("groupName")
		req.PageNumber, _ = strconv.Atoi(c.FormValue("pageNumber"))
	} else {
		if len(c.Body()) == 0 {
			return badRequest(c, "empty body")
		}
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return badRequest(c, "invalid json")
		}
	}

	page, err := h.repo.CreatePage(context.Background(), models.Page{
		ProjectID:  projectID,
		URI:        req.URI,
		GroupName:  req.GroupName,
		PageNumber: req.PageNumber,
	})
	if err != nil {
		if uploaded {
			if rmErr := h.storage.Remove(req.URI); rmErr != nil {
				log.Printf("[PAGES] remove orphaned upload %s: %v", req.URI, rmErr)
			}
		}
		return fail(c, "PAGES", err)
	}
	return c.Status(http.StatusCreated).JSON(page)
}

// List returns the project's pages, flat and grouped by plan category.
func (h *PageHandler) List(c fiber.Ctx) error {
	pages, err := h.repo.ListPages(context.Background(), c.Params("project"))
	if err != nil {
		return fail(c, "PAGES", err)
	}
	return c.JSON(fiber.Map{
		"pages":  pages,
		"groups": models.GroupPages(pages),
	})
}

func (h *PageHandler) resolve(c fiber.Ctx) (*models.Page, *pagecache.Entry, error) {
	page, err := h.repo.GetPage(context.Background(), c.Params("id"))
	if err != nil {
		return nil, nil, err
	}
	if entry, ok := h.cache.Lookup(page.URI); ok {
		return page, entry, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.fetchTimeout)
	defer cancel()
	entry, err := h.cache.Resolve(ctx, page.URI)
	if err != nil {
		return page, nil, err
	}
	return page, entry, nil
}

// Meta resolves the page source and reports its media type and aspect
// ratio.
func (h *PageHandler) Meta(c fiber.Ctx) error {
	page, entry, err := h.resolve(c)
	if err != nil {
		return fail(c, "PAGES", err)
	}
	return c.JSON(fiber.Map{
		"page":   page,
		"source": entry,
	})
}

// Source serves the raw page bytes.
func (h *PageHandler) Source(c fiber.Ctx) error {
	_, entry, err := h.resolve(c)
	if err != nil {
		return fail(c, "PAGES", err)
	}

	contentType := entry.ContentType
	if contentType == "" {
		if entry.MediaType == models.MediaDocument {
			contentType = "application/pdf"
		} else {
			contentType = http.DetectContentType(entry.Data())
		}
	}
	c.Set("Content-Type", contentType)
	c.Set("Cache-Control", "private, max-age=3600")
	return c.Send(entry.Data())
}

// Delete removes the page and its annotations, and evicts its source so
// a later upload under the same URI is fetched again.
func (h *PageHandler) Delete(c fiber.Ctx) error {
	ctx := context.Background()
	page, err := h.repo.GetPage(ctx, c.Params("id"))
	if err != nil {
		return fail(c, "PAGES", err)
	}
	if err := h.repo.DeletePage(ctx, page.ID); err != nil {
		return fail(c, "PAGES", err)
	}
	h.cache.Evict(page.URI)
	if h.storage.IsUpload(page.ProjectID, page.URI) {
		if err := h.storage.Remove(page.URI); err != nil {
			log.Printf("[PAGES] remove file %s: %v", page.URI, err)
		}
	}
	return c.SendStatus(http.StatusNoContent)
}
