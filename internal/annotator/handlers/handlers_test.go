package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/go-cmp/cmp"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"blueprint-annotator/internal/annotator/gesture"
	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/pagecache"
	"blueprint-annotator/internal/annotator/repository"
	"blueprint-annotator/internal/annotator/service"
	"blueprint-annotator/internal/common/middleware"
)

type testEnv struct {
	app  *fiber.App
	db   *sql.DB
	root string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "blueprints")

	db, err := repository.OpenSQLite(filepath.Join(dir, "annotator.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	repo := repository.New(db)
	if err := repo.Init(t.Context(), ""); err != nil {
		t.Fatal(err)
	}

	cache := pagecache.New(&pagecache.MultiFetcher{
		Remote: pagecache.NewHTTPFetcher(time.Second),
		Local:  pagecache.NewFileFetcher(root),
	}, 1.4142)
	storage := service.NewFileStorage(root)
	manager := service.NewManager(cache, 1.4142, time.Hour)

	app := fiber.New()
	Register(app, Handlers{
		Repo:        repo,
		Pages:       NewPageHandler(repo, cache, storage, time.Second),
		Annotations: NewAnnotationHandler(repo, cache, 1.4142, time.Second),
		Sessions:    NewSessionHandler(manager, repo, time.Second),
	})
	return &testEnv{app: app, db: db, root: root}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// writePlan puts a 200x100 image under the blueprint root.
func (e *testEnv) writePlan(t *testing.T, name string) {
	t.Helper()
	target := filepath.Join(e.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, pngBytes(t, 200, 100), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func (e *testEnv) createPage(t *testing.T, project, uri string) models.Page {
	t.Helper()
	resp, data := e.do(t, http.MethodPost, "/projects/"+project+"/pages", fiber.Map{
		"uri":       uri,
		"groupName": "Architectural",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create page: %d %s", resp.StatusCode, data)
	}
	var page models.Page
	decodeJSON(t, data, &page)
	return page
}

func TestHealthAndDocs(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/health/live", "/health/ready", "/docs", "/docs/openapi.yaml"} {
		resp, data := e.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: %d %s", path, resp.StatusCode, data)
		}
	}
}

func TestPageMetaAndSource(t *testing.T) {
	e := newEnv(t)
	e.writePlan(t, "plans/ground.png")
	page := e.createPage(t, "p1", "plans/ground.png")
	if page.PageNumber != 1 || page.ID == "" {
		t.Errorf("page = %+v", page)
	}

	resp, data := e.do(t, http.MethodGet, "/pages/"+page.ID+"/meta", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("meta: %d %s", resp.StatusCode, data)
	}
	var meta struct {
		Source pagecache.Entry `json:"source"`
	}
	decodeJSON(t, data, &meta)
	if meta.Source.AspectRatio != 2 || meta.Source.MediaType != models.MediaImage {
		t.Errorf("source = %+v", meta.Source)
	}

	resp, data = e.do(t, http.MethodGet, "/pages/"+page.ID+"/source", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("source: %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.Equal(data, pngBytes(t, 200, 100)) {
		t.Errorf("source bytes differ")
	}

	resp, data = e.do(t, http.MethodGet, "/projects/p1/pages", nil)
	var list struct {
		Pages  []models.Page      `json:"pages"`
		Groups []models.PageGroup `json:"groups"`
	}
	decodeJSON(t, data, &list)
	if resp.StatusCode != http.StatusOK || len(list.Pages) != 1 || len(list.Groups) != 1 {
		t.Errorf("list: %d %s", resp.StatusCode, data)
	}
}

func TestPageErrors(t *testing.T) {
	e := newEnv(t)
	missing := e.createPage(t, "p1", "plans/missing.png")

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"no uri", http.MethodPost, "/projects/p1/pages", fiber.Map{"groupName": "x"}, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/projects/p1/pages", nil, http.StatusBadRequest},
		{"unknown page", http.MethodGet, "/pages/nope/meta", nil, http.StatusNotFound},
		{"unfetchable source", http.MethodGet, "/pages/" + missing.ID + "/meta", nil, http.StatusBadGateway},
		{"delete unknown", http.MethodDelete, "/pages/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := e.do(t, tt.method, tt.target, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.want, data)
			}
		})
	}
}

func TestUploadAndDeletePage(t *testing.T) {
	e := newEnv(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "level-1.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(pngBytes(t, 300, 100))
	w.WriteField("groupName", "Electrical")
	w.WriteField("pageNumber", "3")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/projects/p1/pages", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, data := e.send(t, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: %d %s", resp.StatusCode, data)
	}
	var page models.Page
	decodeJSON(t, data, &page)
	if !strings.HasPrefix(page.URI, "p1/") || page.GroupName != "Electrical" || page.PageNumber != 3 {
		t.Errorf("page = %+v", page)
	}

	resp, data = e.do(t, http.MethodGet, "/pages/"+page.ID+"/meta", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"aspectRatio":3`) {
		t.Errorf("meta: %d %s", resp.StatusCode, data)
	}

	resp, _ = e.do(t, http.MethodDelete, "/pages/"+page.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(e.root, filepath.FromSlash(page.URI))); !os.IsNotExist(err) {
		t.Errorf("uploaded file still present: %v", err)
	}
	resp, _ = e.do(t, http.MethodGet, "/pages/"+page.ID+"/meta", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("meta after delete: %d", resp.StatusCode)
	}
}

func TestFailedUploadLeavesNoFile(t *testing.T) {
	e := newEnv(t)
	e.db.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "level-2.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(pngBytes(t, 300, 100))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/projects/p1/pages", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, data := e.send(t, req)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("upload with closed db: %d %s", resp.StatusCode, data)
	}

	entries, err := os.ReadDir(filepath.Join(e.root, "p1"))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("orphaned upload left behind: %v", entries[0].Name())
	}
}

func TestAnnotationCRUD(t *testing.T) {
	e := newEnv(t)
	e.writePlan(t, "plans/ground.png")
	page := e.createPage(t, "p1", "plans/ground.png")
	base := "/projects/p1/annotations?page=" + page.ID

	resp, data := e.do(t, http.MethodPost, base, fiber.Map{"shape": "pin", "x": 120, "y": 50})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("out of bounds: %d %s", resp.StatusCode, data)
	}
	resp, data = e.do(t, http.MethodPost, base, fiber.Map{"shape": "hexagon", "x": 1, "y": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad shape: %d %s", resp.StatusCode, data)
	}

	resp, data = e.do(t, http.MethodPost, base, fiber.Map{"shape": "pin", "x": 50, "y": 50})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, data)
	}
	var created models.Annotation
	decodeJSON(t, data, &created)
	if created.PageRef == nil || *created.PageRef != page.ID || created.ProjectID != "p1" {
		t.Errorf("created = %+v", created)
	}

	resp, data = e.do(t, http.MethodPatch, "/annotations/"+created.ID, fiber.Map{"completed": true})
	var updated models.Annotation
	decodeJSON(t, data, &updated)
	if resp.StatusCode != http.StatusOK || !updated.Completed {
		t.Errorf("update: %d %s", resp.StatusCode, data)
	}

	// the default plan is a separate list
	_, data = e.do(t, http.MethodGet, "/projects/p1/annotations", nil)
	var none []models.Annotation
	decodeJSON(t, data, &none)
	if len(none) != 0 {
		t.Errorf("default plan = %+v", none)
	}

	resp, _ = e.do(t, http.MethodDelete, "/annotations/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodDelete, "/annotations/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: %d", resp.StatusCode)
	}
}

func TestOverlay(t *testing.T) {
	e := newEnv(t)
	e.writePlan(t, "plans/ground.png")
	page := e.createPage(t, "p1", "plans/ground.png")
	e.do(t, http.MethodPost, "/projects/p1/annotations?page="+page.ID, fiber.Map{"shape": "pin", "x": 50, "y": 50})

	resp, data := e.do(t, http.MethodGet, "/projects/p1/overlay.svg?page="+page.ID+"&width=400&height=600&image=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("overlay: %d %s", resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	svg := string(data)
	// base 400x200 centred at y=200, so the pin sits at (200, 300)
	for _, want := range []string{`cx="200" cy="300"`, `href="/pages/` + page.ID + `/source"`} {
		if !strings.Contains(svg, want) {
			t.Errorf("overlay missing %q:\n%s", want, svg)
		}
	}

	resp, _ = e.do(t, http.MethodGet, "/projects/p1/overlay.svg?width=0&height=600", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("zero width: %d", resp.StatusCode)
	}
}

type sessionResponse struct {
	Events  []gesture.Event  `json:"events"`
	Session service.Snapshot `json:"session"`
}

func TestSessionDrawPersists(t *testing.T) {
	e := newEnv(t)
	e.writePlan(t, "plans/ground.png")
	page := e.createPage(t, "p1", "plans/ground.png")
	e.do(t, http.MethodPost, "/projects/p1/annotations?page="+page.ID, fiber.Map{"shape": "pin", "x": 10, "y": 10})

	resp, data := e.do(t, http.MethodPost, "/sessions", fiber.Map{
		"projectId": "p1",
		"width":     400,
		"height":    600,
		"pageId":    page.ID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: %d %s", resp.StatusCode, data)
	}
	id := resp.Header.Get(middleware.SessionHeader)
	var created sessionResponse
	decodeJSON(t, data, &created)
	if id == "" || created.Session.ID != id || len(created.Session.Marks) != 1 {
		t.Fatalf("session = %s", data)
	}
	if created.Session.Viewport.BaseHeight != 200 || created.Session.Viewport.Pan.Y != 200 {
		t.Errorf("viewport = %+v", created.Session.Viewport)
	}

	resp, data = e.do(t, http.MethodPost, "/sessions/"+id+"/tool", fiber.Map{"shape": "rectangle"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("arm: %d %s", resp.StatusCode, data)
	}

	var last sessionResponse
	for _, step := range []fiber.Map{
		{"type": "down", "x": 100, "y": 250},
		{"type": "move", "x": 150, "y": 280},
		{"type": "up", "x": 200, "y": 300},
	} {
		resp, data = e.do(t, http.MethodPost, "/sessions/"+id+"/pointer", step)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("pointer %v: %d %s", step, resp.StatusCode, data)
		}
		last = sessionResponse{}
		decodeJSON(t, data, &last)
	}

	var drawn *models.Annotation
	for _, ev := range last.Events {
		if ev.Kind == gesture.EventAnnotationDrawn {
			drawn = ev.Annotation
		}
	}
	if drawn == nil || drawn.ID == "" || drawn.PageRef == nil || *drawn.PageRef != page.ID {
		t.Fatalf("drawn event = %+v", last.Events)
	}
	if len(last.Session.Marks) != 2 || last.Session.DrawingMode {
		t.Errorf("after draw: %d marks, drawing mode %v", len(last.Session.Marks), last.Session.DrawingMode)
	}

	_, data = e.do(t, http.MethodGet, "/projects/p1/annotations?page="+page.ID, nil)
	var stored []models.Annotation
	decodeJSON(t, data, &stored)
	if len(stored) != 2 {
		t.Fatalf("stored = %+v", stored)
	}
	wantBox := []float64{25, 25, 25, 25}
	gotBox := []float64{*stored[1].X, *stored[1].Y, *stored[1].Width, *stored[1].Height}
	if d := cmp.Diff(wantBox, gotBox); d != "" {
		t.Errorf("stored rectangle mismatch (-want +got):\n%s", d)
	}
}

func TestSessionZoomAndDrop(t *testing.T) {
	e := newEnv(t)
	e.writePlan(t, "plans/ground.png")
	page := e.createPage(t, "p1", "plans/ground.png")

	resp, _ := e.do(t, http.MethodPost, "/sessions", fiber.Map{"projectId": "p1", "width": 400, "height": 600, "pageId": page.ID})
	id := resp.Header.Get(middleware.SessionHeader)

	resp, data := e.do(t, http.MethodPost, "/sessions/"+id+"/zoom", fiber.Map{"action": "in"})
	var zoomed sessionResponse
	decodeJSON(t, data, &zoomed)
	if resp.StatusCode != http.StatusOK || zoomed.Session.Viewport.Zoom != 1.25 {
		t.Errorf("zoom in: %d %s", resp.StatusCode, data)
	}
	resp, _ = e.do(t, http.MethodPost, "/sessions/"+id+"/zoom", fiber.Map{"action": "spin"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown zoom action: %d", resp.StatusCode)
	}
	e.do(t, http.MethodPost, "/sessions/"+id+"/zoom", fiber.Map{"action": "set", "value": 1})

	e.do(t, http.MethodPost, "/sessions/"+id+"/bounds", fiber.Map{"x": 0, "y": 0, "width": 400, "height": 600})
	item := fiber.Map{"id": "cat-1", "label": "Socket"}
	e.do(t, http.MethodPost, "/sessions/"+id+"/drop", fiber.Map{"type": "begin", "item": item, "x": 500, "y": 10})
	resp, data = e.do(t, http.MethodPost, "/sessions/"+id+"/drop", fiber.Map{"type": "end", "item": item, "x": 200, "y": 300})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("drop: %d %s", resp.StatusCode, data)
	}
	var dropped sessionResponse
	decodeJSON(t, data, &dropped)
	if len(dropped.Events) == 0 || dropped.Events[len(dropped.Events)-1].Kind != gesture.EventAnnotationDropped {
		t.Fatalf("drop events = %+v", dropped.Events)
	}
	a := dropped.Events[len(dropped.Events)-1].Annotation
	if a == nil || a.ID == "" || a.CatalogItemID != "cat-1" {
		t.Errorf("dropped annotation = %+v", a)
	}
}

func TestSessionErrors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"missing project", http.MethodPost, "/sessions", fiber.Map{"width": 10}, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/sessions", nil, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/sessions/nope", nil, http.StatusNotFound},
		{"close unknown", http.MethodDelete, "/sessions/nope", nil, http.StatusNotFound},
		{"pointer unknown", http.MethodPost, "/sessions/nope/pointer", fiber.Map{"type": "down"}, http.StatusNotFound},
		{"page not in project", http.MethodPost, "/sessions", fiber.Map{"projectId": "p1", "pageId": "nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := e.do(t, tt.method, tt.target, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.want, data)
			}
		})
	}

	resp, _ := e.do(t, http.MethodPost, "/sessions", fiber.Map{"projectId": "p1"})
	id := resp.Header.Get(middleware.SessionHeader)
	resp, data := e.do(t, http.MethodPost, "/sessions/"+id+"/tool", fiber.Map{"shape": "hexagon"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad tool: %d %s", resp.StatusCode, data)
	}
	resp, data = e.do(t, http.MethodPost, "/sessions/"+id+"/drop", fiber.Map{"type": "end", "x": 10, "y": 10})
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(data), gesture.ErrNoDrop.Error()) {
		t.Errorf("end without drag: %d %s", resp.StatusCode, data)
	}
	resp, _ = e.do(t, http.MethodDelete, "/sessions/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("close: %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodGet, "/sessions/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after close: %d", resp.StatusCode)
	}
}
