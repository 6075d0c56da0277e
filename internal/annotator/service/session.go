package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"blueprint-annotator/internal/annotator/drawing"
	"blueprint-annotator/internal/annotator/gesture"
	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/pagecache"
	"blueprint-annotator/internal/annotator/render"
	"blueprint-annotator/internal/annotator/viewport"
)

var ErrPageNotFound = errors.New("page not in session")

// ============================================================
// Canvas Session
// ============================================================

// Session is one annotation canvas: a viewport, the drawing engine and
// gesture router working on it, and the pages of one project. All input
// is serialised through the session lock.
type Session struct {
	ID        string
	ProjectID string

	mu           sync.Mutex
	vp           *viewport.Viewport
	router       *gesture.Router
	overlay      *render.Overlay
	cache        *pagecache.Cache
	defaultRatio float64

	pages     []models.Page
	page      *models.Page
	entry     *pagecache.Entry
	loadErr   string
	container models.Size
	version   int
	events    []gesture.Event
	lastSeen  time.Time
	now       func() time.Time
}

func NewSession(id, projectID string, cache *pagecache.Cache, defaultRatio float64) *Session {
	vp := viewport.New()
	s := &Session{
		ID:           id,
		ProjectID:    projectID,
		vp:           vp,
		router:       gesture.NewRouter(vp, drawing.NewEngine(vp)),
		overlay:      render.NewOverlay(vp),
		cache:        cache,
		defaultRatio: defaultRatio,
		lastSeen:     time.Now(),
		now:          time.Now,
	}
	s.router.SetHitTester(s.overlay)
	s.router.OnEvent(func(ev gesture.Event) { s.events = append(s.events, ev) })
	vp.OnChange(func(models.ViewportState) { s.version++ })
	return s
}

// Snapshot is the read-only state handed to hosts.
type Snapshot struct {
	ID          string               `json:"id"`
	ProjectID   string               `json:"projectId"`
	Page        *models.Page         `json:"page,omitempty"`
	Source      *pagecache.Entry     `json:"source,omitempty"`
	LoadError   string               `json:"loadError,omitempty"`
	Groups      []models.PageGroup   `json:"groups"`
	Container   models.Size          `json:"container"`
	Viewport    models.ViewportState `json:"viewport"`
	ImageFrame  models.Rect          `json:"imageFrame"`
	Version     int                  `json:"version"`
	Mode        gesture.Mode         `json:"mode"`
	DrawingMode bool                 `json:"drawingMode"`
	Preview     *drawing.Preview     `json:"preview,omitempty"`
	Ghost       *gesture.Ghost       `json:"ghost,omitempty"`
	Marks       []render.Mark        `json:"marks"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := s.router.Mode()
	return Snapshot{
		ID:          s.ID,
		ProjectID:   s.ProjectID,
		Page:        s.page,
		Source:      s.entry,
		LoadError:   s.loadErr,
		Groups:      models.GroupPages(s.pages),
		Container:   s.container,
		Viewport:    s.vp.State(),
		ImageFrame:  render.ImageFrame(s.vp),
		Version:     s.version,
		Mode:        mode,
		DrawingMode: mode.DrawingMode(),
		Preview:     s.router.Preview(),
		Ghost:       s.router.Ghost(),
		Marks:       s.overlay.Marks(),
	}
}

// Drain returns and clears the events raised since the last call.
func (s *Session) Drain() []gesture.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func (s *Session) touch() {
	s.lastSeen = s.now()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// ============================================================
// Pages
// ============================================================

func (s *Session) SetPages(pages []models.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.pages = append(s.pages[:0:0], pages...)
}

// SetAnnotations replaces the annotations shown for the current page.
// The viewport is left untouched.
func (s *Session) SetAnnotations(list []models.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.SetAnnotations(list)
}

// AddAnnotation shows one more annotation, typically right after it was
// stored.
func (s *Session) AddAnnotation(a models.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.SetAnnotations(append(s.overlay.Annotations(), a))
}

// PageRef is the id of the visible page, or nil for the default plan.
func (s *Session) PageRef() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil
	}
	id := s.page.ID
	return &id
}

// GoToPage resolves the page source through the cache and shows it. On a
// failed fetch the previous page, pan and zoom stay as they were.
func (s *Session) GoToPage(ctx context.Context, pageID string) (*pagecache.Entry, error) {
	s.mu.Lock()
	var target *models.Page
	for i := range s.pages {
		if s.pages[i].ID == pageID {
			p := s.pages[i]
			target = &p
			break
		}
	}
	s.touch()
	s.mu.Unlock()

	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, pageID)
	}

	entry, ok := s.cache.Lookup(target.URI)
	if !ok {
		var err error
		entry, err = s.cache.Resolve(ctx, target.URI)
		if err != nil {
			s.mu.Lock()
			s.loadErr = err.Error()
			s.mu.Unlock()
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.page == nil || s.page.ID != target.ID
	before := s.vp.State()
	s.page = target
	s.entry = entry
	s.loadErr = ""
	if changed {
		s.overlay.SetAnnotations(nil)
	}
	if s.container.Width > 0 && s.container.Height > 0 {
		if changed {
			s.vp.Recenter(s.container.Width, s.container.Height, entry.AspectRatio)
		} else {
			s.vp.Layout(s.container.Width, s.container.Height, entry.AspectRatio)
		}
	}
	// a shape started on another page or layout must not be finished here
	if changed || s.vp.State() != before {
		s.router.Reset()
	}
	s.events = append(s.events, gesture.Event{Kind: gesture.EventPageChanged, PageID: target.ID})
	return entry, nil
}

func (s *Session) ratio() float64 {
	if s.entry != nil && s.entry.AspectRatio > 0 {
		return s.entry.AspectRatio
	}
	return s.defaultRatio
}

// Layout applies a container size change.
func (s *Session) Layout(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.container = models.Size{Width: width, Height: height}
	before := s.vp.State()
	s.vp.Layout(width, height, s.ratio())
	if s.vp.State() != before {
		s.router.Reset()
	}
}

func (s *Session) SetCanvasBounds(b models.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.SetCanvasBounds(b)
}

// ============================================================
// Input
// ============================================================

func (s *Session) Arm(shape models.Shape) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.router.Arm(shape)
}

func (s *Session) Disarm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.router.Disarm()
}

type PointerKind string

const (
	PointerDown   PointerKind = "down"
	PointerMove   PointerKind = "move"
	PointerUp     PointerKind = "up"
	PointerCancel PointerKind = "cancel"
)

// Pointer feeds one pointer event, in canvas-local pixels, to the router.
func (s *Session) Pointer(kind PointerKind, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch kind {
	case PointerDown:
		return s.router.PointerDown(x, y)
	case PointerMove:
		s.router.PointerMove(x, y)
	case PointerUp:
		s.router.PointerUp(x, y)
	case PointerCancel:
		s.router.PointerCancel()
	default:
		return fmt.Errorf("unknown pointer event %q", kind)
	}
	return nil
}

type ZoomAction string

const (
	ZoomIn  ZoomAction = "in"
	ZoomOut ZoomAction = "out"
	ZoomSet ZoomAction = "set"
	ZoomAt  ZoomAction = "at"
)

// ZoomRequest drives the zoom controls. Value is the target zoom for
// ZoomSet and the factor for ZoomAt, which zooms around (X, Y).
type ZoomRequest struct {
	Action ZoomAction `json:"action"`
	Value  float64    `json:"value"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
}

func (s *Session) Zoom(req ZoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch req.Action {
	case ZoomIn:
		s.vp.ZoomIn()
	case ZoomOut:
		s.vp.ZoomOut()
	case ZoomSet:
		s.vp.SetZoom(req.Value)
	case ZoomAt:
		s.vp.ZoomTo(req.Value, req.X, req.Y)
	default:
		return fmt.Errorf("unknown zoom action %q", req.Action)
	}
	return nil
}

type DropKind string

const (
	DropBegin  DropKind = "begin"
	DropMove   DropKind = "move"
	DropEnd    DropKind = "end"
	DropCancel DropKind = "cancel"
)

// Drop drives a catalog drag. Coordinates are in the screen space of the
// canvas bounds. Only DropEnd may return an annotation.
func (s *Session) Drop(kind DropKind, item models.CatalogItem, x, y float64) (*models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch kind {
	case DropBegin:
		return nil, s.router.BeginDrop(item, x, y)
	case DropMove:
		s.router.MoveDrop(x, y)
	case DropEnd:
		return s.router.EndDrop(x, y)
	case DropCancel:
		s.router.CancelDrop()
	default:
		return nil, fmt.Errorf("unknown drop event %q", kind)
	}
	return nil, nil
}
