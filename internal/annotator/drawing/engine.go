// Package drawing turns captured pointer samples into annotation geometry.
package drawing

import (
	"errors"
	"math"

	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/viewport"
)

// TapThreshold is the on-screen size in pixels below which a drag is
// treated as a tap and produces a pin.
const TapThreshold = 10.0

var (
	ErrNoGesture = errors.New("no shape is being drawn")
	ErrNotReady  = errors.New("blueprint is not laid out yet")
)

// Preview is the live, screen-space rendition of the shape being drawn.
type Preview struct {
	Shape models.Shape `json:"shape"`
	Rect  *models.Rect `json:"rect,omitempty"`
	Path  string       `json:"path,omitempty"`
}

// Engine captures one shape at a time. It keeps a single recorded
// sample sequence in screen pixels; the preview path and the stored
// percentage path are both projections of it.
type Engine struct {
	vp *viewport.Viewport

	active bool
	shape  models.Shape

	// start of the gesture in image space
	start models.Point
	// signed image-space extent, current minus start
	extent models.Size

	samples []models.Point
}

func NewEngine(vp *viewport.Viewport) *Engine {
	return &Engine{vp: vp}
}

func (e *Engine) Active() bool {
	return e.active
}

func (e *Engine) Shape() models.Shape {
	return e.shape
}

// Begin starts capturing shape at screen point (sx, sy).
func (e *Engine) Begin(shape models.Shape, sx, sy float64) error {
	if !e.vp.Ready() {
		return ErrNotReady
	}
	e.active = true
	e.shape = shape
	e.start = e.vp.ScreenToImage(sx, sy)
	e.extent = models.Size{}
	e.samples = append(e.samples[:0], models.Point{X: sx, Y: sy})
	return nil
}

// Move records a pointer sample.
func (e *Engine) Move(sx, sy float64) {
	if !e.active {
		return
	}
	cur := e.vp.ScreenToImage(sx, sy)
	e.extent = models.Size{Width: cur.X - e.start.X, Height: cur.Y - e.start.Y}

	if e.shape == models.ShapeFreehand {
		last := e.samples[len(e.samples)-1]
		if last.X != sx || last.Y != sy {
			e.samples = append(e.samples, models.Point{X: sx, Y: sy})
		}
	}
}

// Cancel drops the shape in progress.
func (e *Engine) Cancel() {
	e.reset()
}

// End records the release sample and returns the finished annotation
// in percentage space. The engine keeps nothing of it afterwards. An
// annotation outside the blueprint is rejected with a *BoundsError.
func (e *Engine) End(sx, sy float64) (models.Annotation, error) {
	if !e.active {
		return models.Annotation{}, ErrNoGesture
	}
	e.Move(sx, sy)
	defer e.reset()

	var a models.Annotation
	switch {
	case e.isTap():
		a = e.pin()
	case e.shape == models.ShapeFreehand:
		a = models.Annotation{Shape: models.ShapeFreehand, Path: e.PercentPath()}
	default:
		a = e.area()
	}

	if err := Validate(a); err != nil {
		return models.Annotation{}, err
	}
	return a, nil
}

func (e *Engine) reset() {
	e.active = false
	e.shape = ""
	e.extent = models.Size{}
	e.samples = e.samples[:0]
}

// isTap reports whether the gesture should be stored as a point,
// judged by its size on screen at the current zoom.
func (e *Engine) isTap() bool {
	if e.shape == models.ShapePin {
		return true
	}
	if e.shape == models.ShapeFreehand {
		if len(e.samples) < 2 {
			return true
		}
		box := bounds(e.samples)
		return box.Width < TapThreshold && box.Height < TapThreshold
	}

	zoom := e.vp.Zoom()
	return math.Abs(e.extent.Width)*zoom < TapThreshold &&
		math.Abs(e.extent.Height)*zoom < TapThreshold
}

func (e *Engine) pin() models.Annotation {
	p := e.vp.ImageToPercent(e.start.X, e.start.Y)
	return models.Annotation{
		Shape: models.ShapePin,
		X:     models.Float(Round(p.X)),
		Y:     models.Float(Round(p.Y)),
	}
}

func (e *Engine) area() models.Annotation {
	box := e.normalizedBox()
	origin := e.vp.ImageToPercent(box.X, box.Y)
	far := e.vp.ImageToPercent(box.X+box.Width, box.Y+box.Height)

	return models.Annotation{
		Shape:  e.shape,
		X:      models.Float(Round(origin.X)),
		Y:      models.Float(Round(origin.Y)),
		Width:  models.Float(Round(far.X - origin.X)),
		Height: models.Float(Round(far.Y - origin.Y)),
	}
}

// normalizedBox returns the image-space box with a non-negative extent.
func (e *Engine) normalizedBox() models.Rect {
	r := models.Rect{X: e.start.X, Y: e.start.Y, Width: e.extent.Width, Height: e.extent.Height}
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// ============================================================
// Projections
// ============================================================

// PreviewPath is the recorded stroke in raw screen pixels.
func (e *Engine) PreviewPath() string {
	return EncodePath(e.samples)
}

// PercentPath is the recorded stroke in percentage space.
func (e *Engine) PercentPath() string {
	points := make([]models.Point, len(e.samples))
	for i, s := range e.samples {
		points[i] = e.vp.ScreenToPercent(s.X, s.Y)
	}
	return EncodePath(points)
}

// Preview returns the shape in progress in screen pixels, or nil when
// nothing is being drawn.
func (e *Engine) Preview() *Preview {
	if !e.active {
		return nil
	}
	if e.shape == models.ShapeFreehand {
		return &Preview{Shape: e.shape, Path: e.PreviewPath()}
	}

	box := e.normalizedBox()
	tl := e.vp.ImageToScreen(box.X, box.Y)
	zoom := e.vp.Zoom()
	return &Preview{
		Shape: e.shape,
		Rect:  &models.Rect{X: tl.X, Y: tl.Y, Width: box.Width * zoom, Height: box.Height * zoom},
	}
}

func bounds(points []models.Point) models.Size {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return models.Size{Width: maxX - minX, Height: maxY - minY}
}
