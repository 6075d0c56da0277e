// Package viewport owns the pan/zoom transform between screen pixels,
// fitted-image pixels and percentage space.
package viewport

import (
	"math"

	"blueprint-annotator/internal/annotator/models"
)

const (
	MinZoom  = 1.0
	MaxZoom  = 5.0
	ZoomStep = 1.25
)

// Viewport is the single owner of pan and zoom. Other components read
// it through the transform methods and subscribe with OnChange.
//
// Three coordinate spaces are involved:
//   - screen: container-local pixels, what pointer events report
//   - image: pixels of the fitted image at zoom 1, origin at its top-left
//   - percent: image space scaled to [0,100] on both axes
type Viewport struct {
	container models.Size
	ratio     float64
	base      models.Size

	pan  models.Point
	zoom float64

	// pan captured when a pan gesture starts
	anchor  models.Point
	panning bool

	listeners []func(models.ViewportState)
}

func New() *Viewport {
	return &Viewport{zoom: MinZoom, ratio: 1}
}

// OnChange registers fn to be called after every pan or zoom mutation.
func (v *Viewport) OnChange(fn func(models.ViewportState)) {
	v.listeners = append(v.listeners, fn)
}

func (v *Viewport) notify() {
	st := v.State()
	for _, fn := range v.listeners {
		fn(st)
	}
}

// ============================================================
// Layout
// ============================================================

// Layout applies a container size or image change. The fitted size is
// always recomputed; pan and zoom are reset and the image centred when
// the container width or the aspect ratio changed.
func (v *Viewport) Layout(containerW, containerH, aspectRatio float64) {
	aspectRatio = sanitizeRatio(aspectRatio)
	widthChanged := containerW != v.container.Width
	ratioChanged := aspectRatio != v.ratio

	if widthChanged || ratioChanged || v.base.Width == 0 {
		v.Recenter(containerW, containerH, aspectRatio)
		return
	}

	v.container = models.Size{Width: containerW, Height: containerH}
	v.base = Fit(containerW, containerH, aspectRatio)
	v.notify()
}

// Recenter resets zoom to 1 and centres the fitted image in the container.
func (v *Viewport) Recenter(containerW, containerH, aspectRatio float64) {
	v.container = models.Size{Width: containerW, Height: containerH}
	v.ratio = sanitizeRatio(aspectRatio)
	v.base = Fit(containerW, containerH, v.ratio)
	v.zoom = MinZoom
	v.pan = models.Point{
		X: (containerW - v.base.Width) / 2,
		Y: (containerH - v.base.Height) / 2,
	}
	v.panning = false
	v.notify()
}

// Ready reports whether a layout with a non-empty image has been applied.
func (v *Viewport) Ready() bool {
	return v.base.Width > 0 && v.base.Height > 0
}

// ============================================================
// Accessors
// ============================================================

func (v *Viewport) State() models.ViewportState {
	return models.ViewportState{
		Pan:        v.pan,
		Zoom:       v.zoom,
		BaseWidth:  v.base.Width,
		BaseHeight: v.base.Height,
	}
}

func (v *Viewport) Zoom() float64 {
	return v.zoom
}

func (v *Viewport) Pan() models.Point {
	return v.pan
}

// Base returns the fitted image size at zoom 1.
func (v *Viewport) Base() models.Size {
	return v.base
}

func (v *Viewport) Container() models.Size {
	return v.container
}

func (v *Viewport) AspectRatio() float64 {
	return v.ratio
}

// ============================================================
// Transforms
// ============================================================

// ScreenToImage converts a screen point to fitted-image pixels.
func (v *Viewport) ScreenToImage(sx, sy float64) models.Point {
	return models.Point{
		X: (sx - v.pan.X) / v.zoom,
		Y: (sy - v.pan.Y) / v.zoom,
	}
}

// ImageToScreen converts fitted-image pixels to a screen point.
func (v *Viewport) ImageToScreen(ix, iy float64) models.Point {
	return models.Point{
		X: ix*v.zoom + v.pan.X,
		Y: iy*v.zoom + v.pan.Y,
	}
}

// ImageToPercent converts fitted-image pixels to percentage space.
// Returns the zero point before the first layout.
func (v *Viewport) ImageToPercent(ix, iy float64) models.Point {
	if !v.Ready() {
		return models.Point{}
	}
	return models.Point{
		X: ix / v.base.Width * 100,
		Y: iy / v.base.Height * 100,
	}
}

// ScreenToPercent converts a screen point to percentage space.
func (v *Viewport) ScreenToPercent(sx, sy float64) models.Point {
	img := v.ScreenToImage(sx, sy)
	return v.ImageToPercent(img.X, img.Y)
}

// PercentToScreen converts a percentage-space point to a screen point.
func (v *Viewport) PercentToScreen(px, py float64) models.Point {
	return models.Point{
		X: px/100*v.base.Width*v.zoom + v.pan.X,
		Y: py/100*v.base.Height*v.zoom + v.pan.Y,
	}
}

// PercentLengthToScreen converts a percentage-space extent to screen pixels.
func (v *Viewport) PercentLengthToScreen(pw, ph float64) models.Size {
	return models.Size{
		Width:  pw / 100 * v.base.Width * v.zoom,
		Height: ph / 100 * v.base.Height * v.zoom,
	}
}

// ============================================================
// Zoom
// ============================================================

// ZoomTo multiplies the zoom by factor, clamped to [MinZoom, MaxZoom],
// keeping the image point under (cx, cy) fixed on screen.
func (v *Viewport) ZoomTo(factor, cx, cy float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	next := clamp(v.zoom*factor, MinZoom, MaxZoom)
	if next == v.zoom {
		return
	}

	v.pan = models.Point{
		X: cx - (cx-v.pan.X)/v.zoom*next,
		Y: cy - (cy-v.pan.Y)/v.zoom*next,
	}
	v.zoom = next
	v.notify()
}

// SetZoom sets an absolute zoom level around the container centre.
func (v *Viewport) SetZoom(zoom float64) {
	if zoom <= 0 || math.IsNaN(zoom) {
		return
	}
	c := v.center()
	v.ZoomTo(zoom/v.zoom, c.X, c.Y)
}

// ZoomIn increases the zoom level around the container centre.
func (v *Viewport) ZoomIn() {
	c := v.center()
	v.ZoomTo(ZoomStep, c.X, c.Y)
}

// ZoomOut decreases the zoom level around the container centre.
func (v *Viewport) ZoomOut() {
	c := v.center()
	v.ZoomTo(1/ZoomStep, c.X, c.Y)
}

func (v *Viewport) center() models.Point {
	return models.Point{X: v.container.Width / 2, Y: v.container.Height / 2}
}

// ============================================================
// Pan
// ============================================================

// BeginPan snapshots the current pan as the anchor for a drag.
func (v *Viewport) BeginPan() {
	v.anchor = v.pan
	v.panning = true
}

// DragPan sets pan to the anchor plus the cumulative gesture delta.
// Only the total movement since BeginPan matters, not how many move
// events were delivered in between.
func (v *Viewport) DragPan(dx, dy float64) {
	if !v.panning {
		return
	}
	v.pan = models.Point{X: v.anchor.X + dx, Y: v.anchor.Y + dy}
	v.notify()
}

func (v *Viewport) EndPan() {
	v.panning = false
}

// PanBy moves the image by a screen delta outside of a drag gesture.
func (v *Viewport) PanBy(dx, dy float64) {
	v.pan = models.Point{X: v.pan.X + dx, Y: v.pan.Y + dy}
	v.notify()
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
