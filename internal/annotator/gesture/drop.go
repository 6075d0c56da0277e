package gesture

import (
	"blueprint-annotator/internal/annotator/drawing"
	"blueprint-annotator/internal/annotator/models"
)

// ============================================================
// Catalog drop
// ============================================================

// Ghost is the floating label that follows the pointer while a catalog
// item is dragged. Position is in the same screen space as the canvas
// bounds.
type Ghost struct {
	Item     models.CatalogItem `json:"item"`
	Position models.Point       `json:"position"`
}

// SetCanvasBounds records where the canvas was last measured on screen.
// Drops are tested against it.
func (r *Router) SetCanvasBounds(b models.Rect) {
	r.bounds = b
	r.hasBounds = b.Width > 0 && b.Height > 0
}

func (r *Router) CanvasBounds() (models.Rect, bool) {
	return r.bounds, r.hasBounds
}

// Ghost returns the item being dragged, or nil.
func (r *Router) Ghost() *Ghost {
	if r.drop == nil {
		return nil
	}
	g := *r.drop
	return &g
}

// BeginDrop starts dragging item from outside the canvas. It is only
// possible while no canvas gesture is in progress; a selected drawing
// tool stays selected once the drop finishes.
func (r *Router) BeginDrop(item models.CatalogItem, x, y float64) error {
	switch r.mode.State {
	case StateIdle, StateArmed:
	default:
		return ErrGestureActive
	}
	if r.pressed {
		return ErrGestureActive
	}
	r.resume = r.mode
	r.mode = Mode{State: StateDropping}
	r.drop = &Ghost{Item: item, Position: models.Point{X: x, Y: y}}
	return nil
}

func (r *Router) MoveDrop(x, y float64) {
	if r.drop == nil {
		return
	}
	r.drop.Position = models.Point{X: x, Y: y}
}

// EndDrop releases the dragged item. Released inside the canvas it
// yields a point annotation linked to the catalog item; released outside
// it yields nothing and an EventDropCancelled.
func (r *Router) EndDrop(x, y float64) (*models.Annotation, error) {
	if r.drop == nil {
		return nil, ErrNoDrop
	}
	item := r.drop.Item
	r.drop = nil
	r.mode = r.resume
	r.resume = Mode{}

	p := models.Point{X: x, Y: y}
	if !r.hasBounds || !r.bounds.Contains(p) {
		r.emit(Event{Kind: EventDropCancelled})
		return nil, nil
	}

	if !r.vp.Ready() {
		return nil, drawing.ErrNotReady
	}
	pct := r.vp.ScreenToPercent(p.X-r.bounds.X, p.Y-r.bounds.Y)

	shape := item.Shape
	if shape == "" || shape == models.ShapeFreehand {
		shape = models.ShapePin
	}
	a := models.Annotation{
		Shape:         shape,
		X:             models.Float(drawing.Round(pct.X)),
		Y:             models.Float(drawing.Round(pct.Y)),
		Color:         item.Color,
		CatalogItemID: item.ID,
	}
	if err := drawing.Validate(a); err != nil {
		r.emit(Event{Kind: EventAnnotationRejected, Shape: shape, Message: err.Error(), Err: err})
		return nil, err
	}

	r.emit(Event{Kind: EventAnnotationDropped, Shape: shape, Annotation: &a})
	return &a, nil
}

// CancelDrop abandons the drag without emitting anything.
func (r *Router) CancelDrop() {
	if r.drop == nil {
		return
	}
	r.drop = nil
	r.mode = r.resume
	r.resume = Mode{}
}
