// Package gesture routes raw pointer input to panning, drawing or
// catalog-drop handling. Exactly one of them owns a gesture at a time.
package gesture

import (
	"errors"
	"math"

	"blueprint-annotator/internal/annotator/drawing"
	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/viewport"
)

// DeadZone is how far in pixels a pointer must travel on either axis
// before an idle touch becomes a pan.
const DeadZone = 5.0

var (
	ErrGestureActive = errors.New("another gesture is in progress")
	ErrNotArmed      = errors.New("no drawing tool selected")
	ErrNoDrop        = errors.New("no catalog item is being dragged")
)

// HitTester finds the annotation under a container-local screen point.
type HitTester interface {
	HitTest(sx, sy float64) (id string, ok bool)
}

// Router is the state machine
//
//	idle --arm--> armed --down--> drawing --up--> idle
//	idle --down, move past DeadZone--> panning --up--> idle
//	idle|armed --drop start--> dropping --drop end--> previous state
//
// Pointer coordinates are container-local screen pixels.
type Router struct {
	vp     *viewport.Viewport
	engine *drawing.Engine
	hits   HitTester

	mode Mode

	// touch in idle state that has not yet been claimed as a pan
	pressed bool
	down    models.Point

	bounds    models.Rect
	hasBounds bool
	drop      *Ghost
	resume    Mode

	listeners []func(Event)
}

func NewRouter(vp *viewport.Viewport, engine *drawing.Engine) *Router {
	return &Router{vp: vp, engine: engine}
}

// SetHitTester installs the lookup used to report taps on annotations.
func (r *Router) SetHitTester(h HitTester) {
	r.hits = h
}

// OnEvent registers fn to receive router events.
func (r *Router) OnEvent(fn func(Event)) {
	r.listeners = append(r.listeners, fn)
}

func (r *Router) emit(ev Event) {
	for _, fn := range r.listeners {
		fn(ev)
	}
}

func (r *Router) Mode() Mode {
	return r.mode
}

// Preview returns the shape being drawn, or nil.
func (r *Router) Preview() *drawing.Preview {
	return r.engine.Preview()
}

// ============================================================
// Tool selection
// ============================================================

// Arm selects a drawing tool. The next touch draws one shape, after
// which the router returns to idle.
func (r *Router) Arm(shape models.Shape) error {
	switch r.mode.State {
	case StateIdle, StateArmed:
	default:
		return ErrGestureActive
	}
	if r.pressed {
		return ErrGestureActive
	}
	r.mode = Mode{State: StateArmed, Shape: shape}
	r.emit(Event{Kind: EventDrawingModeChanged, DrawingMode: true, Shape: shape})
	return nil
}

// Disarm deselects the drawing tool without drawing.
func (r *Router) Disarm() error {
	switch r.mode.State {
	case StateArmed:
		r.setIdle()
		return nil
	case StateIdle:
		return ErrNotArmed
	}
	return ErrGestureActive
}

func (r *Router) setIdle() {
	wasDrawing := r.mode.DrawingMode()
	r.mode = Mode{State: StateIdle}
	if wasDrawing {
		r.emit(Event{Kind: EventDrawingModeChanged, DrawingMode: false})
	}
}

// ============================================================
// Pointer input
// ============================================================

// PointerDown starts a gesture.
func (r *Router) PointerDown(x, y float64) error {
	switch r.mode.State {
	case StateArmed:
		if err := r.engine.Begin(r.mode.Shape, x, y); err != nil {
			return err
		}
		r.mode.State = StateDrawing
		return nil

	case StateIdle:
		// the pan recognizer waits for movement before claiming
		r.pressed = true
		r.down = models.Point{X: x, Y: y}
		return nil
	}
	return ErrGestureActive
}

// PointerMove feeds a sample to whichever recognizer owns the gesture.
func (r *Router) PointerMove(x, y float64) {
	switch r.mode.State {
	case StateDrawing:
		r.engine.Move(x, y)

	case StatePanning:
		r.vp.DragPan(x-r.down.X, y-r.down.Y)

	case StateIdle:
		if !r.pressed {
			return
		}
		dx, dy := x-r.down.X, y-r.down.Y
		if math.Abs(dx) <= DeadZone && math.Abs(dy) <= DeadZone {
			return
		}
		r.mode = Mode{State: StatePanning}
		r.vp.BeginPan()
		r.emit(Event{Kind: EventScrollLockChanged, ScrollLocked: true})
		r.vp.DragPan(dx, dy)
	}
}

// PointerUp finishes the gesture. A drawing gesture yields either an
// EventAnnotationDrawn or an EventAnnotationRejected and always turns
// drawing mode off.
func (r *Router) PointerUp(x, y float64) {
	switch r.mode.State {
	case StateDrawing:
		shape := r.mode.Shape
		a, err := r.engine.End(x, y)
		r.setIdle()
		if err != nil {
			r.emit(Event{Kind: EventAnnotationRejected, Shape: shape, Message: err.Error(), Err: err})
			return
		}
		r.emit(Event{Kind: EventAnnotationDrawn, Shape: a.Shape, Annotation: &a})

	case StatePanning:
		r.PointerMove(x, y)
		r.vp.EndPan()
		r.pressed = false
		r.mode = Mode{State: StateIdle}
		r.emit(Event{Kind: EventScrollLockChanged, ScrollLocked: false})

	case StateIdle:
		if !r.pressed {
			return
		}
		r.pressed = false
		r.tap(x, y)
	}
}

// PointerCancel aborts the current gesture without producing anything.
func (r *Router) PointerCancel() {
	switch r.mode.State {
	case StateDrawing:
		r.engine.Cancel()
		r.setIdle()
	case StatePanning:
		r.vp.EndPan()
		r.mode = Mode{State: StateIdle}
		r.emit(Event{Kind: EventScrollLockChanged, ScrollLocked: false})
	}
	r.pressed = false
}

// Reset abandons a pointer gesture whose anchors belong to a layout
// that no longer applies. A tool armed but not yet pressed stays armed.
// Catalog drags survive, since they are converted only at release.
func (r *Router) Reset() {
	r.PointerCancel()
}

func (r *Router) tap(x, y float64) {
	if r.hits == nil {
		return
	}
	if id, ok := r.hits.HitTest(x, y); ok {
		r.emit(Event{Kind: EventAnnotationTapped, AnnotationID: id})
	}
}
