// Package render maps stored percentage-space annotations into the
// current viewport's screen space.
package render

import (
	"blueprint-annotator/internal/annotator/drawing"
	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/viewport"
)

const (
	// DefaultAreaSize is substituted, in percent, for a missing or zero
	// width/height of an area annotation.
	DefaultAreaSize = 5.0

	ColorComplete   = "#2e7d32"
	ColorIncomplete = "#d32f2f"
)

// Mark is one annotation placed on screen.
type Mark struct {
	ID        string       `json:"id"`
	Shape     models.Shape `json:"shape"`
	Color     string       `json:"color"`
	Completed bool         `json:"completed"`
	// Anchor is the pin point, or the centre of an area.
	Anchor models.Point `json:"anchor"`
	// Rect is the screen box of an area shape.
	Rect *models.Rect `json:"rect,omitempty"`
	// Path is the screen-space stroke of a freehand shape.
	Path string `json:"path,omitempty"`

	points []models.Point
}

// ImageFrame is where the fitted, zoomed image sits on screen. The
// image and the annotations must both be placed with it.
func ImageFrame(vp *viewport.Viewport) models.Rect {
	base := vp.Base()
	pan := vp.Pan()
	return models.Rect{
		X:      pan.X,
		Y:      pan.Y,
		Width:  base.Width * vp.Zoom(),
		Height: base.Height * vp.Zoom(),
	}
}

// Project places annotations on screen. Freehand annotations whose path
// cannot be parsed are skipped.
func Project(annotations []models.Annotation, vp *viewport.Viewport) []Mark {
	marks := make([]Mark, 0, len(annotations))
	for _, a := range annotations {
		m := Mark{
			ID:        a.ID,
			Shape:     a.Shape,
			Color:     StatusColor(a),
			Completed: a.Completed,
		}

		switch {
		case a.Shape == models.ShapeFreehand:
			points, err := drawing.ParsePath(a.Path)
			if err != nil {
				continue
			}
			m.points = make([]models.Point, len(points))
			for i, p := range points {
				m.points[i] = vp.PercentToScreen(p.X, p.Y)
			}
			m.Path = drawing.EncodePath(m.points)
			m.Anchor = m.points[0]

		case a.Shape.IsArea():
			o := a.Origin()
			ext := a.Extent()
			if ext.Width <= 0 {
				ext.Width = DefaultAreaSize
			}
			if ext.Height <= 0 {
				ext.Height = DefaultAreaSize
			}
			tl := vp.PercentToScreen(o.X, o.Y)
			size := vp.PercentLengthToScreen(ext.Width, ext.Height)
			m.Rect = &models.Rect{X: tl.X, Y: tl.Y, Width: size.Width, Height: size.Height}
			m.Anchor = models.Point{X: tl.X + size.Width/2, Y: tl.Y + size.Height/2}

		default:
			o := a.Origin()
			m.Anchor = vp.PercentToScreen(o.X, o.Y)
		}

		marks = append(marks, m)
	}
	return marks
}

// StatusColor is the explicit colour of a, or its completion colour.
func StatusColor(a models.Annotation) string {
	if a.Color != "" {
		return a.Color
	}
	if a.Completed {
		return ColorComplete
	}
	return ColorIncomplete
}

// ============================================================
// Overlay
// ============================================================

// Overlay holds the annotation list of the visible page and answers
// hit tests against the live viewport.
type Overlay struct {
	vp          *viewport.Viewport
	annotations []models.Annotation
}

func NewOverlay(vp *viewport.Viewport) *Overlay {
	return &Overlay{vp: vp}
}

// SetAnnotations replaces the list. It never touches the viewport.
func (o *Overlay) SetAnnotations(list []models.Annotation) {
	o.annotations = append(o.annotations[:0:0], list...)
}

func (o *Overlay) Annotations() []models.Annotation {
	return o.annotations
}

// Marks projects the current list with the current viewport.
func (o *Overlay) Marks() []Mark {
	return Project(o.annotations, o.vp)
}

// HitTest returns the id of the topmost annotation under (sx, sy).
func (o *Overlay) HitTest(sx, sy float64) (string, bool) {
	m, ok := HitTest(o.Marks(), models.Point{X: sx, Y: sy})
	if !ok {
		return "", false
	}
	return m.ID, true
}
