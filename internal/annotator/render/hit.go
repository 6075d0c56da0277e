package render

import (
	"math"

	"blueprint-annotator/internal/annotator/models"
)

const (
	// PinHitRadius is the touch radius around a pin in screen pixels.
	PinHitRadius = 12.0
	// StrokeHitDistance is how close to a freehand stroke a touch must be.
	StrokeHitDistance = 8.0
)

// HitTest returns the topmost mark under p. Later marks are drawn on
// top of earlier ones.
func HitTest(marks []Mark, p models.Point) (Mark, bool) {
	for i := len(marks) - 1; i >= 0; i-- {
		if hits(marks[i], p) {
			return marks[i], true
		}
	}
	return Mark{}, false
}

func hits(m Mark, p models.Point) bool {
	switch m.Shape {
	case models.ShapeRectangle:
		return m.Rect != nil && m.Rect.Contains(p)

	case models.ShapeCircle:
		if m.Rect == nil {
			return false
		}
		rx, ry := m.Rect.Width/2, m.Rect.Height/2
		if rx <= 0 || ry <= 0 {
			return false
		}
		dx := (p.X - m.Anchor.X) / rx
		dy := (p.Y - m.Anchor.Y) / ry
		return dx*dx+dy*dy <= 1

	case models.ShapeFreehand:
		if len(m.points) == 1 {
			return distance(p, m.points[0]) <= StrokeHitDistance
		}
		for i := 1; i < len(m.points); i++ {
			if segmentDistance(p, m.points[i-1], m.points[i]) <= StrokeHitDistance {
				return true
			}
		}
		return false
	}

	return distance(p, m.Anchor) <= PinHitRadius
}

func distance(a, b models.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// segmentDistance is the distance from p to the segment ab.
func segmentDistance(p, a, b models.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return distance(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return distance(p, models.Point{X: a.X + t*dx, Y: a.Y + t*dy})
}
