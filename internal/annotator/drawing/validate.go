package drawing

import (
	"errors"
	"fmt"

	"blueprint-annotator/internal/annotator/models"
)

// ============================================================
// Validation
// ============================================================

// MaxPercent is the upper bound for stored coordinates. The half
// percent above 100 absorbs floating rounding at the right/bottom edge.
const MaxPercent = 100.5

var (
	ErrOutOfBounds       = errors.New("annotation lies outside the blueprint")
	ErrInvalidAnnotation = errors.New("invalid annotation")
)

// BoundsError names the coordinate that fell outside [0, MaxPercent].
// It is meant to be shown to the user as is.
type BoundsError struct {
	Field string
	Value float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("the mark extends outside the blueprint (%s = %.1f%%), draw it inside the plan", e.Field, e.Value)
}

func (e *BoundsError) Unwrap() error {
	return ErrOutOfBounds
}

// Validate checks the structural and bounds invariants of a. Geometry
// outside the blueprint is rejected, never clamped.
func Validate(a models.Annotation) error {
	switch a.Shape {
	case models.ShapePin:
		if a.X == nil || a.Y == nil {
			return fmt.Errorf("%w: pin requires x and y", ErrInvalidAnnotation)
		}
		if a.Path != "" {
			return fmt.Errorf("%w: pin cannot carry a path", ErrInvalidAnnotation)
		}
		if a.Width != nil || a.Height != nil {
			return fmt.Errorf("%w: pin cannot carry width/height", ErrInvalidAnnotation)
		}
		return checkPoint(a.Origin(), "x", "y")

	case models.ShapeRectangle, models.ShapeCircle:
		if a.X == nil || a.Y == nil {
			return fmt.Errorf("%w: %s requires x and y", ErrInvalidAnnotation, a.Shape)
		}
		if a.Path != "" {
			return fmt.Errorf("%w: %s cannot carry a path", ErrInvalidAnnotation, a.Shape)
		}
		ext := a.Extent()
		if ext.Width < 0 || ext.Height < 0 {
			return fmt.Errorf("%w: negative extent", ErrInvalidAnnotation)
		}
		o := a.Origin()
		if err := checkPoint(o, "x", "y"); err != nil {
			return err
		}
		return checkPoint(models.Point{X: o.X + ext.Width, Y: o.Y + ext.Height}, "x+width", "y+height")

	case models.ShapeFreehand:
		if a.Width != nil || a.Height != nil {
			return fmt.Errorf("%w: freehand cannot carry width/height", ErrInvalidAnnotation)
		}
		if a.X != nil || a.Y != nil {
			return fmt.Errorf("%w: freehand cannot carry x/y", ErrInvalidAnnotation)
		}
		points, err := ParsePath(a.Path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAnnotation, err)
		}
		for _, p := range points {
			if err := checkPoint(p, "path x", "path y"); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("%w: unknown shape %q", ErrInvalidAnnotation, a.Shape)
}

// Normalize rounds the coordinates of a valid annotation to
// PathPrecision fraction digits and re-encodes its path.
func Normalize(a models.Annotation) (models.Annotation, error) {
	if err := Validate(a); err != nil {
		return models.Annotation{}, err
	}
	for _, v := range []**float64{&a.X, &a.Y, &a.Width, &a.Height} {
		if *v != nil {
			*v = models.Float(Round(**v))
		}
	}
	if a.Shape == models.ShapeFreehand {
		path, err := NormalizePath(a.Path)
		if err != nil {
			return models.Annotation{}, fmt.Errorf("%w: %v", ErrInvalidAnnotation, err)
		}
		a.Path = path
	}
	return a, nil
}

func checkPoint(p models.Point, xName, yName string) error {
	if !inBounds(p.X) {
		return &BoundsError{Field: xName, Value: p.X}
	}
	if !inBounds(p.Y) {
		return &BoundsError{Field: yName, Value: p.Y}
	}
	return nil
}

func inBounds(v float64) bool {
	return v >= 0 && v <= MaxPercent
}
