package drawing

import (
	"errors"
	"testing"

	"blueprint-annotator/internal/annotator/models"
)

func area(x, y, w, h float64) models.Annotation {
	return models.Annotation{
		Shape:  models.ShapeRectangle,
		X:      models.Float(x),
		Y:      models.Float(y),
		Width:  models.Float(w),
		Height: models.Float(h),
	}
}

func pin(x, y float64) models.Annotation {
	return models.Annotation{Shape: models.ShapePin, X: models.Float(x), Y: models.Float(y)}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		a    models.Annotation
		want error
	}{
		{"pin inside", pin(50, 50), nil},
		{"pin on tolerance edge", pin(100.5, 0), nil},
		{"pin past tolerance", pin(100.6, 0), ErrOutOfBounds},
		{"pin negative", pin(-0.1, 10), ErrOutOfBounds},
		{"pin without y", models.Annotation{Shape: models.ShapePin, X: models.Float(1)}, ErrInvalidAnnotation},
		{"area sum 104 rejected", area(99, 10, 5, 5), ErrOutOfBounds},
		{"area sum 100 accepted", area(95, 10, 5, 5), nil},
		{"area height overflow", area(10, 96, 5, 5), ErrOutOfBounds},
		{"area zero extent", area(10, 10, 0, 0), nil},
		{"area negative extent", area(10, 10, -5, 5), ErrInvalidAnnotation},
		{"area with path", func() models.Annotation {
			a := area(1, 1, 1, 1)
			a.Path = "M 1 1"
			return a
		}(), ErrInvalidAnnotation},
		{"freehand inside", models.Annotation{Shape: models.ShapeFreehand, Path: "M 1 1 L 50 50"}, nil},
		{"freehand outside", models.Annotation{Shape: models.ShapeFreehand, Path: "M 1 1 L 101 50"}, ErrOutOfBounds},
		{"freehand with extent", models.Annotation{Shape: models.ShapeFreehand, Path: "M 1 1", Width: models.Float(3)}, ErrInvalidAnnotation},
		{"freehand empty", models.Annotation{Shape: models.ShapeFreehand}, ErrInvalidAnnotation},
		{"freehand bad token", models.Annotation{Shape: models.ShapeFreehand, Path: "M 10 abc 20 L 30 40"}, ErrInvalidAnnotation},
		{"freehand unpaired coordinate", models.Annotation{Shape: models.ShapeFreehand, Path: "M 10 20 30"}, ErrInvalidAnnotation},
		{"freehand with origin", models.Annotation{Shape: models.ShapeFreehand, Path: "M 1 1", X: models.Float(1), Y: models.Float(1)}, ErrInvalidAnnotation},
		{"pin with extent", func() models.Annotation {
			a := pin(10, 10)
			a.Width = models.Float(5)
			return a
		}(), ErrInvalidAnnotation},
		{"unknown shape", models.Annotation{Shape: "arrow", X: models.Float(1), Y: models.Float(1)}, ErrInvalidAnnotation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.a)
			if tc.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBoundsErrorMessage(t *testing.T) {
	err := Validate(area(99, 10, 5, 5))
	var be *BoundsError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BoundsError", err)
	}
	if be.Field != "x+width" || be.Value != 104 {
		t.Errorf("BoundsError = %+v, want x+width=104", be)
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(models.Annotation{Shape: models.ShapeFreehand, Path: "M 1.123456789012 2 L 3 4"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != "M 1.1235 2 L 3 4" {
		t.Errorf("path = %q", got.Path)
	}

	got, err = Normalize(area(10.123449, 20, 5.55556, 0))
	if err != nil {
		t.Fatal(err)
	}
	if *got.X != 10.1234 || *got.Width != 5.5556 || *got.Height != 0 {
		t.Errorf("area = %v %v %v", *got.X, *got.Width, *got.Height)
	}

	if _, err := Normalize(models.Annotation{Shape: models.ShapeFreehand, Path: "M 10 20 30"}); !errors.Is(err, ErrInvalidAnnotation) {
		t.Errorf("malformed path err = %v", err)
	}
}
