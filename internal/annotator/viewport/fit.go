package viewport

import (
	"math"

	"blueprint-annotator/internal/annotator/models"
)

// ============================================================
// Fit Calculator
// ============================================================

// Fit returns the largest rectangle with the given aspect ratio
// (width / height) that fits inside the container without distortion.
//
// A zero or negative container is returned unchanged. A missing or
// invalid ratio is treated as 1 (square).
//
// Every component that places something over the image must call Fit
// with the same inputs as the component that draws the image.
func Fit(containerW, containerH, aspectRatio float64) models.Size {
	if containerW <= 0 || containerH <= 0 {
		return models.Size{Width: containerW, Height: containerH}
	}
	aspectRatio = sanitizeRatio(aspectRatio)

	if containerW/containerH > aspectRatio {
		return models.Size{Width: containerH * aspectRatio, Height: containerH}
	}
	return models.Size{Width: containerW, Height: containerW / aspectRatio}
}

func sanitizeRatio(r float64) float64 {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 1
	}
	return r
}
