package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"blueprint-annotator/internal/annotator/models"
	"blueprint-annotator/internal/annotator/viewport"
)

// ============================================================
// SVG overlay
// ============================================================

const pinRadius = 6.0

type SVGOptions struct {
	// ImageHref, when set, draws the blueprint itself under the marks
	// at ImageFrame.
	ImageHref string
}

// SVG renders annotations as an overlay document the size of the
// viewport's container.
func SVG(annotations []models.Annotation, vp *viewport.Viewport, opts SVGOptions) string {
	container := vp.Container()
	width, height := formatFloat(container.Width), formatFloat(container.Height)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		width, height, width, height))
	b.WriteString("\n")

	if opts.ImageHref != "" {
		frame := ImageFrame(vp)
		b.WriteString(fmt.Sprintf(`  <image href="%s" x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="none" />`,
			html.EscapeString(opts.ImageHref), formatFloat(frame.X), formatFloat(frame.Y),
			formatFloat(frame.Width), formatFloat(frame.Height)))
		b.WriteString("\n")
	}

	for _, m := range Project(annotations, vp) {
		b.WriteString("  ")
		b.WriteString(renderMark(m))
		b.WriteString("\n")
	}

	b.WriteString(`</svg>`)
	return b.String()
}

func renderMark(m Mark) string {
	id := html.EscapeString(m.ID)
	color := html.EscapeString(m.Color)

	switch m.Shape {
	case models.ShapeRectangle:
		r := m.Rect
		return fmt.Sprintf(`<rect data-id="%s" x="%s" y="%s" width="%s" height="%s" fill="%s" fill-opacity="0.25" stroke="%s" stroke-width="2" />`,
			id, formatFloat(r.X), formatFloat(r.Y), formatFloat(r.Width), formatFloat(r.Height), color, color)

	case models.ShapeCircle:
		r := m.Rect
		return fmt.Sprintf(`<ellipse data-id="%s" cx="%s" cy="%s" rx="%s" ry="%s" fill="%s" fill-opacity="0.25" stroke="%s" stroke-width="2" />`,
			id, formatFloat(m.Anchor.X), formatFloat(m.Anchor.Y), formatFloat(r.Width/2), formatFloat(r.Height/2), color, color)

	case models.ShapeFreehand:
		return fmt.Sprintf(`<path data-id="%s" d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linecap="round" stroke-linejoin="round" />`,
			id, m.Path, color)
	}

	return fmt.Sprintf(`<circle data-id="%s" cx="%s" cy="%s" r="%s" fill="%s" stroke="#fff" stroke-width="2" />`,
		id, formatFloat(m.Anchor.X), formatFloat(m.Anchor.Y), formatFloat(pinRadius), color)
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}
