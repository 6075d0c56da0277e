package models

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================
// Geometry primitives
// ============================================================

// Point is a 2D coordinate. Its unit depends on the space it lives in:
// screen pixels, fitted-image pixels or percentage space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// ============================================================
// Shapes
// ============================================================

type Shape string

const (
	ShapePin       Shape = "pin"
	ShapeRectangle Shape = "rectangle"
	ShapeCircle    Shape = "circle"
	ShapeFreehand  Shape = "freehand"
)

// ParseShape accepts the wire names of the four annotation shapes.
func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case ShapePin:
		return ShapePin, nil
	case ShapeRectangle:
		return ShapeRectangle, nil
	case ShapeCircle:
		return ShapeCircle, nil
	case ShapeFreehand:
		return ShapeFreehand, nil
	}
	return "", fmt.Errorf("unknown shape %q", s)
}

// IsArea is true for shapes that carry a width and height.
func (s Shape) IsArea() bool {
	return s == ShapeRectangle || s == ShapeCircle
}

// ============================================================
// Annotation
// ============================================================

// Annotation is a mark stored in percentage space. Optional numeric
// fields are pointers so that "absent" survives a round trip through
// JSON and the database.
type Annotation struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"projectId"`
	PageRef       *string  `json:"pageRef,omitempty"`
	Shape         Shape    `json:"shape"`
	X             *float64 `json:"x,omitempty"`
	Y             *float64 `json:"y,omitempty"`
	Width         *float64 `json:"width,omitempty"`
	Height        *float64 `json:"height,omitempty"`
	Path          string   `json:"path,omitempty"`
	Color         string   `json:"color,omitempty"`
	Completed     bool     `json:"completed"`
	CatalogItemID string   `json:"catalogItemId,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

// Origin returns the stored x/y pair, treating absent values as zero.
func (a Annotation) Origin() Point {
	return Point{X: deref(a.X), Y: deref(a.Y)}
}

// Extent returns the stored width/height pair, treating absent values as zero.
func (a Annotation) Extent() Size {
	return Size{Width: deref(a.Width), Height: deref(a.Height)}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s, or nil for the empty string.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// ============================================================
// Blueprint pages
// ============================================================

type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
)

type Page struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	URI        string `json:"uri"`
	GroupName  string `json:"groupName"`
	PageNumber int    `json:"pageNumber"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// PageGroup is one plan category with its pages in display order.
type PageGroup struct {
	Name  string `json:"name"`
	Pages []Page `json:"pages"`
}

// GroupPages buckets pages by group name. Groups are sorted by name and
// pages within a group by page number.
func GroupPages(pages []Page) []PageGroup {
	byName := make(map[string][]Page)
	for _, p := range pages {
		byName[p.GroupName] = append(byName[p.GroupName], p)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]PageGroup, 0, len(names))
	for _, name := range names {
		ps := byName[name]
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].PageNumber < ps[j].PageNumber })
		groups = append(groups, PageGroup{Name: name, Pages: ps})
	}
	return groups
}

// ============================================================
// Catalog
// ============================================================

// CatalogItem is an externally sourced entry that can be dropped onto
// the canvas as a pre-filled point annotation.
type CatalogItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Shape Shape  `json:"shape,omitempty"`
	Color string `json:"color,omitempty"`
}

// ============================================================
// Viewport state
// ============================================================

// ViewportState is the read-only view of pan and zoom handed to hosts.
type ViewportState struct {
	Pan        Point   `json:"pan"`
	Zoom       float64 `json:"zoom"`
	BaseWidth  float64 `json:"baseWidth"`
	BaseHeight float64 `json:"baseHeight"`
}
