package drawing

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"blueprint-annotator/internal/annotator/models"
)

// ============================================================
// Path codec
// ============================================================

// PathPrecision is the number of fraction digits kept per coordinate.
const PathPrecision = 4

var (
	ErrEmptyPath     = errors.New("empty path")
	ErrMalformedPath = errors.New("malformed path")
)

var commandRe = regexp.MustCompile(`([MmLlHhVvZz])([^MmLlHhVvZz]*)`)

// EncodePath writes points as "M x y L x y L x y ...".
func EncodePath(points []models.Point) string {
	if len(points) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range points {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(FormatCoord(p.X))
		b.WriteByte(' ')
		b.WriteString(FormatCoord(p.Y))
	}
	return b.String()
}

// FormatCoord rounds v to PathPrecision fraction digits and drops
// trailing zeros.
func FormatCoord(v float64) string {
	v = Round(v)
	if v == 0 {
		v = 0 // no "-0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Round rounds v to PathPrecision fraction digits.
func Round(v float64) float64 {
	const scale = 1e4
	return math.Round(v*scale) / scale
}

// ParsePath reads a move/line path back into its points. Absolute and
// relative M, L, H, V commands are understood; Z repeats the first point.
// Stray text, unreadable numbers and unpaired coordinates are rejected
// with ErrMalformedPath.
func ParsePath(d string) ([]models.Point, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, ErrEmptyPath
	}

	matches := commandRe.FindAllStringSubmatchIndex(d, -1)
	if len(matches) == 0 || matches[0][0] != 0 {
		return nil, fmt.Errorf("%w: %q does not start with a command", ErrMalformedPath, d)
	}

	var points []models.Point
	var cur models.Point

	for _, m := range matches {
		cmd := d[m[2]:m[3]]
		coords, err := parseCoords(d[m[4]:m[5]])
		if err != nil {
			return nil, err
		}

		switch cmd {
		case "M", "L", "m", "l":
			if len(coords)%2 != 0 {
				return nil, fmt.Errorf("%w: %s takes x y pairs, got %d numbers", ErrMalformedPath, cmd, len(coords))
			}
		case "Z", "z":
			if len(coords) != 0 {
				return nil, fmt.Errorf("%w: Z takes no numbers", ErrMalformedPath)
			}
		}

		switch cmd {
		case "M", "L":
			for i := 0; i+1 < len(coords); i += 2 {
				cur = models.Point{X: coords[i], Y: coords[i+1]}
				points = append(points, cur)
			}
		case "m", "l":
			for i := 0; i+1 < len(coords); i += 2 {
				cur = models.Point{X: cur.X + coords[i], Y: cur.Y + coords[i+1]}
				points = append(points, cur)
			}
		case "H":
			for _, x := range coords {
				cur.X = x
				points = append(points, cur)
			}
		case "h":
			for _, dx := range coords {
				cur.X += dx
				points = append(points, cur)
			}
		case "V":
			for _, y := range coords {
				cur.Y = y
				points = append(points, cur)
			}
		case "v":
			for _, dy := range coords {
				cur.Y += dy
				points = append(points, cur)
			}
		case "Z", "z":
			if len(points) > 0 {
				cur = points[0]
				points = append(points, cur)
			}
		}
	}

	if len(points) == 0 {
		return nil, ErrEmptyPath
	}
	return points, nil
}

func parseCoords(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	// comma or whitespace separated
	s = strings.ReplaceAll(s, ",", " ")
	parts := strings.Fields(s)

	coords := make([]float64, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(part, 64)
		if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("%w: bad number %q", ErrMalformedPath, part)
		}
		coords = append(coords, val)
	}
	return coords, nil
}

// NormalizePath re-encodes d with PathPrecision fraction digits as
// absolute "M x y L x y ..." commands.
func NormalizePath(d string) (string, error) {
	points, err := ParsePath(d)
	if err != nil {
		return "", err
	}
	return EncodePath(points), nil
}
