package pagecache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"mime"
	"net/http"
	"path"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"

	"blueprint-annotator/internal/annotator/models"
)

var ErrUnsupportedMedia = errors.New("unsupported blueprint media type")

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// DetectMedia classifies a source by its declared content type, then by
// the URI extension, then by sniffing the bytes.
func DetectMedia(uri, contentType string, data []byte) (models.MediaType, error) {
	if mt, ok := mediaFromContentType(contentType); ok {
		return mt, nil
	}

	ext := strings.ToLower(path.Ext(stripQuery(uri)))
	if ext == ".pdf" {
		return models.MediaDocument, nil
	}
	if imageExtensions[ext] {
		return models.MediaImage, nil
	}

	if len(data) > 0 {
		if mt, ok := mediaFromContentType(http.DetectContentType(data)); ok {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, uri)
}

func mediaFromContentType(contentType string) (models.MediaType, bool) {
	if contentType == "" {
		return "", false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return models.MediaImage, true
	case mt == "application/pdf":
		return models.MediaDocument, true
	}
	return "", false
}

func stripQuery(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		return uri[:i]
	}
	return uri
}

// ============================================================
// Aspect ratio probing
// ============================================================

// ImageAspect reads only the image header.
func ImageAspect(data []byte) (float64, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, fmt.Errorf("image has no area: %dx%d", cfg.Width, cfg.Height)
	}
	return float64(cfg.Width) / float64(cfg.Height), nil
}

// DocumentAspect is the width/height of the first page's media box, as
// displayed after the page rotation.
func DocumentAspect(data []byte) (float64, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("open document: %w", err)
	}
	defer r.Close()

	_, page, err := pagetree.GetPage(r, 0)
	if err != nil {
		return 0, fmt.Errorf("first page: %w", err)
	}

	box, err := pdf.GetRectangle(r, page["MediaBox"])
	if err != nil {
		return 0, fmt.Errorf("media box: %w", err)
	}
	if box == nil {
		return 0, errors.New("page has no media box")
	}
	w := math.Abs(box.URx - box.LLx)
	h := math.Abs(box.URy - box.LLy)
	if w == 0 || h == 0 {
		return 0, fmt.Errorf("empty media box %vx%v", w, h)
	}

	rotate, err := pdf.GetInteger(r, page["Rotate"])
	if err == nil {
		if deg := ((int(rotate) % 360) + 360) % 360; deg == 90 || deg == 270 {
			w, h = h, w
		}
	}
	return w / h, nil
}
