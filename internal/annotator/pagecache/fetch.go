package pagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxSourceSize bounds how much of a blueprint source is read.
const MaxSourceSize = 64 << 20

var ErrSourceTooLarge = errors.New("blueprint source too large")

// Resource is a fetched blueprint source.
type Resource struct {
	Data        []byte
	ContentType string
	// Location is where the bytes were read from: a URL or a local path.
	Location string
}

// Fetcher loads the bytes behind a page URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*Resource, error)
}

// FetchError reports a failed fetch. It is never cached.
type FetchError struct {
	URI    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URI, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ============================================================
// HTTP
// ============================================================

type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URI: uri, Status: resp.StatusCode}
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}

	return &Resource{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Location:    uri,
	}, nil
}

// ============================================================
// Local files
// ============================================================

// FileFetcher reads page sources below a root directory. URIs are either
// file:// URLs or paths relative to the root.
type FileFetcher struct {
	root string
}

func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{root: root}
}

func (f *FileFetcher) Path(uri string) (string, error) {
	rel := uri
	if strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		rel = u.Host + u.Path
	}

	root, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes blueprint root", uri)
	}
	return path, nil
}

func (f *FileFetcher) Fetch(ctx context.Context, uri string) (*Resource, error) {
	path, err := f.Path(uri)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}

	return &Resource{Data: data, Location: path}, nil
}

// ============================================================
// Dispatch
// ============================================================

// MultiFetcher sends http(s) URIs to Remote and everything else to Local.
type MultiFetcher struct {
	Remote Fetcher
	Local  Fetcher
}

func (m *MultiFetcher) Fetch(ctx context.Context, uri string) (*Resource, error) {
	if IsRemote(uri) {
		return m.Remote.Fetch(ctx, uri)
	}
	return m.Local.Fetch(ctx, uri)
}

func IsRemote(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSourceSize {
		return nil, ErrSourceTooLarge
	}
	return data, nil
}
