// Package pagecache resolves blueprint page URIs to renderable sources
// and memoises them by URI.
package pagecache

import (
	"context"
	"fmt"
	"log"
	"sync"

	"blueprint-annotator/internal/annotator/models"
)

// Entry is a resolved page source.
type Entry struct {
	URI         string           `json:"uri"`
	Source      string           `json:"source"`
	MediaType   models.MediaType `json:"mediaType"`
	ContentType string           `json:"contentType,omitempty"`
	AspectRatio float64          `json:"aspectRatio"`
	Size        int              `json:"size"`

	data []byte
}

// Data is the raw source. Callers must not modify it.
func (e *Entry) Data() []byte {
	return e.data
}

type call struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// Cache holds resolved entries until they are evicted. Concurrent misses
// for the same URI share one fetch; failed fetches are not remembered.
type Cache struct {
	fetcher      Fetcher
	defaultRatio float64

	mu       sync.Mutex
	entries  map[string]*Entry
	inflight map[string]*call
}

// New creates a cache. defaultRatio is used for documents whose page
// size cannot be read.
func New(fetcher Fetcher, defaultRatio float64) *Cache {
	return &Cache{
		fetcher:      fetcher,
		defaultRatio: defaultRatio,
		entries:      make(map[string]*Entry),
		inflight:     make(map[string]*call),
	}
}

// Lookup returns a previously resolved entry without fetching.
func (c *Cache) Lookup(uri string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uri]
	return e, ok
}

// Resolve returns the cached entry for uri, fetching and probing it on
// the first call.
func (c *Cache) Resolve(ctx context.Context, uri string) (*Entry, error) {
	c.mu.Lock()
	if e, ok := c.entries[uri]; ok {
		c.mu.Unlock()
		return e, nil
	}
	if cl, ok := c.inflight[uri]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.entry, cl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[uri] = cl
	c.mu.Unlock()

	cl.entry, cl.err = c.load(ctx, uri)

	c.mu.Lock()
	if c.inflight[uri] == cl {
		delete(c.inflight, uri)
		if cl.err == nil {
			c.entries[uri] = cl.entry
		}
	}
	c.mu.Unlock()
	close(cl.done)

	return cl.entry, cl.err
}

func (c *Cache) load(ctx context.Context, uri string) (*Entry, error) {
	log.Printf("[CACHE] miss %s", uri)

	res, err := c.fetcher.Fetch(ctx, uri)
	if err != nil {
		log.Printf("[CACHE] fetch failed %s: %v", uri, err)
		return nil, err
	}

	media, err := DetectMedia(uri, res.ContentType, res.Data)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		URI:         uri,
		Source:      res.Location,
		MediaType:   media,
		ContentType: res.ContentType,
		Size:        len(res.Data),
		data:        res.Data,
	}

	switch media {
	case models.MediaImage:
		ratio, err := ImageAspect(res.Data)
		if err != nil {
			return nil, fmt.Errorf("measure %s: %w", uri, err)
		}
		entry.AspectRatio = ratio
	case models.MediaDocument:
		ratio, err := DocumentAspect(res.Data)
		if err != nil {
			log.Printf("[CACHE] %s: %v, using default ratio %v", uri, err, c.defaultRatio)
			ratio = c.defaultRatio
		}
		entry.AspectRatio = ratio
	}

	log.Printf("[CACHE] resolved %s (%s, ratio %.4f)", uri, media, entry.AspectRatio)
	return entry, nil
}

// Evict forgets uri. A fetch already in flight for it completes but is
// not stored.
func (c *Cache) Evict(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[uri]
	delete(c.entries, uri)
	delete(c.inflight, uri)
	if ok {
		log.Printf("[CACHE] evicted %s", uri)
	}
	return ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
