// Package cache keeps resolved tileset atlases between map loads so switching
// back to a track does not hit the image source again.
package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tiledrace/racecore/internal/track"
)

// Resolver loads the atlas at path. A nil handle with a nil error means the
// image is absent; absent images are not cached.
type Resolver func(ctx context.Context, path string) (any, error)

// ImageCache caches resolved atlases by path. Concurrent lookups of the same
// path share one resolver call.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*track.Image
	group  singleflight.Group

	hits   SafeCounter
	misses SafeCounter
}

func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*track.Image),
	}
}

// Get returns the cached atlas for path.
func (c *ImageCache) Get(path string) (*track.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[path]
	return img, ok
}

// Add stores an atlas.
func (c *ImageCache) Add(img *track.Image) {
	if img == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[img.Path] = img
}

// Len returns the number of cached atlases.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Stats returns cache hits and misses since creation.
func (c *ImageCache) Stats() (hits, misses int) {
	return c.hits.Value(), c.misses.Value()
}

// Resolve returns the atlas for path, calling resolve on a miss. It returns
// nil without error when the resolver reports the image as absent.
func (c *ImageCache) Resolve(ctx context.Context, path string, resolve Resolver) (*track.Image, error) {
	if img, ok := c.Get(path); ok {
		c.hits.Inc()
		return img, nil
	}
	c.misses.Inc()

	v, err, _ := c.group.Do(path, func() (any, error) {
		if img, ok := c.Get(path); ok {
			return img, nil
		}
		handle, err := resolve(ctx, path)
		if err != nil || handle == nil {
			return (*track.Image)(nil), err
		}
		img := &track.Image{Path: path, Handle: handle}
		c.Add(img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*track.Image), nil
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
