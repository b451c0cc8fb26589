package cache

import (
	"time"

	"github.com/maypok86/otter/v2"
)

// Cache remembers which variant an HLS master playlist resolved to, so
// playlists that list the same master many times fetch it once per run.
type Cache struct {
	variants *otter.Cache[string, string] // master URL -> selected variant URL
}

// NewCache creates a cache holding at most maxEntries resolutions, each
// valid for ttl after it was written.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		variants: otter.Must(&otter.Options[string, string]{
			MaximumSize:      maxEntries,
			ExpiryCalculator: otter.ExpiryWriting[string, string](ttl),
		}),
	}
}

// GetVariant returns the cached variant URL for a master playlist URL.
func (c *Cache) GetVariant(masterURL string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.variants.GetIfPresent(masterURL)
}

// SetVariant stores the variant URL selected for a master playlist URL.
func (c *Cache) SetVariant(masterURL, variantURL string) {
	if c == nil {
		return
	}
	c.variants.Set(masterURL, variantURL)
}

// Len reports the number of cached resolutions.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.variants.EstimatedSize()
}
