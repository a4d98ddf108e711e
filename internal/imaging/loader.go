package imaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/contour-mcp/internal/raster"
)

// ImageCache provides thread-safe caching of loaded rasters to avoid redundant
// disk reads and decodes.
//
// The cache stores decoded 4-channel rasters keyed by their file path. Once a
// file is loaded, subsequent Load() calls for the same path return the cached
// raster without disk I/O. Cached rasters are shared; callers must not modify
// them.
//
// # Memory Management
//
// Cached rasters remain in memory until explicitly removed via Evict() or
// Clear(). A 4-channel raster costs width*height*4 bytes.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	src, err := cache.Load("testdata/square.rgba")
//	if err != nil {
//	    return err
//	}
//	report, err := p.Run(src, pipeline.DefaultOptions())
type ImageCache struct {
	mu      sync.RWMutex
	rasters map[string]*raster.Raster
}

// NewImageCache creates and initializes a new empty raster cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		rasters: make(map[string]*raster.Raster),
	}
}

// Load retrieves a raster from the cache or loads it from disk if not cached.
//
// Parameters:
//   - path: Path to the image. Files ending in ".rgba" are raw interleaved
//     RGBA bytes whose geometry comes from the sibling ".json" written by
//     ImageMagick. Anything else is decoded by extension (PNG, JPEG, GIF).
//
// Returns:
//   - *raster.Raster: A 4-channel non-premultiplied raster.
//   - error: Non-nil if the file cannot be opened or decoded.
//
// The raster is cached using the exact path string provided. Different paths
// to the same file result in separate cache entries.
func (c *ImageCache) Load(path string) (*raster.Raster, error) {
	c.mu.RLock()
	if r, ok := c.rasters[path]; ok {
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	r, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rasters[path] = r
	c.mu.Unlock()

	return r, nil
}

// Clear removes all rasters from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.rasters = make(map[string]*raster.Raster)
	c.mu.Unlock()
}

// Evict removes a specific raster from the cache by its path. If the path is
// not cached, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.rasters, path)
	c.mu.Unlock()
}

// Len returns the number of cached rasters.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rasters)
}

// LoadFile reads path without caching. See ImageCache.Load for the accepted
// formats.
func LoadFile(path string) (*raster.Raster, error) {
	if strings.EqualFold(filepath.Ext(path), ".rgba") {
		return LoadRGBA(path, MetaPath(path))
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	r, err := raster.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	return r, nil
}

// ImageInfo contains metadata about a loaded raster.
type ImageInfo struct {
	// Width is the raster width in pixels.
	Width int `json:"width"`

	// Height is the raster height in pixels.
	Height int `json:"height"`

	// Channels is always 4 for loaded images.
	Channels int `json:"channels"`

	// Format is "rgba", "png", "jpeg", "gif" or "unknown", by file extension.
	Format string `json:"format"`

	// HasAlpha is true when at least one pixel is not fully opaque.
	HasAlpha bool `json:"has_alpha"`

	// OpaquePixels counts pixels whose alpha is 255.
	OpaquePixels int `json:"opaque_pixels"`

	// TransparentPixels counts pixels whose alpha is 0.
	TransparentPixels int `json:"transparent_pixels"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through cache and reports its geometry and
// alpha coverage.
//
// Parameters:
//   - cache: The raster cache to use for loading. Must not be nil.
//   - path: Path to the image file.
//
// Returns:
//   - *ImageInfo: Metadata about the image.
//   - error: Non-nil if the image cannot be loaded or the file cannot be stat'd.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	r, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rgba":
		format = "rgba"
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	}

	info := &ImageInfo{
		Width:         r.Width,
		Height:        r.Height,
		Channels:      r.Channels,
		Format:        format,
		FileSizeBytes: stat.Size(),
	}
	for i := 3; i < len(r.Pix); i += r.Channels {
		switch r.Pix[i] {
		case 255:
			info.OpaquePixels++
		case 0:
			info.TransparentPixels++
		}
	}
	info.HasAlpha = info.OpaquePixels < r.Width*r.Height
	return info, nil
}
