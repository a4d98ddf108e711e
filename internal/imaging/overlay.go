package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/contour-mcp/internal/raster"
)

// Overlay defaults.
const (
	DefaultRegionColor = "#00FF00"
	DefaultRectColor   = "#FF0000"
	DefaultOpacity     = 0.4
)

// OverlayOptions controls how RenderOverlay draws the selected region and the
// reference rectangle over the source.
type OverlayOptions struct {
	// RegionColor tints pixels inside the region ("#RRGGBB" or "#RGB").
	RegionColor string

	// RectColor draws the rectangle outline.
	RectColor string

	// Opacity of the region tint, 0 to 1.
	Opacity float64

	// Crop, when set, limits the output to this rectangle (clipped to the
	// image).
	Crop *raster.Rect

	// Scale resizes the output. 0 and 1 mean no resize.
	Scale float64
}

// DefaultOverlayOptions returns green region tint, red rectangle, 40% opacity.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		RegionColor: DefaultRegionColor,
		RectColor:   DefaultRectColor,
		Opacity:     DefaultOpacity,
		Scale:       1,
	}
}

// OverlayResult contains a rendered PNG
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// RenderOverlay flattens src onto black, tints every pixel where region is
// set and outlines rect. region may be nil, in which case only the rectangle
// is drawn.
func RenderOverlay(src, region *raster.Raster, rect raster.Rect, opts OverlayOptions) (*image.NRGBA, error) {
	if src.Channels != 4 {
		return nil, fmt.Errorf("%w: overlay needs a 4-channel source, got %d", raster.ErrInvalidChannel, src.Channels)
	}
	if region != nil {
		if region.Channels != 1 {
			return nil, fmt.Errorf("%w: region must be a mask, got %d channels", raster.ErrInvalidChannel, region.Channels)
		}
		if !src.SameSize(region) {
			return nil, fmt.Errorf("%w: source %dx%d, region %dx%d", raster.ErrDimensionMismatch,
				src.Width, src.Height, region.Width, region.Height)
		}
	}

	tint, err := parseColor(opts.RegionColor, DefaultRegionColor)
	if err != nil {
		return nil, err
	}
	edge, err := parseColor(opts.RectColor, DefaultRectColor)
	if err != nil {
		return nil, err
	}
	opacity := min(max(opts.Opacity, 0), 1)

	w, h := src.Width, src.Height
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				i := (y*w + x) * 4
				a := float64(src.Pix[i+3]) / 255
				c := colorful.Color{
					R: float64(src.Pix[i]) / 255 * a,
					G: float64(src.Pix[i+1]) / 255 * a,
					B: float64(src.Pix[i+2]) / 255 * a,
				}
				if region != nil && region.Pix[y*w+x] != 0 {
					c = c.BlendRgb(tint, opacity)
				}
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.RGB255()
				out.Pix[i+3] = 0xFF
			}
		}
	})

	outlineRect(out, rect, edge)

	var img image.Image = out
	if opts.Crop != nil {
		c := opts.Crop.Intersect(src.Bounds())
		if c.Empty() {
			return nil, fmt.Errorf("crop %s lies outside the %dx%d image", opts.Crop, w, h)
		}
		img = imaging.Crop(img, image.Rect(c.Left, c.Top, c.Right+1, c.Bottom+1))
	}
	if opts.Scale > 0 && opts.Scale != 1 {
		b := img.Bounds()
		nw := max(int(float64(b.Dx())*opts.Scale), 1)
		nh := max(int(float64(b.Dy())*opts.Scale), 1)
		img = imaging.Resize(img, nw, nh, imaging.NearestNeighbor)
	}
	return imaging.Clone(img), nil
}

// Overlay renders the overlay and encodes it as base64 PNG.
func Overlay(src, region *raster.Raster, rect raster.Rect, opts OverlayOptions) (*OverlayResult, error) {
	img, err := RenderOverlay(src, region, rect, opts)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (*OverlayResult, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	b := img.Bounds()
	return &OverlayResult{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Save writes img to path in the format implied by its extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// parseColor parses a hex color, using fallback for the empty string.
func parseColor(hex, fallback string) (colorful.Color, error) {
	if hex == "" {
		hex = fallback
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return c, nil
}

// outlineRect draws the one-pixel border of rect, clipped to img.
func outlineRect(img *image.NRGBA, rect raster.Rect, c colorful.Color) {
	b := img.Bounds()
	clip := rect.Intersect(raster.Rect{Top: 0, Left: 0, Bottom: b.Dy() - 1, Right: b.Dx() - 1})
	if clip.Empty() {
		return
	}
	r, g, bl := c.RGB255()
	set := func(x, y int) {
		i := img.PixOffset(x, y)
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, g, bl, 0xFF
	}
	for x := clip.Left; x <= clip.Right; x++ {
		if rect.Top == clip.Top {
			set(x, rect.Top)
		}
		if rect.Bottom == clip.Bottom {
			set(x, rect.Bottom)
		}
	}
	for y := clip.Top; y <= clip.Bottom; y++ {
		if rect.Left == clip.Left {
			set(rect.Left, y)
		}
		if rect.Right == clip.Right {
			set(rect.Right, y)
		}
	}
}
