package raster

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidChannel is returned when an operation receives a raster with a
	// channel count it cannot work on (e.g. a 4-channel raster passed to
	// BuildMask).
	ErrInvalidChannel = errors.New("invalid channel count")

	// ErrDimensionMismatch is returned when two rasters of different width or
	// height are combined.
	ErrDimensionMismatch = errors.New("raster dimensions do not match")
)

// Raster is a rectangular grid of 8-bit samples.
type Raster struct {
	// Width is the number of columns.
	Width int `json:"width"`

	// Height is the number of rows.
	Height int `json:"height"`

	// Channels is the number of interleaved samples per pixel (1, 3 or 4).
	Channels int `json:"channels"`

	// Pix holds Width*Height*Channels samples, row-major and interleaved.
	Pix []byte `json:"-"`
}

// New allocates a zeroed raster.
func New(width, height, channels int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if channels < 1 || channels > 4 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, channels)
	}
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}, nil
}

// NewMask allocates a zeroed single-channel raster.
func NewMask(width, height int) (*Raster, error) {
	return New(width, height, 1)
}

// FromPix wraps an existing sample buffer. The buffer is not copied.
func FromPix(width, height, channels int, pix []byte) (*Raster, error) {
	r := &Raster{Width: width, Height: height, Channels: channels, Pix: pix}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if channels < 1 || channels > 4 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, channels)
	}
	if want := width * height * channels; len(pix) != want {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d for %dx%dx%d",
			len(pix), want, width, height, channels)
	}
	return r, nil
}

// FromImage converts any decoded image into a 4-channel, non-premultiplied
// RGBA raster. The image origin is moved to (0,0).
func FromImage(img image.Image) (*Raster, error) {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	r, err := New(b.Dx(), b.Dy(), 4)
	if err != nil {
		return nil, err
	}
	rowLen := r.Width * 4
	for y := 0; y < r.Height; y++ {
		copy(r.Pix[y*rowLen:(y+1)*rowLen], nrgba.Pix[y*nrgba.Stride:y*nrgba.Stride+rowLen])
	}
	return r, nil
}

// Image returns the raster as a standard library image: *image.Gray for one
// channel and *image.NRGBA otherwise (3-channel rasters get an opaque alpha).
// The returned image does not share memory with the raster.
func (r *Raster) Image() image.Image {
	bounds := image.Rect(0, 0, r.Width, r.Height)
	switch r.Channels {
	case 1:
		g := image.NewGray(bounds)
		copy(g.Pix, r.Pix)
		return g
	case 4:
		n := image.NewNRGBA(bounds)
		copy(n.Pix, r.Pix)
		return n
	default:
		n := image.NewNRGBA(bounds)
		for i, j := 0, 0; i < len(r.Pix); i, j = i+r.Channels, j+4 {
			n.Pix[j] = r.Pix[i]
			if r.Channels >= 2 {
				n.Pix[j+1] = r.Pix[i+1]
			}
			if r.Channels >= 3 {
				n.Pix[j+2] = r.Pix[i+2]
			}
			n.Pix[j+3] = 0xFF
		}
		return n
	}
}

// At returns the sample of channel c at (x, y). No bounds checking.
func (r *Raster) At(x, y, c int) uint8 {
	return r.Pix[(y*r.Width+x)*r.Channels+c]
}

// Set stores the sample of channel c at (x, y). No bounds checking.
func (r *Raster) Set(x, y, c int, v uint8) {
	r.Pix[(y*r.Width+x)*r.Channels+c] = v
}

// Clone returns a deep copy of the raster.
func (r *Raster) Clone() *Raster {
	pix := make([]byte, len(r.Pix))
	copy(pix, r.Pix)
	return &Raster{Width: r.Width, Height: r.Height, Channels: r.Channels, Pix: pix}
}

// SameSize reports whether two rasters have equal width and height.
func (r *Raster) SameSize(o *Raster) bool {
	return r.Width == o.Width && r.Height == o.Height
}

// Bounds returns the rectangle covering the whole raster.
func (r *Raster) Bounds() Rect {
	return Rect{Top: 0, Left: 0, Bottom: r.Height - 1, Right: r.Width - 1}
}

// Rect is an axis-aligned rectangle with inclusive bounds on every side.
type Rect struct {
	Top    int `json:"top" yaml:"top" mapstructure:"top"`
	Left   int `json:"left" yaml:"left" mapstructure:"left"`
	Bottom int `json:"bottom" yaml:"bottom" mapstructure:"bottom"`
	Right  int `json:"right" yaml:"right" mapstructure:"right"`
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Bottom < r.Top || r.Right < r.Left
}

// Intersect returns the overlap of two rectangles. The result may be Empty.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		Top:    max(r.Top, o.Top),
		Left:   max(r.Left, o.Left),
		Bottom: min(r.Bottom, o.Bottom),
		Right:  min(r.Right, o.Right),
	}
}

// Area returns the number of pixels covered by the rectangle.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return (r.Bottom - r.Top + 1) * (r.Right - r.Left + 1)
}

// String formats the rectangle as "top,left,bottom,right".
func (r Rect) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.Top, r.Left, r.Bottom, r.Right)
}

// ParseRect parses the "top,left,bottom,right" form produced by String.
func ParseRect(s string) (Rect, error) {
	var r Rect
	if _, err := fmt.Sscanf(s, "%d,%d,%d,%d", &r.Top, &r.Left, &r.Bottom, &r.Right); err != nil {
		return Rect{}, fmt.Errorf("invalid rectangle %q (want top,left,bottom,right): %w", s, err)
	}
	if r.Empty() {
		return Rect{}, fmt.Errorf("invalid rectangle %q: bottom < top or right < left", s)
	}
	return r, nil
}
