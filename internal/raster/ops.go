package raster

import (
	"fmt"
	"sync/atomic"

	"github.com/anthonynsimon/bild/parallel"
)

// Luma weights for RGB -> gray in 14-bit fixed point (ITU-R BT.601:
// 0.299, 0.587, 0.114). Rounding adds half of the scale before shifting.
const (
	lumaShift = 14
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
	lumaRound = 1 << (lumaShift - 1)
)

// Split separates a raster into one single-channel raster per channel.
//
// For a 4-channel RGBA raster the result is [R, G, B, A].
func Split(src *Raster) ([]*Raster, error) {
	planes := make([]*Raster, src.Channels)
	for c := range planes {
		p, err := New(src.Width, src.Height, 1)
		if err != nil {
			return nil, err
		}
		planes[c] = p
	}

	n := src.Channels
	parallel.Line(src.Height, func(start, end int) {
		for y := start; y < end; y++ {
			row := y * src.Width
			for x := 0; x < src.Width; x++ {
				i := (row + x) * n
				for c := 0; c < n; c++ {
					planes[c].Pix[row+x] = src.Pix[i+c]
				}
			}
		}
	})
	return planes, nil
}

// BuildMask applies a fixed binary threshold to a single-channel raster.
//
// Output samples are 255 where the input is strictly greater than cutoff and 0
// elsewhere. Returns ErrInvalidChannel for multi-channel input.
func BuildMask(channel *Raster, cutoff uint8) (*Raster, error) {
	if channel.Channels != 1 {
		return nil, fmt.Errorf("%w: threshold needs 1 channel, got %d", ErrInvalidChannel, channel.Channels)
	}
	dst, err := NewMask(channel.Width, channel.Height)
	if err != nil {
		return nil, err
	}
	w := channel.Width
	parallel.Line(channel.Height, func(start, end int) {
		for i := start * w; i < end*w; i++ {
			if channel.Pix[i] > cutoff {
				dst.Pix[i] = 0xFF
			}
		}
	})
	return dst, nil
}

// ApplyMask ANDs every channel of src with the mask sample at the same pixel.
func ApplyMask(src, mask *Raster) (*Raster, error) {
	if mask.Channels != 1 {
		return nil, fmt.Errorf("%w: mask needs 1 channel, got %d", ErrInvalidChannel, mask.Channels)
	}
	if !src.SameSize(mask) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch,
			src.Width, src.Height, mask.Width, mask.Height)
	}
	dst, err := New(src.Width, src.Height, src.Channels)
	if err != nil {
		return nil, err
	}
	n := src.Channels
	parallel.Line(src.Height, func(start, end int) {
		for p := start * src.Width; p < end*src.Width; p++ {
			m := mask.Pix[p]
			for c := 0; c < n; c++ {
				dst.Pix[p*n+c] = src.Pix[p*n+c] & m
			}
		}
	})
	return dst, nil
}

// Gray reduces a raster to one channel.
//
// 3- and 4-channel rasters are treated as RGB(A) and converted with the
// BT.601 luma weights in 14-bit fixed point; alpha is ignored. A
// single-channel raster is copied. Any other layout returns ErrInvalidChannel.
func Gray(src *Raster) (*Raster, error) {
	switch src.Channels {
	case 1:
		return src.Clone(), nil
	case 3, 4:
	default:
		return nil, fmt.Errorf("%w: gray conversion needs 1, 3 or 4 channels, got %d",
			ErrInvalidChannel, src.Channels)
	}
	dst, err := NewMask(src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	n := src.Channels
	parallel.Line(src.Height, func(start, end int) {
		for p := start * src.Width; p < end*src.Width; p++ {
			i := p * n
			r, g, b := uint32(src.Pix[i]), uint32(src.Pix[i+1]), uint32(src.Pix[i+2])
			dst.Pix[p] = uint8((r*lumaR + g*lumaG + b*lumaB + lumaRound) >> lumaShift)
		}
	})
	return dst, nil
}

// Composite masks src, reduces the result to gray and thresholds it again with
// the given cutoff, yielding a binary mask.
func Composite(src, mask *Raster, cutoff uint8) (*Raster, error) {
	masked, err := ApplyMask(src, mask)
	if err != nil {
		return nil, fmt.Errorf("apply mask: %w", err)
	}
	gray, err := Gray(masked)
	if err != nil {
		return nil, fmt.Errorf("gray: %w", err)
	}
	return BuildMask(gray, cutoff)
}

// And computes the bitwise AND of two single-channel rasters.
func And(a, b *Raster) (*Raster, error) {
	if a.Channels != 1 || b.Channels != 1 {
		return nil, fmt.Errorf("%w: and needs 1 channel, got %d and %d",
			ErrInvalidChannel, a.Channels, b.Channels)
	}
	if !a.SameSize(b) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch,
			a.Width, a.Height, b.Width, b.Height)
	}
	dst, err := NewMask(a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	w := a.Width
	parallel.Line(a.Height, func(start, end int) {
		for i := start * w; i < end*w; i++ {
			dst.Pix[i] = a.Pix[i] & b.Pix[i]
		}
	})
	return dst, nil
}

// CountNonZero returns the number of non-zero samples in a single-channel
// raster.
func CountNonZero(r *Raster) (int, error) {
	if r.Channels != 1 {
		return 0, fmt.Errorf("%w: count needs 1 channel, got %d", ErrInvalidChannel, r.Channels)
	}
	var total atomic.Int64
	w := r.Width
	parallel.Line(r.Height, func(start, end int) {
		n := 0
		for i := start * w; i < end*w; i++ {
			if r.Pix[i] != 0 {
				n++
			}
		}
		total.Add(int64(n))
	})
	return int(total.Load()), nil
}

// FillRect sets every sample of a single-channel raster inside rect to value.
// The rectangle is clipped to the raster; a rectangle entirely outside leaves
// the raster unchanged.
func FillRect(r *Raster, rect Rect, value uint8) error {
	if r.Channels != 1 {
		return fmt.Errorf("%w: fill needs 1 channel, got %d", ErrInvalidChannel, r.Channels)
	}
	clip := rect.Intersect(r.Bounds())
	if clip.Empty() {
		return nil
	}
	for y := clip.Top; y <= clip.Bottom; y++ {
		row := r.Pix[y*r.Width : (y+1)*r.Width]
		for x := clip.Left; x <= clip.Right; x++ {
			row[x] = value
		}
	}
	return nil
}
