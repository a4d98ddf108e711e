package detection

import (
	"fmt"

	"github.com/ironsheep/contour-mcp/internal/raster"
)

// Containment is the outcome of VerifyContainment.
type Containment struct {
	// IntersectionCount is the number of rectangle pixels also set in the
	// region.
	IntersectionCount int `json:"intersection_count" yaml:"intersection_count"`

	// RectCount is the number of pixels of the rectangle inside the mask.
	RectCount int `json:"rect_count" yaml:"rect_count"`

	// Contained is true when IntersectionCount == RectCount.
	Contained bool `json:"contained" yaml:"contained"`
}

// VerifyContainment checks that every pixel of rect is set in region.
//
// The rectangle (inclusive bounds) is filled into a blank mask the size of
// region, ANDed with region, and the non-zero counts compared. The test is an
// exact subset test: a single missing pixel fails it. Parts of the rectangle
// outside the mask are clipped before counting.
func VerifyContainment(region *raster.Raster, rect raster.Rect) (*Containment, error) {
	if region.Channels != 1 {
		return nil, fmt.Errorf("%w: region needs 1 channel, got %d", raster.ErrInvalidChannel, region.Channels)
	}
	rectMask, err := raster.NewMask(region.Width, region.Height)
	if err != nil {
		return nil, err
	}
	if err := raster.FillRect(rectMask, rect, 0xFF); err != nil {
		return nil, err
	}
	rectCount, err := raster.CountNonZero(rectMask)
	if err != nil {
		return nil, err
	}

	inter, err := raster.And(region, rectMask)
	if err != nil {
		return nil, fmt.Errorf("intersect: %w", err)
	}
	interCount, err := raster.CountNonZero(inter)
	if err != nil {
		return nil, err
	}

	return &Containment{
		IntersectionCount: interCount,
		RectCount:         rectCount,
		Contained:         interCount == rectCount,
	}, nil
}
