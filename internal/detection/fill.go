package detection

import (
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/contour-mcp/internal/raster"
)

// RenderFilled draws a contour with its interior filled solid (255) into a
// new blank mask of the given size.
//
// The boundary polyline is drawn first, then the interior is filled scanline
// by scanline with the even-odd rule. Even-odd does not depend on the order in
// which points were traced, so outer borders (counter-clockwise) and hole
// borders (clockwise) both fill correctly. Pixels that fall outside the mask
// are clipped.
//
// # Scanline Rule
//
// For each row y, every non-horizontal edge whose half-open span [ymin, ymax)
// contains y contributes one crossing at its exact x. Sorted crossings are
// paired and the pixels with centres in [ceil(x0), floor(x1)] are set. The
// bottom row of each edge is excluded by the half-open rule and covered by the
// drawn boundary instead.
func RenderFilled(c Contour, width, height int) (*raster.Raster, error) {
	mask, err := raster.NewMask(width, height)
	if err != nil {
		return nil, fmt.Errorf("render contour: %w", err)
	}
	n := len(c)
	if n == 0 {
		return mask, nil
	}

	for k := 0; k < n; k++ {
		drawLine(mask, c[k], c[(k+1)%n])
	}
	if n < 3 {
		return mask, nil
	}

	b := BoundingBox(c)
	y0 := max(b.Y1, 0)
	y1 := min(b.Y2, height-1)
	xs := make([]float64, 0, 8)
	for y := y0; y <= y1; y++ {
		xs = xs[:0]
		for k := 0; k < n; k++ {
			a, e := c[k], c[(k+1)%n]
			if a.Y == e.Y {
				continue
			}
			if (a.Y <= y && y < e.Y) || (e.Y <= y && y < a.Y) {
				t := float64(y-a.Y) / float64(e.Y-a.Y)
				xs = append(xs, float64(a.X)+t*float64(e.X-a.X))
			}
		}
		sort.Float64s(xs)

		row := mask.Pix[y*width : (y+1)*width]
		for i := 0; i+1 < len(xs); i += 2 {
			from := max(int(math.Ceil(xs[i])), 0)
			to := min(int(math.Floor(xs[i+1])), width-1)
			for x := from; x <= to; x++ {
				row[x] = 0xFF
			}
		}
	}
	return mask, nil
}

// drawLine sets the pixels of the segment a-b (Bresenham), clipping to the
// mask.
func drawLine(mask *raster.Raster, a, b Point) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	err := dx + dy
	x, y := a.X, a.Y
	for {
		if x >= 0 && x < mask.Width && y >= 0 && y < mask.Height {
			mask.Pix[y*mask.Width+x] = 0xFF
		}
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
