package detection

import (
	"fmt"

	"github.com/ironsheep/contour-mcp/internal/raster"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Contour is the ordered boundary of one connected foreground region (an outer
// border) or of one hole inside a region (a hole border).
type Contour []Point

// Approx selects how many boundary points FindContours keeps.
type Approx int

const (
	// ApproxNone keeps every border pixel.
	ApproxNone Approx = iota

	// ApproxSimple compresses horizontal, vertical and diagonal runs down to
	// their end points.
	ApproxSimple
)

// String returns the config/tool name of the mode.
func (a Approx) String() string {
	switch a {
	case ApproxNone:
		return "none"
	case ApproxSimple:
		return "simple"
	default:
		return fmt.Sprintf("approx(%d)", int(a))
	}
}

// ParseApprox maps "none" and "simple" to their Approx value.
func ParseApprox(s string) (Approx, error) {
	switch s {
	case "none":
		return ApproxNone, nil
	case "simple", "":
		return ApproxSimple, nil
	default:
		return 0, fmt.Errorf("unknown approximation mode %q (want none or simple)", s)
	}
}

// MarshalText encodes the mode as "none" or "simple".
func (a Approx) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts the names ParseApprox accepts.
func (a *Approx) UnmarshalText(b []byte) error {
	v, err := ParseApprox(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ContourSet is the output of FindContours: the contours and the nesting
// forest over them, aligned by index.
type ContourSet struct {
	// Contours are ordered by the raster position (row, then column) of the
	// pixel where tracing started.
	Contours []Contour

	// Holes[i] is true when Contours[i] is a hole border.
	Holes []bool

	// Forest gives each contour its parent (the border immediately enclosing
	// it) and its direct children.
	Forest *Forest

	// Width and Height of the traced mask.
	Width  int
	Height int
}

// Len returns the number of contours.
func (s *ContourSet) Len() int {
	return len(s.Contours)
}

// Moore neighbourhood in clockwise order (image coordinates, y down),
// starting east.
var (
	dirDX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	dirDY = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// FindContours traces every border of the foreground in a binary mask and
// builds the full nesting tree.
//
// Parameters:
//   - mask: Single-channel raster. Any non-zero sample is foreground.
//   - approx: ApproxNone or ApproxSimple. The mode changes only the stored
//     points, never the topology.
//
// Returns:
//   - *ContourSet: Contours with their hierarchy. A mask with no foreground
//     yields an empty set and a nil error.
//   - error: raster.ErrInvalidChannel for multi-channel input.
//
// # Algorithm
//
// Topological border following (Suzuki & Abe, 1985) on 8-connected
// foreground:
//
//  1. The mask is copied into a label grid with a one-pixel zero frame. The
//     frame counts as border 1, a hole border with no parent.
//  2. A raster scan starts a new outer border at a 1-pixel whose left
//     neighbour is 0, and a new hole border at a pixel >= 1 whose right
//     neighbour is 0.
//  3. The parent of the new border follows from the type of the last border
//     met on the current row (LNBD): outer-in-hole and hole-in-outer take
//     LNBD itself, same-type pairs take LNBD's parent.
//  4. The border is followed counter-clockwise, labelling its pixels with the
//     border number (negated where the right neighbour is background) so the
//     scan neither restarts it nor mistakes it for a new border.
//
// Holes within holes appear as grandchildren, never flattened.
func FindContours(mask *raster.Raster, approx Approx) (*ContourSet, error) {
	if mask.Channels != 1 {
		return nil, fmt.Errorf("%w: contour tracing needs 1 channel, got %d",
			raster.ErrInvalidChannel, mask.Channels)
	}

	t := newTracer(mask)
	set := &ContourSet{Width: mask.Width, Height: mask.Height}

	// Border bookkeeping indexed by border number; 0 unused, 1 is the frame.
	holes := []bool{false, true}
	parents := []int{0, 0}

	for y := 1; y <= mask.Height; y++ {
		lnbd := 1
		for x := 1; x <= mask.Width; x++ {
			i := y*t.stride + x
			v := t.f[i]
			if v == 0 {
				continue
			}

			var (
				start bool
				hole  bool
				from  int
			)
			switch {
			case v == 1 && t.f[i-1] == 0:
				start, hole, from = true, false, 4
			case v >= 1 && t.f[i+1] == 0:
				start, hole, from = true, true, 0
				if v > 1 {
					lnbd = int(v)
				}
			}

			if start {
				nbd := len(holes)
				parent := parents[lnbd]
				if hole != holes[lnbd] {
					parent = lnbd
				}
				holes = append(holes, hole)
				parents = append(parents, parent)

				pts := t.follow(x, y, from, int32(nbd))
				if approx == ApproxSimple {
					pts = compress(pts)
				}
				set.Contours = append(set.Contours, pts)
				set.Holes = append(set.Holes, hole)
			}

			if v := t.f[i]; v != 1 {
				if v < 0 {
					v = -v
				}
				lnbd = int(v)
			}
		}
	}

	// Border numbers start at 2; the frame (1) maps to "no parent".
	raw := make([]int, len(set.Contours))
	for k := range raw {
		raw[k] = parents[k+2] - 2
		if raw[k] < 0 {
			raw[k] = -1
		}
	}
	forest, err := NewForest(raw)
	if err != nil {
		return nil, fmt.Errorf("build hierarchy: %w", err)
	}
	set.Forest = forest
	return set, nil
}

// tracer holds the padded label grid used during border following.
type tracer struct {
	f      []int32
	stride int
}

func newTracer(mask *raster.Raster) *tracer {
	stride := mask.Width + 2
	f := make([]int32, stride*(mask.Height+2))
	for y := 0; y < mask.Height; y++ {
		src := mask.Pix[y*mask.Width : (y+1)*mask.Width]
		dst := f[(y+1)*stride+1:]
		for x, v := range src {
			if v != 0 {
				dst[x] = 1
			}
		}
	}
	return &tracer{f: f, stride: stride}
}

func (t *tracer) at(x, y, d int) int32 {
	return t.f[(y+dirDY[d])*t.stride+x+dirDX[d]]
}

// follow traces the border that starts at (x0, y0). from is the direction of
// the background neighbour that triggered the start. Returned points are in
// unpadded mask coordinates.
func (t *tracer) follow(x0, y0, from int, nbd int32) Contour {
	start := y0*t.stride + x0

	// Clockwise from the background neighbour for the first non-zero pixel.
	d1 := -1
	for k := 0; k < 8; k++ {
		d := (from + k) & 7
		if t.at(x0, y0, d) != 0 {
			d1 = d
			break
		}
	}
	if d1 < 0 {
		t.f[start] = -nbd
		return Contour{{X: x0 - 1, Y: y0 - 1}}
	}

	x1, y1 := x0+dirDX[d1], y0+dirDY[d1]
	x3, y3 := x0, y0
	back := d1 // direction from (x3,y3) to the previous border pixel

	var pts Contour
	for {
		// Counter-clockwise from the previous pixel for the next one.
		eastZero := false
		d4 := back
		for k := 1; k <= 8; k++ {
			d := (back - k + 8) & 7
			if t.at(x3, y3, d) != 0 {
				d4 = d
				break
			}
			if d == 0 {
				eastZero = true
			}
		}

		i3 := y3*t.stride + x3
		if eastZero {
			t.f[i3] = -nbd
		} else if t.f[i3] == 1 {
			t.f[i3] = nbd
		}
		pts = append(pts, Point{X: x3 - 1, Y: y3 - 1})

		x4, y4 := x3+dirDX[d4], y3+dirDY[d4]
		if x4 == x0 && y4 == y0 && x3 == x1 && y3 == y1 {
			return pts
		}
		back = (d4 + 4) & 7
		x3, y3 = x4, y4
	}
}

// compress keeps only the points where the chain direction changes. The
// contour is treated as closed.
func compress(pts Contour) Contour {
	n := len(pts)
	if n < 3 {
		return pts
	}
	out := make(Contour, 0, 8)
	for k := 0; k < n; k++ {
		prev := pts[(k+n-1)%n]
		cur := pts[k]
		next := pts[(k+1)%n]
		if step(prev, cur) != step(cur, next) {
			out = append(out, cur)
		}
	}
	if len(out) == 0 {
		// Every step identical cannot close a loop; keep the input.
		return pts
	}
	return out
}

func step(a, b Point) Point {
	return Point{X: sign(b.X - a.X), Y: sign(b.Y - a.Y)}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
