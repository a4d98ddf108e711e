package detection

import (
	"errors"
	"math"
)

// ErrNotFound is returned by SelectLeaf when no contour passes the area filter
// with all of its children filtered out.
var ErrNotFound = errors.New("no leaf contour satisfies the selection criteria")

// Area returns the absolute area enclosed by a closed polygon, computed with
// the shoelace formula over its points. Fewer than three points enclose
// nothing.
//
// Points are pixel centres, so a w×h block of pixels traced as a contour has
// area (w-1)×(h-1), not w×h.
func Area(c Contour) float64 {
	n := len(c)
	if n < 3 {
		return 0
	}
	var sum int64
	for k := 0; k < n; k++ {
		a, b := c[k], c[(k+1)%n]
		sum += int64(a.X)*int64(b.Y) - int64(b.X)*int64(a.Y)
	}
	return math.Abs(float64(sum)) / 2
}

// Bounds represents a rectangular bounding box in pixel coordinates, all
// sides inclusive.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// BoundingBox returns the smallest box containing every point of c. An empty
// contour yields the zero Bounds.
func BoundingBox(c Contour) Bounds {
	if len(c) == 0 {
		return Bounds{}
	}
	b := Bounds{X1: c[0].X, Y1: c[0].Y, X2: c[0].X, Y2: c[0].Y}
	for _, p := range c[1:] {
		b.X1 = min(b.X1, p.X)
		b.Y1 = min(b.Y1, p.Y)
		b.X2 = max(b.X2, p.X)
		b.Y2 = max(b.Y2, p.Y)
	}
	return b
}

// Alive tags each contour: true when its area is at least minArea. The
// contours themselves are left untouched.
func Alive(contours []Contour, minArea float64) []bool {
	alive := make([]bool, len(contours))
	for i, c := range contours {
		alive[i] = Area(c) >= minArea
	}
	return alive
}

// SelectLeaf returns the index of the first contour, in contour order, that is
// alive and whose children are all dead.
//
// This is a leaf of the forest induced by the alive contours, not necessarily
// a leaf of the raw hierarchy: a region whose only holes are specks still
// qualifies. Returns ErrNotFound when no contour qualifies, including for an
// empty set.
func SelectLeaf(set *ContourSet, minArea float64) (int, error) {
	alive := Alive(set.Contours, minArea)
	for i := range set.Contours {
		if !alive[i] {
			continue
		}
		leaf := true
		for _, c := range set.Forest.Children(i) {
			if alive[c] {
				leaf = false
				break
			}
		}
		if leaf {
			return i, nil
		}
	}
	return -1, ErrNotFound
}
