package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/contour-mcp/internal/raster"
)

func countSet(t *testing.T, m *raster.Raster) int {
	t.Helper()
	n, err := raster.CountNonZero(m)
	require.NoError(t, err)
	return n
}

func TestRenderFilled_ReproducesRegion(t *testing.T) {
	shapes := map[string]*raster.Raster{
		"block": blockMask(t, 30, 20, raster.Rect{Top: 3, Left: 4, Bottom: 15, Right: 25}),
		"u-shape": maskFromRows(t,
			"..........",
			".##..##...",
			".##..##...",
			".######...",
			".######...",
			"..........",
		),
		"l-shape": maskFromRows(t,
			"........",
			".##.....",
			".##.....",
			".#####..",
			".#####..",
			"........",
		),
		"plus": maskFromRows(t,
			".........",
			"...###...",
			"...###...",
			".#######.",
			".#######.",
			"...###...",
			"...###...",
			".........",
		),
	}

	for name, m := range shapes {
		for _, approx := range []Approx{ApproxNone, ApproxSimple} {
			t.Run(name+"/"+approx.String(), func(t *testing.T) {
				set, err := FindContours(m, approx)
				require.NoError(t, err)
				require.Equal(t, 1, set.Len())

				filled, err := RenderFilled(set.Contours[0], m.Width, m.Height)
				require.NoError(t, err)
				assert.Equal(t, m.Pix, filled.Pix)
			})
		}
	}
}

func TestRenderFilled_OuterBorderCoversHoles(t *testing.T) {
	set, err := FindContours(nestedMask(t), ApproxSimple)
	require.NoError(t, err)

	filled, err := RenderFilled(set.Contours[0], 11, 11)
	require.NoError(t, err)
	assert.Equal(t, 9*9, countSet(t, filled))
}

func TestRenderFilled_HoleBorder(t *testing.T) {
	set, err := FindContours(nestedMask(t), ApproxSimple)
	require.NoError(t, err)
	require.True(t, set.Holes[1])

	// The hole border runs through the foreground ring around the hole, so
	// its fill covers the hole and lies inside the outer fill.
	hole, err := RenderFilled(set.Contours[1], 11, 11)
	require.NoError(t, err)
	outer, err := RenderFilled(set.Contours[0], 11, 11)
	require.NoError(t, err)

	for y := 3; y <= 7; y++ {
		for x := 3; x <= 7; x++ {
			assert.Equal(t, uint8(0xFF), hole.At(x, y, 0), "hole pixel (%d,%d)", x, y)
		}
	}
	inter, err := raster.And(hole, outer)
	require.NoError(t, err)
	assert.Equal(t, countSet(t, hole), countSet(t, inter))
}

func TestRenderFilled_Clipped(t *testing.T) {
	c := Contour{{-5, -5}, {-5, 4}, {4, 4}, {4, -5}}
	m, err := RenderFilled(c, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 5*5, countSet(t, m))
}

func TestRenderFilled_Degenerate(t *testing.T) {
	m, err := RenderFilled(nil, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, countSet(t, m))

	m, err = RenderFilled(Contour{{2, 2}}, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, countSet(t, m))

	m, err = RenderFilled(Contour{{0, 1}, {4, 1}}, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, countSet(t, m))

	_, err = RenderFilled(Contour{{0, 0}}, 0, 5)
	assert.Error(t, err)
}

func TestVerifyContainment(t *testing.T) {
	rect := raster.Rect{Top: 10, Left: 20, Bottom: 30, Right: 60}

	exact := blockMask(t, 100, 50, rect)
	res, err := VerifyContainment(exact, rect)
	require.NoError(t, err)
	assert.True(t, res.Contained)
	assert.Equal(t, rect.Area(), res.RectCount)
	assert.Equal(t, res.RectCount, res.IntersectionCount)

	shrunk := blockMask(t, 100, 50, raster.Rect{
		Top: rect.Top + 1, Left: rect.Left + 1, Bottom: rect.Bottom - 1, Right: rect.Right - 1,
	})
	res, err = VerifyContainment(shrunk, rect)
	require.NoError(t, err)
	assert.False(t, res.Contained)
	assert.Equal(t, (rect.Bottom-rect.Top-1)*(rect.Right-rect.Left-1), res.IntersectionCount)

	// One missing pixel is enough to fail.
	holed := exact.Clone()
	holed.Set(40, 20, 0, 0)
	res, err = VerifyContainment(holed, rect)
	require.NoError(t, err)
	assert.False(t, res.Contained)
	assert.Equal(t, res.RectCount-1, res.IntersectionCount)
}

func TestVerifyContainment_ClipsRect(t *testing.T) {
	region := blockMask(t, 10, 10, raster.Rect{Top: 0, Left: 0, Bottom: 9, Right: 9})
	res, err := VerifyContainment(region, raster.Rect{Top: 5, Left: 5, Bottom: 20, Right: 20})
	require.NoError(t, err)
	assert.Equal(t, 25, res.RectCount)
	assert.True(t, res.Contained)
}

func TestVerifyContainment_InvalidChannel(t *testing.T) {
	r, err := raster.New(5, 5, 4)
	require.NoError(t, err)
	_, err = VerifyContainment(r, raster.Rect{Top: 0, Left: 0, Bottom: 1, Right: 1})
	assert.ErrorIs(t, err, raster.ErrInvalidChannel)
}
