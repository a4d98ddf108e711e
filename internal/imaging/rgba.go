package imaging

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ironsheep/contour-mcp/internal/raster"
)

// magickImage is the part of ImageMagick's JSON description we read:
//
//	[{"image": {"geometry": {"width": 701, "height": 375, ...}, ...}}]
type magickImage struct {
	Image struct {
		Geometry struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"geometry"`
	} `json:"image"`
}

// MetaPath returns the metadata file that accompanies a raw RGBA file: the
// same path with ".json" in place of its extension.
func MetaPath(rgbaPath string) string {
	if i := strings.LastIndexByte(rgbaPath, '.'); i > strings.LastIndexAny(rgbaPath, `/\`) {
		return rgbaPath[:i] + ".json"
	}
	return rgbaPath + ".json"
}

// ReadGeometry returns the width and height of the first image described in
// an ImageMagick JSON file.
func ReadGeometry(metaPath string) (width, height int, err error) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta []magickImage
	if err := json.Unmarshal(data, &meta); err != nil {
		return 0, 0, fmt.Errorf("failed to parse metadata %s: %w", metaPath, err)
	}
	if len(meta) == 0 {
		return 0, 0, fmt.Errorf("metadata %s describes no image", metaPath)
	}
	g := meta[0].Image.Geometry
	if g.Width <= 0 || g.Height <= 0 {
		return 0, 0, fmt.Errorf("metadata %s has invalid geometry %dx%d", metaPath, g.Width, g.Height)
	}
	return g.Width, g.Height, nil
}

// LoadRGBA reads raw 8-bit interleaved RGBA pixels with the geometry given by
// metaPath. The byte count must equal width*height*4.
func LoadRGBA(rgbaPath, metaPath string) (*raster.Raster, error) {
	w, h, err := ReadGeometry(metaPath)
	if err != nil {
		return nil, err
	}
	pix, err := os.ReadFile(rgbaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pixels: %w", err)
	}
	r, err := raster.FromPix(w, h, 4, pix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rgbaPath, err)
	}
	return r, nil
}
