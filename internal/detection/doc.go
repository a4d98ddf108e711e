// Package detection finds foreground regions in binary masks and checks
// geometric containment against them.
//
// This package implements the analysis half of the contour pipeline: border
// following with a full nesting hierarchy, area-based region selection,
// filled rendering of a selected region, and exact pixel containment checks.
// It works on single-channel masks from the raster package.
//
// # Contour Extraction
//
// FindContours follows every border of the 8-connected foreground:
//
//   - Outer borders: the outline of a connected foreground region
//   - Hole borders: the outline of a background region enclosed by foreground
//
// Each border becomes one Contour. The returned Forest records which border
// immediately encloses which, so a hole is a child of its region's outer
// border, an island inside the hole is a grandchild, and so on.
//
// # Algorithm Overview
//
// The contour pipeline runs in this order:
//
//  1. Tracing: Suzuki-Abe border following over a padded label grid
//  2. Hierarchy: One pass from the raw parent array to a parent/children arena
//  3. Filtering: Tag each contour alive when its shoelace area >= minArea
//  4. Selection: First alive contour whose children are all dead
//  5. Rendering: Boundary plus even-odd scanline fill into a blank mask
//  6. Verification: AND with a filled rectangle and compare pixel counts
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Contour points are pixel positions; areas are measured between pixel
//     centres
//
// # Empty Input
//
// A mask with no foreground is not an error: FindContours returns an empty
// ContourSet, and SelectLeaf on it returns ErrNotFound.
//
// # Errors
//
//   - raster.ErrInvalidChannel: multi-channel raster where a mask is required
//   - raster.ErrDimensionMismatch: rasters of different size combined
//   - ErrNotFound: no contour satisfies the leaf criteria
//   - ErrMalformedHierarchy: parent array or forest breaks nesting invariants
package detection
