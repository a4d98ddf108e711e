// Package imaging loads source images into rasters for the contour pipeline
// and renders debug overlays of its results.
//
// # Input Formats
//
// Two kinds of input are accepted:
//   - Raw RGBA: a ".rgba" file of 8-bit interleaved samples, with its geometry
//     in the sibling ".json" written by `magick image.png image.json`.
//   - Encoded images: PNG, JPEG and GIF, decoded with disintegration/imaging
//     and converted to non-premultiplied RGBA.
//
// Every loaded raster has four channels regardless of the source format.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Rectangles use inclusive
// bounds on every side (raster.Rect).
//
// # Overlays
//
// RenderOverlay draws the selected region as a translucent tint and the
// reference rectangle as a one-pixel outline over the source, flattened onto
// black. Results can be cropped and scaled before PNG encoding.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Cached rasters are shared between
// callers and must be treated as read-only.
package imaging
