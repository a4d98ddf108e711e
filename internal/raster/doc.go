// Package raster provides the pixel-level primitives the contour pipeline is
// built on.
//
// A Raster is a rectangular grid of 8-bit samples with a fixed channel count.
// Pixels are stored row-major and interleaved, so the sample for channel c of
// pixel (x, y) lives at Pix[(y*Width+x)*Channels+c]. A Mask is simply a
// single-channel Raster whose samples are 0 or 255.
//
// # Coordinate System
//
// Coordinates are 0-based with the origin at the top-left corner:
//   - X increases rightward (columns)
//   - Y increases downward (rows)
//   - Rect bounds are inclusive on all four sides
//
// # Ownership
//
// Every operation allocates a fresh output Raster and never mutates its
// inputs, except FillRect which draws into the raster it is given. Rasters are
// handed from one step to the next; nothing in this package retains them.
//
// # Parallelism
//
// Row loops are split across goroutines. Each worker writes a disjoint band of
// rows, so results are byte-identical to a sequential pass regardless of
// scheduling.
//
// # Error Handling
//
// Functions return ErrInvalidChannel when an operation that needs a particular
// channel layout is given another, and ErrDimensionMismatch when two rasters of
// different width or height are combined. Both are sentinel values meant to be
// tested with errors.Is.
package raster
