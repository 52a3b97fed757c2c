// Package geom provides normalized rectangle geometry shared by the board
// pipeline and the image detectors.
//
// # Coordinate System
//
// All values are fractions of the frame they describe:
//   - (0, 0) is the top-left corner of the frame
//   - X increases rightward, Y increases downward
//   - A Rect with W == 1 and H == 1 anchored at the origin covers the whole frame
//
// Conversion to and from pixel rectangles goes through Rect.Pixels and
// FromPixels, which take the image bounds so that sub-images with a non-zero
// origin round-trip correctly.
package geom
