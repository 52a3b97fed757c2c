// Package imaging provides the image operations used by the board tracker.
//
// Frames are loaded from disk through a FrameLoader, which keeps decoded
// images until the file on disk changes. Detection works on crops of a frame
// addressed by normalized geom.Rect values, turned into edge maps and scored
// against the expected tile colour.
//
// # Coordinate System
//
// Normalized rectangles are converted to pixels with geom.Rect.Pixels, which
// rounds outward and clips to the image bounds. Images returned by this
// package start at (0,0) unless stated otherwise.
//
// # Thread Safety
//
// FrameLoader is safe for concurrent use. All other functions are stateless
// and only read their input images.
package imaging
