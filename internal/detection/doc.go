// Package detection finds and follows tile rectangles on a game board.
//
// It provides the concrete vision components used by the pipeline:
//
//   - RegionDetector scans one grid region for a tile
//   - RegionTracker re-finds a known tile near its previous position
//   - BoardLocator finds the board itself in a whole frame
//
// All three build on DetectRectangles, which groups edge pixels into
// contours and keeps those whose pixels follow the border of their bounding
// box.
//
// # Confidence Scores
//
// A candidate's confidence blends its rectangularity with how closely the
// colour inside it matches the expected tile colour:
//
//	confidence = (1-w)·rectangularity + w·colourScore
//
// where w is the configured colour weight. Candidates are returned best
// first, so the first one is the one the pipeline keeps.
//
// # Coordinate System
//
// Results are normalized geom.Rect values relative to the whole frame,
// whatever crop was analysed to produce them.
//
// # Limitations
//
// Only axis-aligned rectangles are found. Tiles that touch each other, or a
// board photographed at a steep angle, defeat the contour step.
package detection
