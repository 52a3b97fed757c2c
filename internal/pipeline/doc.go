// Package pipeline implements board region detection and tracking.
//
// A board is acquired either from an explicit bounding box or by locating it
// in a frame after an external classifier reported it. The board box is
// partitioned into an N×N grid of regions. Each tick a bounded number of
// regions is worked on: regions without a track entry are scanned for a
// rectangle, regions with one are re-localized by a tracker seeded with the
// prior detection. A tracker miss drops that entry and sends the region back
// to scanning.
//
// # State Ownership
//
// State is a plain value that plans work (Plan) and applies results
// (Complete). Pipeline wraps it in a single goroutine that owns it; every
// mutation is an event on one channel, so completions for different regions
// never race on the track table.
//
// # Generations
//
// Every board acquisition and every reset increments the generation. Jobs
// carry the generation they were planned under; results for any other
// generation are dropped with ErrStaleCompletion.
package pipeline
