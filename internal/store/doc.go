// Package store records board acquisitions and track table changes in a
// SQLite database (modernc.org/sqlite, no cgo).
//
// A Store implements pipeline.Recorder. Each acquisition writes one row to
// boards keyed by the board ID; each track create, update or drop appends a
// row to track_events. The recorded history can be replayed with Boards,
// TrackEvents and LatestTracks.
package store
