package pipeline

import "context"

// Recorder persists board acquisitions and track table changes. Calls are
// made from the pipeline goroutine; errors are logged and otherwise ignored.
type Recorder interface {
	RecordBoard(ctx context.Context, e BoardEvent) error
	RecordTrack(ctx context.Context, e TrackEvent) error
}
