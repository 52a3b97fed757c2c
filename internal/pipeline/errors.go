package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidate means the detector or tracker returned nothing.
	ErrNoCandidate = errors.New("no candidate found")

	// ErrStaleCompletion means a result arrived for a superseded generation.
	ErrStaleCompletion = errors.New("stale completion")

	// ErrNoBoard is returned when work is requested before a board exists.
	ErrNoBoard = errors.New("no board acquired")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("pipeline closed")
)

// ExternalError wraps a failure of an external vision call.
type ExternalError struct {
	Op     string // "scan", "track" or "locate"
	Region *Region
	Err    error
}

func (e *ExternalError) Error() string {
	if e.Region != nil {
		return fmt.Sprintf("%s failed for region (%d,%d): %v", e.Op, e.Region.Row, e.Region.Col, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }
