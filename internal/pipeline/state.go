package pipeline

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
)

// JobKind selects which external call a Job makes.
type JobKind int

const (
	// JobScan runs the rectangle detector over an untracked region.
	JobScan JobKind = iota
	// JobTrack refreshes a tracked region from its prior detection.
	JobTrack
)

// String returns "scan" or "track".
func (k JobKind) String() string {
	switch k {
	case JobScan:
		return "scan"
	case JobTrack:
		return "track"
	default:
		return fmt.Sprintf("job(%d)", int(k))
	}
}

// Job is one unit of planned work for a region.
type Job struct {
	Generation uint64
	Kind       JobKind
	Region     Region
	Prior      Detection // set for JobTrack
	Frame      Frame
}

// Outcome is the result of running a Job.
type Outcome struct {
	Job       Job
	Detection Detection
	Err       error
}

// TrackEventKind names a change to the track table.
type TrackEventKind string

const (
	TrackCreated TrackEventKind = "created"
	TrackUpdated TrackEventKind = "updated"
	TrackDropped TrackEventKind = "dropped"
)

// TrackEvent describes one change to the track table.
type TrackEvent struct {
	BoardID    string
	Generation uint64
	Kind       TrackEventKind
	Region     Region
	Detection  Detection
}

// BoardEvent describes a board acquisition.
type BoardEvent struct {
	BoardID    string
	Generation uint64
	Box        geom.Rect
	GridSize   int
}

// State is the orchestrator state. It is not safe for concurrent use; the
// Pipeline goroutine is its only writer.
type State struct {
	generation uint64
	boardID    string
	board      geom.Rect
	grid       Grid

	tracks   map[Region]Detection
	pending  []Region // untracked regions, planned from the end
	rotation []Region // tracked regions in refresh order
	cursor   int
	inFlight map[Region]JobKind

	locating    bool
	started     bool
	preferTrack bool
	seenFrame   bool
	lastSeq     uint64

	newID func() string
}

// NewState returns an idle state.
func NewState() *State {
	return &State{
		tracks:   make(map[Region]Detection),
		inFlight: make(map[Region]JobKind),
		newID:    uuid.NewString,
	}
}

// Generation returns the current generation.
func (s *State) Generation() uint64 { return s.generation }

// Phase derives the orchestrator phase from the state.
func (s *State) Phase() Phase {
	switch {
	case s.locating:
		return PhaseBoardLocating
	case s.grid.Len() == 0:
		return PhaseIdle
	case !s.started:
		return PhaseBoardAcquired
	case len(s.tracks) == s.grid.Len():
		return PhaseRegionTracking
	default:
		return PhaseRegionScanning
	}
}

// InFlight returns the number of dispatched jobs without a completion.
func (s *State) InFlight() int { return len(s.inFlight) }

// TrackCount returns the number of track entries.
func (s *State) TrackCount() int { return len(s.tracks) }

// Reset discards the board and all tracks and returns to idle.
func (s *State) Reset() {
	s.clear()
	s.generation++
}

// BeginLocating discards the current board and marks a locate as
// outstanding. It returns the generation the locate result must carry.
func (s *State) BeginLocating() uint64 {
	s.clear()
	s.generation++
	s.locating = true
	return s.generation
}

// Locating reports whether a locate planned under generation is still
// wanted.
func (s *State) Locating(generation uint64) bool {
	return s.locating && generation == s.generation
}

// AbortLocating returns to idle after a failed locate.
func (s *State) AbortLocating() {
	s.locating = false
}

// Acquire installs box as the board, partitions it into an n×n grid and
// starts a new generation with an empty track table.
//
// Parameters:
//   - box: The board in normalized frame coordinates. Callers reject empty
//     boxes before calling.
//   - n: Grid size per side. Values below 1 are treated as 1.
//
// Returns:
//   - BoardEvent: The new board ID, generation, box and grid size, ready to
//     hand to a Recorder.
func (s *State) Acquire(box geom.Rect, n int) BoardEvent {
	s.clear()
	s.generation++
	s.boardID = s.newID()
	s.board = box
	s.grid = Partition(box, n)
	s.pending = append([]Region(nil), s.grid.Regions...)

	return BoardEvent{
		BoardID:    s.boardID,
		Generation: s.generation,
		Box:        box,
		GridSize:   s.grid.Size,
	}
}

func (s *State) clear() {
	s.boardID = ""
	s.board = geom.Rect{}
	s.grid = Grid{}
	s.tracks = make(map[Region]Detection)
	s.pending = nil
	s.rotation = nil
	s.cursor = 0
	s.inFlight = make(map[Region]JobKind)
	s.locating = false
	s.started = false
	s.preferTrack = false
	s.seenFrame = false
	s.lastSeq = 0
}

// Plan selects up to limit minus in-flight jobs for frame and marks them in
// flight. A nil image, a frame already planned, or a state without a board
// yields no jobs and leaves the state untouched.
//
// Untracked regions are taken from the end of the pending sequence. Tracked
// regions are refreshed in rotation. When both kinds exist the first slot
// alternates between them from one plan to the next, so neither starves.
//
// Parameters:
//   - frame: The newest frame. Reusing the last planned Seq yields no jobs.
//   - limit: Maximum number of jobs in flight after planning.
//
// Returns:
//   - []Job: The jobs to dispatch, each tagged with the current generation.
//     Nil when nothing can be planned.
func (s *State) Plan(frame Frame, limit int) []Job {
	if s.grid.Len() == 0 || frame.Image == nil {
		return nil
	}
	if s.seenFrame && frame.Seq == s.lastSeq {
		return nil
	}
	if limit < 1 {
		limit = 1
	}
	capacity := limit - len(s.inFlight)
	if capacity <= 0 {
		return nil
	}

	var jobs []Job
	if s.preferTrack {
		jobs = s.planTracks(frame, jobs, capacity)
		jobs = s.planScans(frame, jobs, capacity)
	} else {
		jobs = s.planScans(frame, jobs, capacity)
		jobs = s.planTracks(frame, jobs, capacity)
	}
	if len(jobs) == 0 {
		return nil
	}

	s.started = true
	s.seenFrame = true
	s.lastSeq = frame.Seq
	s.preferTrack = jobs[0].Kind == JobScan
	return jobs
}

func (s *State) planScans(frame Frame, jobs []Job, capacity int) []Job {
	for i := len(s.pending) - 1; i >= 0 && len(jobs) < capacity; i-- {
		r := s.pending[i]
		if _, busy := s.inFlight[r]; busy {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.inFlight[r] = JobScan
		jobs = append(jobs, Job{Generation: s.generation, Kind: JobScan, Region: r, Frame: frame})
	}
	return jobs
}

func (s *State) planTracks(frame Frame, jobs []Job, capacity int) []Job {
	n := len(s.rotation)
	for tried := 0; tried < n && len(jobs) < capacity; tried++ {
		r := s.rotation[s.cursor]
		s.cursor = (s.cursor + 1) % n
		if _, busy := s.inFlight[r]; busy {
			continue
		}
		s.inFlight[r] = JobTrack
		jobs = append(jobs, Job{
			Generation: s.generation,
			Kind:       JobTrack,
			Region:     r,
			Prior:      s.tracks[r],
			Frame:      frame,
		})
	}
	return jobs
}

// Complete applies the outcome of a job.
//
// Returns:
//   - the track table change, or nil when nothing changed
//   - ErrStaleCompletion when the job belongs to another generation
//   - otherwise the job's own error, after the state has been updated
//
// A failed scan puts the region back at the front of the pending sequence.
// A track that finds nothing removes exactly that region's entry and appends
// the region to the end of the pending sequence. A track that errors keeps
// the entry.
func (s *State) Complete(o Outcome) (*TrackEvent, error) {
	if o.Job.Generation != s.generation {
		return nil, ErrStaleCompletion
	}
	r := o.Job.Region
	if kind, ok := s.inFlight[r]; !ok || kind != o.Job.Kind {
		return nil, ErrStaleCompletion
	}
	delete(s.inFlight, r)

	switch o.Job.Kind {
	case JobScan:
		if o.Err != nil {
			s.pending = append([]Region{r}, s.pending...)
			return nil, o.Err
		}
		s.tracks[r] = o.Detection
		s.rotation = append(s.rotation, r)
		return s.event(TrackCreated, r, o.Detection), nil

	case JobTrack:
		switch {
		case o.Err == nil:
			s.tracks[r] = o.Detection
			return s.event(TrackUpdated, r, o.Detection), nil
		case IsNoCandidate(o.Err):
			prior := s.tracks[r]
			delete(s.tracks, r)
			s.removeFromRotation(r)
			s.pending = append(s.pending, r)
			return s.event(TrackDropped, r, prior), o.Err
		default:
			return nil, o.Err
		}
	}
	return nil, fmt.Errorf("unknown job kind %v", o.Job.Kind)
}

func (s *State) event(kind TrackEventKind, r Region, d Detection) *TrackEvent {
	return &TrackEvent{
		BoardID:    s.boardID,
		Generation: s.generation,
		Kind:       kind,
		Region:     r,
		Detection:  d,
	}
}

func (s *State) removeFromRotation(r Region) {
	for i, x := range s.rotation {
		if x != r {
			continue
		}
		s.rotation = append(s.rotation[:i], s.rotation[i+1:]...)
		if i < s.cursor {
			s.cursor--
		}
		if s.cursor >= len(s.rotation) {
			s.cursor = 0
		}
		return
	}
}

// Snapshot copies the state. Tracks are ordered by row then column. When a
// board is present its four quadrants are included, top-left first.
func (s *State) Snapshot() Snapshot {
	tracks := make([]TrackEntry, 0, len(s.tracks))
	for r, d := range s.tracks {
		tracks = append(tracks, TrackEntry{Region: r, Detection: d})
	}
	sort.Slice(tracks, func(i, j int) bool {
		a, b := tracks[i].Region, tracks[j].Region
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})

	var quadrants []geom.Rect
	if s.grid.Len() > 0 {
		quadrants = s.board.Split()
	}

	return Snapshot{
		Generation: s.generation,
		BoardID:    s.boardID,
		Phase:      s.Phase(),
		Board:      s.board,
		GridSize:   s.grid.Size,
		Regions:    s.grid.Len(),
		Pending:    len(s.pending),
		InFlight:   len(s.inFlight),
		Tracks:     tracks,
		Quadrants:  quadrants,
	}
}
