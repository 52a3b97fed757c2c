package pipeline

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
)

func testFrame(seq uint64) Frame {
	return Frame{Seq: seq, Image: image.NewGray(image.Rect(0, 0, 8, 8))}
}

func newTestState(t *testing.T, n int) *State {
	t.Helper()
	s := NewState()
	s.Acquire(geom.Unit, n)
	return s
}

// trackAt looks up the tracked entry for a grid cell.
func trackAt(snap Snapshot, row, col int) (TrackEntry, bool) {
	for _, e := range snap.Tracks {
		if e.Region.Row == row && e.Region.Col == col {
			return e, true
		}
	}
	return TrackEntry{}, false
}

func found(job Job) Outcome {
	return Outcome{Job: job, Detection: NewDetection(job.Region.Rect, 0.9)}
}

func TestState_AcquireFifteen(t *testing.T) {
	s := newTestState(t, 15)
	snap := s.Snapshot()

	assert.Equal(t, PhaseBoardAcquired, snap.Phase)
	assert.Equal(t, 225, snap.Regions)
	assert.Equal(t, 225, snap.Pending)
	assert.Empty(t, snap.Tracks)
	assert.NotEmpty(t, snap.BoardID)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestState_IdleByDefault(t *testing.T) {
	s := NewState()
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Nil(t, s.Plan(testFrame(1), 1))
}

func TestState_PlanWithoutNewFrameIsNoop(t *testing.T) {
	s := newTestState(t, 3)
	before := s.Snapshot()

	assert.Nil(t, s.Plan(Frame{Seq: 1}, 1), "nil image")
	assert.Equal(t, before, s.Snapshot())

	jobs := s.Plan(testFrame(1), 1)
	require.Len(t, jobs, 1)
	_, err := s.Complete(found(jobs[0]))
	require.NoError(t, err)

	after := s.Snapshot()
	assert.Nil(t, s.Plan(testFrame(1), 1), "same frame again")
	assert.Equal(t, after, s.Snapshot())
}

func TestState_ScansLastPendingFirst(t *testing.T) {
	s := newTestState(t, 15)

	jobs := s.Plan(testFrame(1), 1)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobScan, jobs[0].Kind)
	assert.Equal(t, 14, jobs[0].Region.Row)
	assert.Equal(t, 14, jobs[0].Region.Col)
	assert.Equal(t, PhaseRegionScanning, s.Phase())
}

func TestState_ScanSuccessThenTrack(t *testing.T) {
	s := newTestState(t, 15)

	jobs := s.Plan(testFrame(1), 1)
	require.Len(t, jobs, 1)
	r := jobs[0].Region

	change, err := s.Complete(found(jobs[0]))
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, TrackCreated, change.Kind)

	entry, ok := trackAt(s.Snapshot(), r.Row, r.Col)
	require.True(t, ok)
	assert.Equal(t, r.Rect, entry.Detection.Box)

	jobs = s.Plan(testFrame(2), 1)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobTrack, jobs[0].Kind)
	assert.Equal(t, r, jobs[0].Region)
	assert.Equal(t, entry.Detection, jobs[0].Prior)
}

func TestState_TrackMissFallsBackToScan(t *testing.T) {
	s := newTestState(t, 15)

	// Track two regions.
	var tracked []Region
	for seq := uint64(1); len(tracked) < 2; seq++ {
		jobs := s.Plan(testFrame(seq), 1)
		require.Len(t, jobs, 1)
		if jobs[0].Kind == JobScan {
			tracked = append(tracked, jobs[0].Region)
		}
		_, err := s.Complete(found(jobs[0]))
		require.NoError(t, err)
	}
	require.Equal(t, 2, s.TrackCount())

	// Next plan is a track; make it miss.
	jobs := s.Plan(testFrame(100), 1)
	require.Len(t, jobs, 1)
	require.Equal(t, JobTrack, jobs[0].Kind)
	lost := jobs[0].Region

	change, err := s.Complete(Outcome{Job: jobs[0], Err: ErrNoCandidate})
	assert.ErrorIs(t, err, ErrNoCandidate)
	require.NotNil(t, change)
	assert.Equal(t, TrackDropped, change.Kind)

	snap := s.Snapshot()
	assert.Len(t, snap.Tracks, 1, "only the missed entry is removed")
	_, ok := trackAt(snap, lost.Row, lost.Col)
	assert.False(t, ok)

	jobs = s.Plan(testFrame(101), 1)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobScan, jobs[0].Kind)
	assert.Equal(t, lost, jobs[0].Region)
}

func TestState_TrackErrorKeepsEntry(t *testing.T) {
	s := newTestState(t, 2)

	jobs := s.Plan(testFrame(1), 1)
	_, err := s.Complete(found(jobs[0]))
	require.NoError(t, err)

	jobs = s.Plan(testFrame(2), 1)
	require.Equal(t, JobTrack, jobs[0].Kind)

	boom := &ExternalError{Op: "track", Err: errors.New("boom")}
	change, err := s.Complete(Outcome{Job: jobs[0], Err: boom})
	assert.Nil(t, change)
	var ext *ExternalError
	assert.ErrorAs(t, err, &ext)
	assert.Equal(t, 1, s.TrackCount())
}

func TestState_FailedScanRequeuedAtFront(t *testing.T) {
	s := newTestState(t, 2)

	jobs := s.Plan(testFrame(1), 1)
	require.Len(t, jobs, 1)
	require.Equal(t, 1, jobs[0].Region.Row)
	require.Equal(t, 1, jobs[0].Region.Col)
	_, err := s.Complete(Outcome{Job: jobs[0], Err: ErrNoCandidate})
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.Equal(t, 0, s.TrackCount())

	jobs = s.Plan(testFrame(2), 1)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Region.Row)
	assert.Equal(t, 0, jobs[0].Region.Col)
}

func TestState_StaleCompletionAfterReset(t *testing.T) {
	s := newTestState(t, 15)
	jobs := s.Plan(testFrame(1), 1)
	require.Len(t, jobs, 1)

	s.Reset()
	s.Acquire(geom.Rect{X: 0.1, Y: 0.1, W: 0.8, H: 0.8}, 15)
	before := s.Snapshot()

	change, err := s.Complete(found(jobs[0]))
	assert.ErrorIs(t, err, ErrStaleCompletion)
	assert.Nil(t, change)
	assert.Equal(t, before, s.Snapshot())
}

func TestState_RespectsInFlightLimit(t *testing.T) {
	s := newTestState(t, 3)

	jobs := s.Plan(testFrame(1), 4)
	require.Len(t, jobs, 4)
	seen := make(map[Region]bool)
	for _, j := range jobs {
		assert.False(t, seen[j.Region], "region planned twice")
		seen[j.Region] = true
	}
	assert.Equal(t, 4, s.InFlight())

	assert.Nil(t, s.Plan(testFrame(2), 4), "no capacity left")

	_, err := s.Complete(found(jobs[0]))
	require.NoError(t, err)
	jobs = s.Plan(testFrame(3), 4)
	assert.Len(t, jobs, 1)
}

func TestState_TracksNextTickWithHighLimit(t *testing.T) {
	s := newTestState(t, 15)

	jobs := s.Plan(testFrame(1), 225)
	require.Len(t, jobs, 225)
	r := jobs[0].Region
	_, err := s.Complete(found(jobs[0]))
	require.NoError(t, err)

	jobs = s.Plan(testFrame(2), 225)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobTrack, jobs[0].Kind)
	assert.Equal(t, r, jobs[0].Region)
}

func TestState_AllTrackedRotates(t *testing.T) {
	s := newTestState(t, 2)

	seq := uint64(0)
	for s.TrackCount() < 4 {
		seq++
		for _, j := range s.Plan(testFrame(seq), 1) {
			_, err := s.Complete(found(j))
			require.NoError(t, err)
		}
	}
	assert.Equal(t, PhaseRegionTracking, s.Phase())

	visits := make(map[Region]int)
	for i := 0; i < 8; i++ {
		seq++
		jobs := s.Plan(testFrame(seq), 1)
		require.Len(t, jobs, 1)
		require.Equal(t, JobTrack, jobs[0].Kind)
		visits[jobs[0].Region]++
		_, err := s.Complete(found(jobs[0]))
		require.NoError(t, err)
	}
	require.Len(t, visits, 4)
	for _, n := range visits {
		assert.Equal(t, 2, n)
	}
}

func TestState_Locating(t *testing.T) {
	s := NewState()
	gen := s.BeginLocating()

	assert.Equal(t, PhaseBoardLocating, s.Phase())
	assert.True(t, s.Locating(gen))

	s.Reset()
	assert.False(t, s.Locating(gen))
	assert.Equal(t, PhaseIdle, s.Phase())

	gen = s.BeginLocating()
	s.AbortLocating()
	assert.False(t, s.Locating(gen))
	assert.Equal(t, PhaseIdle, s.Phase())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "region_tracking", PhaseRegionTracking.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}

func TestPhase_MarshalText(t *testing.T) {
	b, err := PhaseRegionScanning.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "region_scanning", string(b))
}

func TestState_SnapshotQuadrants(t *testing.T) {
	s := NewState()
	assert.Empty(t, s.Snapshot().Quadrants, "idle state has no board")

	board := geom.Rect{X: 0.2, Y: 0.1, W: 0.6, H: 0.8}
	s.Acquire(board, 15)
	snap := s.Snapshot()
	require.Len(t, snap.Quadrants, 4)
	assert.Equal(t, board.Split(), snap.Quadrants)
	assert.InDelta(t, 0.2, snap.Quadrants[0].X, geom.Epsilon)
	assert.InDelta(t, 0.5, snap.Quadrants[3].X, geom.Epsilon)
	assert.InDelta(t, 0.5, snap.Quadrants[3].Y, geom.Epsilon)

	s.Reset()
	assert.Empty(t, s.Snapshot().Quadrants)
}
