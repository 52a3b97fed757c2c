package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/board-tracker-mcp/internal/classify"
	"github.com/ironsheep/board-tracker-mcp/internal/geom"
	"github.com/ironsheep/board-tracker-mcp/internal/metrics"
)

// Options configures a Pipeline. Detector and Tracker are required.
type Options struct {
	GridSize    int
	MaxInFlight int
	EventBuffer int
	CallTimeout time.Duration

	Acceptor classify.Acceptor
	Detector RectangleDetector
	Tracker  RectangleTracker
	Locator  BoardLocator // optional; without it boards come from SetBoard

	Logger  *zap.Logger
	Metrics *metrics.Pipeline
	// Recorder receives board and track events. Its calls run synchronously
	// on the pipeline goroutine, so a slow recorder delays completions,
	// snapshots and other requests until it returns. Tick stays non-blocking
	// until the event buffer fills.
	Recorder Recorder

	// OnSnapshot is called from the pipeline goroutine after every tick and
	// every applied completion. It must not block.
	OnSnapshot func(Snapshot)
	// OnError receives external call failures. It must not block.
	OnError func(error)
}

func (o *Options) setDefaults() {
	if o.GridSize < 1 {
		o.GridSize = 15
	}
	if o.MaxInFlight < 1 {
		o.MaxInFlight = 1
	}
	if o.EventBuffer < 1 {
		o.EventBuffer = 64
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 2 * time.Second
	}
	if len(o.Acceptor.Keywords) == 0 {
		o.Acceptor = classify.DefaultAcceptor()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Pipeline runs the orchestrator on its own goroutine.
type Pipeline struct {
	opts       Options
	log        *zap.Logger
	scanner    *Scanner
	maintainer *Maintainer
	state      *State

	events chan any
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

type tickEvent struct{ frame Frame }

type outcomeEvent struct {
	outcome Outcome
	elapsed time.Duration
}

type locatedEvent struct {
	generation uint64
	box        geom.Rect
	err        error
	elapsed    time.Duration
}

type setBoardEvent struct {
	box   geom.Rect
	reply chan Snapshot
}

type classifiedEvent struct {
	frame  Frame
	result *ClassifyResult
	reply  chan Snapshot
}

type resetEvent struct{ reply chan Snapshot }

type snapshotEvent struct{ reply chan Snapshot }

// New starts a pipeline. Call Close to stop it.
func New(opts Options) (*Pipeline, error) {
	if opts.Detector == nil {
		return nil, errors.New("pipeline: detector is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("pipeline: tracker is required")
	}
	opts.setDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		opts:       opts,
		log:        opts.Logger.Named("pipeline"),
		scanner:    NewScanner(opts.Detector),
		maintainer: NewMaintainer(opts.Tracker),
		state:      NewState(),
		events:     make(chan any, opts.EventBuffer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// Close stops the pipeline goroutine and waits for dispatched calls to
// return. In-flight calls see a cancelled context.
func (p *Pipeline) Close() {
	p.once.Do(func() {
		p.cancel()
		<-p.done
		p.wg.Wait()
	})
}

// Tick delivers a frame. It never blocks: when the event buffer is full the
// frame is dropped and Tick returns false.
func (p *Pipeline) Tick(frame Frame) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.events <- tickEvent{frame: frame}:
		return true
	default:
		p.opts.Metrics.FrameDropped()
		return false
	}
}

// SetBoard acquires box as the board, replacing any current board.
func (p *Pipeline) SetBoard(ctx context.Context, box geom.Rect) (Snapshot, error) {
	box = box.Clamp()
	if box.Empty() {
		return Snapshot{}, fmt.Errorf("board box is empty: %+v", box)
	}
	reply := make(chan Snapshot, 1)
	return p.request(ctx, setBoardEvent{box: box, reply: reply}, reply)
}

// Classified evaluates a classification of frame. When it is accepted, the
// pipeline is idle and a locator is configured, locating the board in frame
// starts in the background.
//
// Parameters:
//   - frame: The frame the labels describe. Its image is handed to the locator.
//   - labels: Classifier output in any order.
//
// Returns:
//   - ClassifyResult: The decision, plus Ignored when a board was already
//     present and Locating when a locate was started.
//   - Snapshot: The state right after the classification was applied.
//   - error: Non-nil if ctx ends or the pipeline is closed first.
func (p *Pipeline) Classified(ctx context.Context, frame Frame, labels []classify.Classification) (ClassifyResult, Snapshot, error) {
	res := ClassifyResult{Decision: p.opts.Acceptor.Evaluate(labels)}
	if !res.Accepted {
		snap, err := p.Snapshot(ctx)
		return res, snap, err
	}
	reply := make(chan Snapshot, 1)
	snap, err := p.request(ctx, classifiedEvent{frame: frame, result: &res, reply: reply}, reply)
	return res, snap, err
}

// Reset discards the board and every track entry.
func (p *Pipeline) Reset(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	return p.request(ctx, resetEvent{reply: reply}, reply)
}

// Snapshot returns a copy of the current state. It is ordered after every
// event queued before it.
func (p *Pipeline) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	return p.request(ctx, snapshotEvent{reply: reply}, reply)
}

func (p *Pipeline) request(ctx context.Context, ev any, reply chan Snapshot) (Snapshot, error) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-p.done:
		return Snapshot{}, ErrClosed
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-p.done:
		return Snapshot{}, ErrClosed
	}
}

func (p *Pipeline) run() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case ev := <-p.events:
			p.handle(ev)
		}
	}
}

func (p *Pipeline) handle(ev any) {
	defer p.recoverLog()

	switch e := ev.(type) {
	case tickEvent:
		p.handleTick(e.frame)
	case outcomeEvent:
		p.handleOutcome(e)
	case locatedEvent:
		p.handleLocated(e)
	case setBoardEvent:
		p.acquire(e.box)
		e.reply <- p.snapshot()
	case classifiedEvent:
		p.handleClassified(e.frame, e.result)
		e.reply <- p.snapshot()
	case resetEvent:
		p.state.Reset()
		p.opts.Metrics.SetActiveTracks(0)
		p.log.Info("pipeline reset", zap.Uint64("generation", p.state.Generation()))
		e.reply <- p.snapshot()
	case snapshotEvent:
		e.reply <- p.snapshot()
	default:
		p.log.Warn("unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (p *Pipeline) recoverLog() {
	if r := recover(); r != nil {
		p.log.Error("pipeline event panicked",
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()),
		)
	}
}

func (p *Pipeline) handleTick(frame Frame) {
	jobs := p.state.Plan(frame, p.opts.MaxInFlight)
	for _, job := range jobs {
		p.log.Debug("dispatch",
			zap.Stringer("kind", job.Kind),
			zap.Int("row", job.Region.Row),
			zap.Int("col", job.Region.Col),
			zap.Uint64("generation", job.Generation),
			zap.Uint64("frame", job.Frame.Seq),
		)
		p.dispatch(job)
	}
	p.emitSnapshot()
}

func (p *Pipeline) dispatch(job Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.ctx, p.opts.CallTimeout)
		defer cancel()

		start := time.Now()
		out := Outcome{Job: job}
		switch job.Kind {
		case JobScan:
			out.Detection, out.Err = p.scanner.Scan(ctx, job.Frame, job.Region)
		case JobTrack:
			out.Detection, out.Err = p.maintainer.Track(ctx, job.Frame, job.Region, job.Prior)
		}
		p.post(outcomeEvent{outcome: out, elapsed: time.Since(start)})
	}()
}

// post delivers a completion, giving up only when the pipeline is closed.
func (p *Pipeline) post(ev any) {
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	}
}

func (p *Pipeline) handleOutcome(e outcomeEvent) {
	job := e.outcome.Job
	change, err := p.state.Complete(e.outcome)
	if errors.Is(err, ErrStaleCompletion) {
		p.opts.Metrics.StaleCompletion()
		p.log.Debug("stale completion dropped",
			zap.Stringer("kind", job.Kind),
			zap.Uint64("job_generation", job.Generation),
			zap.Uint64("generation", p.state.Generation()),
		)
		return
	}

	outcome := metrics.OutcomeFound
	switch {
	case err == nil:
	case IsNoCandidate(err):
		outcome = metrics.OutcomeNoCandidate
	default:
		outcome = metrics.OutcomeError
		p.log.Warn("external call failed", zap.Error(err))
		p.reportError(err)
	}
	p.opts.Metrics.ObserveJob(job.Kind.String(), outcome, e.elapsed)
	p.opts.Metrics.SetActiveTracks(p.state.TrackCount())

	if change != nil {
		p.log.Debug("track changed",
			zap.String("kind", string(change.Kind)),
			zap.Int("row", change.Region.Row),
			zap.Int("col", change.Region.Col),
			zap.Float64("confidence", change.Detection.Confidence),
		)
		if p.opts.Recorder != nil {
			if rerr := p.opts.Recorder.RecordTrack(p.ctx, *change); rerr != nil {
				p.log.Warn("failed to record track event", zap.Error(rerr))
			}
		}
	}
	p.emitSnapshot()
}

func (p *Pipeline) handleClassified(frame Frame, res *ClassifyResult) {
	if p.state.Phase() != PhaseIdle {
		res.Ignored = true
		p.log.Debug("classification ignored; board already present",
			zap.Stringer("phase", p.state.Phase()))
		return
	}
	if p.opts.Locator == nil || frame.Image == nil {
		p.log.Info("board reported; waiting for explicit bounds")
		return
	}

	res.Locating = true
	gen := p.state.BeginLocating()
	p.log.Debug("locating board", zap.Uint64("generation", gen))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.ctx, p.opts.CallTimeout)
		defer cancel()

		start := time.Now()
		box, err := p.opts.Locator.LocateBoard(ctx, frame.Image)
		p.post(locatedEvent{generation: gen, box: box, err: err, elapsed: time.Since(start)})
	}()
}

func (p *Pipeline) handleLocated(e locatedEvent) {
	if !p.state.Locating(e.generation) {
		p.opts.Metrics.StaleCompletion()
		p.log.Debug("stale locate dropped", zap.Uint64("job_generation", e.generation))
		return
	}
	if e.err == nil && e.box.Clamp().Empty() {
		e.err = ErrNoCandidate
	}
	if e.err != nil {
		p.state.AbortLocating()
		p.opts.Metrics.ObserveJob("locate", metrics.OutcomeError, e.elapsed)
		err := &ExternalError{Op: "locate", Err: e.err}
		p.log.Warn("board locate failed", zap.Error(err))
		p.reportError(err)
		return
	}
	p.opts.Metrics.ObserveJob("locate", metrics.OutcomeFound, e.elapsed)
	p.acquire(e.box.Clamp())
}

func (p *Pipeline) acquire(box geom.Rect) {
	ev := p.state.Acquire(box, p.opts.GridSize)
	p.opts.Metrics.BoardAcquired()
	p.opts.Metrics.SetActiveTracks(0)
	p.log.Info("board acquired",
		zap.String("board_id", ev.BoardID),
		zap.Uint64("generation", ev.Generation),
		zap.Float64("x", box.X),
		zap.Float64("y", box.Y),
		zap.Float64("width", box.W),
		zap.Float64("height", box.H),
		zap.Int("grid", ev.GridSize),
	)
	if p.opts.Recorder != nil {
		if err := p.opts.Recorder.RecordBoard(p.ctx, ev); err != nil {
			p.log.Warn("failed to record board", zap.Error(err))
		}
	}
}

func (p *Pipeline) snapshot() Snapshot {
	s := p.state.Snapshot()
	s.TakenAt = time.Now()
	return s
}

func (p *Pipeline) emitSnapshot() {
	if p.opts.OnSnapshot != nil {
		p.opts.OnSnapshot(p.snapshot())
	}
}

func (p *Pipeline) reportError(err error) {
	if p.opts.OnError != nil {
		p.opts.OnError(err)
	}
}
