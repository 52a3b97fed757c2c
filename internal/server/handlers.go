package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/board-tracker-mcp/internal/classify"
	"github.com/ironsheep/board-tracker-mcp/internal/geom"
	"github.com/ironsheep/board-tracker-mcp/internal/imaging"
	"github.com/ironsheep/board-tracker-mcp/internal/ocr"
	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
	"github.com/ironsheep/board-tracker-mcp/internal/store"
)

// settlePoll is how often a settling call re-reads the snapshot.
const settlePoll = 10 * time.Millisecond

// TileReader reads one letter per normalized rectangle of a frame.
type TileReader interface {
	ReadTiles(img image.Image, rects []geom.Rect) ([]ocr.Letter, error)
}

// History answers questions about recorded sessions.
type History interface {
	Boards(ctx context.Context) ([]store.BoardRecord, error)
	Board(ctx context.Context, boardID string) (store.BoardRecord, error)
	LatestTracks(ctx context.Context, boardID string) ([]store.TrackRecord, error)
}

var (
	errNoReader  = errors.New("tile reading is not configured")
	errNoHistory = errors.New("session recording is not configured")
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "pipeline_tick").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "frame_load":
		return s.handleFrameLoad(args)

	case "board_classify":
		return s.handleBoardClassify(ctx, args)
	case "board_set_bounds":
		return s.handleBoardSetBounds(ctx, args)

	case "pipeline_tick":
		return s.handlePipelineTick(ctx, args)
	case "pipeline_reset":
		return s.pipeline.Reset(ctx)
	case "pipeline_snapshot":
		return s.pipeline.Snapshot(ctx)

	case "board_preview":
		return s.handleBoardPreview(ctx, args)
	case "tiles_read":
		return s.handleTilesRead(ctx, args)
	case "board_history":
		return s.handleBoardHistory(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// nextFrame loads the frame at path and gives it a new sequence number.
func (s *Server) nextFrame(path string) (pipeline.Frame, error) {
	if path == "" {
		return pipeline.Frame{}, errors.New("path is required")
	}
	img, err := s.loader.Load(path)
	if err != nil {
		return pipeline.Frame{}, err
	}
	return pipeline.Frame{Seq: s.seq.Add(1), Image: img}, nil
}

// settle polls snapshots until done reports true or SettleWait elapses and
// returns the last snapshot read.
func (s *Server) settle(ctx context.Context, done func(pipeline.Snapshot) bool) (pipeline.Snapshot, error) {
	deadline := time.Now().Add(s.settleWait)
	for {
		snap, err := s.pipeline.Snapshot(ctx)
		if err != nil || done(snap) || !time.Now().Before(deadline) {
			return snap, err
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-time.After(settlePoll):
		}
	}
}

// === Frame Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleFrameLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return s.loader.Info(a.Path)
}

// === Board Acquisition Handlers ===

type boardClassifyArgs struct {
	Path   string                    `json:"path"`
	Labels []classify.Classification `json:"labels"`
}

type boardClassifyResult struct {
	pipeline.ClassifyResult
	Snapshot pipeline.Snapshot `json:"snapshot"`
}

func (s *Server) handleBoardClassify(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a boardClassifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	var frame pipeline.Frame
	if a.Path != "" {
		f, err := s.nextFrame(a.Path)
		if err != nil {
			return nil, err
		}
		frame = f
	}

	res, snap, err := s.pipeline.Classified(ctx, frame, a.Labels)
	if err != nil {
		return nil, err
	}
	if snap.Phase == pipeline.PhaseBoardLocating {
		snap, err = s.settle(ctx, func(sn pipeline.Snapshot) bool {
			return sn.Phase != pipeline.PhaseBoardLocating
		})
		if err != nil {
			return nil, err
		}
	}
	return &boardClassifyResult{ClassifyResult: res, Snapshot: snap}, nil
}

type boardSetBoundsArgs struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleBoardSetBounds(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a boardSetBoundsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.pipeline.SetBoard(ctx, geom.Rect{X: a.X, Y: a.Y, W: a.Width, H: a.Height})
}

// === Pipeline Handlers ===

type pipelineTickArgs struct {
	Path string `json:"path"`
	Wait *bool  `json:"wait"`
}

type pipelineTickResult struct {
	Frame    uint64            `json:"frame"`
	Accepted bool              `json:"accepted"`
	Snapshot pipeline.Snapshot `json:"snapshot"`
}

func (s *Server) handlePipelineTick(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pipelineTickArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	frame, err := s.nextFrame(a.Path)
	if err != nil {
		return nil, err
	}

	res := &pipelineTickResult{Frame: frame.Seq, Accepted: s.pipeline.Tick(frame)}

	wait := a.Wait == nil || *a.Wait
	if wait {
		res.Snapshot, err = s.settle(ctx, func(sn pipeline.Snapshot) bool { return sn.InFlight == 0 })
	} else {
		res.Snapshot, err = s.pipeline.Snapshot(ctx)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// === Output Handlers ===

type boardPreviewArgs struct {
	Path      string `json:"path"`
	MaxSide   *int   `json:"max_side"`
	GridColor string `json:"grid_color"`
}

func (s *Server) handleBoardPreview(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a boardPreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	maxSide := 1024
	if a.MaxSide != nil {
		maxSide = *a.MaxSide
	}
	if a.GridColor == "" {
		a.GridColor = "#0000FF"
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	img, err := s.loader.Load(a.Path)
	if err != nil {
		return nil, err
	}
	snap, err := s.pipeline.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	overlay := imaging.Overlay{
		Board:     snap.Board,
		GridSize:  snap.GridSize,
		GridColor: a.GridColor,
		MaxSide:   maxSide,
	}
	for _, t := range snap.Tracks {
		overlay.Boxes = append(overlay.Boxes, imaging.LabeledBox{
			Box:   t.Detection.Box,
			Label: fmt.Sprintf("%d,%d", t.Region.Row, t.Region.Col),
		})
	}
	return imaging.RenderOverlay(img, overlay)
}

// TileLetter is the letter read from one tracked tile.
type TileLetter struct {
	Row        int       `json:"row"`
	Col        int       `json:"col"`
	Letter     string    `json:"letter"`
	Confidence float64   `json:"confidence"`
	Box        geom.Rect `json:"box"`
}

type tilesReadResult struct {
	BoardID    string       `json:"board_id"`
	Generation uint64       `json:"generation"`
	Tiles      []TileLetter `json:"tiles"`
	Count      int          `json:"count"`
}

func (s *Server) handleTilesRead(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.reader == nil {
		return nil, errNoReader
	}
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	img, err := s.loader.Load(a.Path)
	if err != nil {
		return nil, err
	}
	snap, err := s.pipeline.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if snap.GridSize == 0 {
		return nil, pipeline.ErrNoBoard
	}

	res := &tilesReadResult{BoardID: snap.BoardID, Generation: snap.Generation, Tiles: []TileLetter{}}
	if len(snap.Tracks) == 0 {
		return res, nil
	}

	rects := make([]geom.Rect, len(snap.Tracks))
	for i, t := range snap.Tracks {
		rects[i] = t.Detection.Box
	}
	letters, err := s.reader.ReadTiles(img, rects)
	if err != nil {
		return nil, err
	}
	if len(letters) != len(rects) {
		return nil, fmt.Errorf("reader returned %d letters for %d tiles", len(letters), len(rects))
	}

	for i, t := range snap.Tracks {
		if letters[i].Text == "" {
			continue
		}
		res.Tiles = append(res.Tiles, TileLetter{
			Row:        t.Region.Row,
			Col:        t.Region.Col,
			Letter:     letters[i].Text,
			Confidence: letters[i].Confidence,
			Box:        t.Detection.Box,
		})
	}
	res.Count = len(res.Tiles)
	return res, nil
}

type boardHistoryArgs struct {
	BoardID string `json:"board_id"`
}

type boardHistoryResult struct {
	Board      store.BoardRecord     `json:"board"`
	Tracks     []store.TrackRecord   `json:"tracks"`
	Count      int                   `json:"count"`
	Confidence store.ConfidenceStats `json:"confidence"`
}

func (s *Server) handleBoardHistory(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.history == nil {
		return nil, errNoHistory
	}
	var a boardHistoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	if a.BoardID == "" {
		boards, err := s.history.Boards(ctx)
		if err != nil {
			return nil, err
		}
		if boards == nil {
			boards = []store.BoardRecord{}
		}
		return map[string]interface{}{"boards": boards, "count": len(boards)}, nil
	}

	board, err := s.history.Board(ctx, a.BoardID)
	if err != nil {
		return nil, err
	}
	tracks, err := s.history.LatestTracks(ctx, a.BoardID)
	if err != nil {
		return nil, err
	}
	return &boardHistoryResult{
		Board:      board,
		Tracks:     tracks,
		Count:      len(tracks),
		Confidence: store.Summarize(tracks),
	}, nil
}
