package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/board-tracker-mcp/internal/imaging"
	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
)

// Options configures a Server. Pipeline is required.
type Options struct {
	Pipeline *pipeline.Pipeline
	Loader   *imaging.FrameLoader
	Reader   TileReader // optional; without it tiles_read fails
	History  History    // optional; without it board_history fails
	Logger   *zap.Logger

	// SettleWait bounds how long pipeline_tick and board_classify wait for
	// dispatched work to finish before answering.
	SettleWait time.Duration

	Version string
}

// Server handles MCP protocol communication
type Server struct {
	pipeline   *pipeline.Pipeline
	loader     *imaging.FrameLoader
	reader     TileReader
	history    History
	log        *zap.Logger
	settleWait time.Duration
	version    string
	seq        atomic.Uint64
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("server: pipeline is required")
	}
	if opts.Loader == nil {
		opts.Loader = imaging.NewFrameLoader(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SettleWait <= 0 {
		opts.SettleWait = 500 * time.Millisecond
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Server{
		pipeline:   opts.Pipeline,
		loader:     opts.Loader,
		reader:     opts.Reader,
		history:    opts.History,
		log:        opts.Logger.Named("server"),
		settleWait: opts.SettleWait,
		version:    opts.Version,
	}, nil
}

// Run reads one JSON-RPC request per line from in and writes responses to
// out until in is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		// Increase buffer size for large requests
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	encoder := json.NewEncoder(out)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}

			var req MCPRequest
			if err := json.Unmarshal(line, &req); err != nil {
				s.log.Warn("failed to parse request", zap.Error(err))
				if err := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); err != nil {
					s.log.Error("failed to encode response", zap.Error(err))
				}
				continue
			}

			resp := s.handleRequest(ctx, &req)
			if resp != nil {
				if err := encoder.Encode(resp); err != nil {
					s.log.Error("failed to encode response", zap.Error(err))
				}
			}
		}
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.log.Debug("request", zap.String("method", req.Method), zap.Any("id", req.ID))

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "board-tracker-mcp",
				"version": s.version,
			},
		},
	}
}
