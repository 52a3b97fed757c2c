package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
)

type fakeDetector struct{}

func (fakeDetector) DetectRectangle(_ context.Context, _ image.Image, roi geom.Rect) (pipeline.Detection, bool, error) {
	inner := geom.Rect{X: roi.X + roi.W/8, Y: roi.Y + roi.H/8, W: roi.W * 3 / 4, H: roi.H * 3 / 4}
	return pipeline.NewDetection(inner, 0.9), true, nil
}

type fakeTracker struct{}

func (fakeTracker) TrackRectangle(_ context.Context, _ image.Image, prior pipeline.Detection) (pipeline.Detection, bool, error) {
	return prior, true, nil
}

type fakeLocator struct{ box geom.Rect }

func (l fakeLocator) LocateBoard(context.Context, image.Image) (geom.Rect, error) {
	return l.box, nil
}

// newTestPipeline starts a 2x2 pipeline that finds a tile in every region.
func newTestPipeline(t *testing.T, mutate func(*pipeline.Options)) *pipeline.Pipeline {
	t.Helper()
	opts := pipeline.Options{
		GridSize:    2,
		MaxInFlight: 4,
		Detector:    fakeDetector{},
		Tracker:     fakeTracker{},
	}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := pipeline.New(opts)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Pipeline == nil {
		opts.Pipeline = newTestPipeline(t, nil)
	}
	if opts.SettleWait == 0 {
		opts.SettleWait = 2 * time.Second
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresPipeline(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestMCPResponse_WithError(t *testing.T) {
	resp := MCPResponse{
		JSONRPC: "2.0",
		ID:      1,
		Error:   &MCPError{Code: -32601, Message: "Method not found"},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "result")
	assert.Contains(t, decoded, "error")
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(t, Options{Version: "1.2.3"})

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	assert.Equal(t, 1, resp.ID)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	info := result["serverInfo"].(map[string]interface{})
	assert.Equal(t, "board-tracker-mcp", info["name"])
	assert.Equal(t, "1.2.3", info["version"])
}

func TestHandleRequest_Ping(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"})
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "ping-1", resp.ID)
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	tools, ok := resp.Result.(map[string]interface{})["tools"].([]Tool)
	require.True(t, ok)
	assert.Len(t, tools, len(GetToolDefinitions()))
}

func TestHandleRequest_NotificationsInitialized(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
	assert.Nil(t, resp)
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	s := newTestServer(t, Options{})

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "nonexistent/method"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func decodeLines(t *testing.T, out *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var resps []map[string]interface{}
	dec := json.NewDecoder(out)
	for dec.More() {
		var m map[string]interface{}
		require.NoError(t, dec.Decode(&m))
		resps = append(resps, m)
	}
	return resps
}

func TestRun_ProcessesLines(t *testing.T) {
	s := newTestServer(t, Options{})
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"pipeline_snapshot"}}`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, s.Run(context.Background(), in, &out))

	resps := decodeLines(t, &out)
	require.Len(t, resps, 3)
	assert.Equal(t, float64(1), resps[0]["id"])
	assert.Equal(t, float64(-32700), resps[1]["error"].(map[string]interface{})["code"])
	assert.Equal(t, float64(2), resps[2]["id"])
	assert.Contains(t, resps[2], "result")
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := newTestServer(t, Options{})
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, in, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
