// Package server implements the MCP (Model Context Protocol) server that
// drives the board tracking pipeline.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Frames:
//   - frame_load: Load a camera frame and report its size
//
// Board acquisition:
//   - board_classify: Report classifier labels; an accepted board is located
//   - board_set_bounds: Set the board box explicitly
//
// Pipeline:
//   - pipeline_tick: Deliver a frame and return the settled snapshot
//   - pipeline_reset: Return to idle
//   - pipeline_snapshot: Current phase, board and tracks
//
// Output:
//   - board_preview: Grid and tracked tiles drawn over a frame
//   - tiles_read: OCR of every tracked tile
//   - board_history: Recorded boards and their tracks
//
// # Frames
//
// Every tool that takes a path loads the frame through an imaging.FrameLoader,
// so a file the capture side rewrites in place is decoded again while an
// unchanged file is served from memory. Each pipeline_tick and board_classify
// call is a new frame with its own sequence number.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv, err := server.New(server.Options{Pipeline: p, Logger: log})
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx, os.Stdin, os.Stdout)
package server
