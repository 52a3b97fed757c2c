package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathProperty is the schema of the frame path argument shared by most tools.
var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the camera frame image file",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Frames
		{
			Name:        "frame_load",
			Description: "Load a camera frame and return its dimensions, format and file size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},

		// Board acquisition
		{
			Name:        "board_classify",
			Description: "Report whole-frame classifier labels for a frame. When the labels identify a board and no board is being tracked, the board is located in the frame and tracking starts. The result reports ignored=true when a board was already present and locating=true when a locate started.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"labels": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"label": map[string]interface{}{
									"type":        "string",
									"description": "Classifier label, e.g. crossword_board",
								},
								"confidence": map[string]interface{}{
									"type":        "number",
									"description": "Label confidence between 0 and 1",
								},
							},
							"required": []string{"label", "confidence"},
						},
						"description": "Classifier output for the frame",
					},
				},
				"required": []string{"labels"},
			},
		},
		{
			Name:        "board_set_bounds",
			Description: "Set the board bounding box explicitly, in normalized frame coordinates. Replaces any current board and starts a new generation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Left edge (0-1)",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Top edge (0-1)",
					},
					"width": map[string]interface{}{
						"type":        "number",
						"description": "Width (0-1)",
					},
					"height": map[string]interface{}{
						"type":        "number",
						"description": "Height (0-1)",
					},
				},
				"required": []string{"x", "y", "width", "height"},
			},
		},

		// Pipeline
		{
			Name:        "pipeline_tick",
			Description: "Deliver a new camera frame to the pipeline. Untracked regions are scanned and tracked regions refreshed, then the resulting snapshot is returned.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Wait for dispatched work to finish before answering. Default true",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "pipeline_reset",
			Description: "Discard the board and all tracked regions and return to idle.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "pipeline_snapshot",
			Description: "Return the current phase, generation, board and tracked regions.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Output
		{
			Name:        "board_preview",
			Description: "Draw the board grid and the tracked regions over a frame and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"max_side": map[string]interface{}{
						"type":        "integer",
						"description": "Longest side of the returned image in pixels. Default 1024, 0 keeps the frame size",
						"default":     1024,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line color as hex. Default #0000FF",
						"default":     "#0000FF",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "tiles_read",
			Description: "Read the letter on every tracked tile of a frame using OCR.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "board_history",
			Description: "List recorded boards, or with board_id the recorded tracks of one board and their confidence summary.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"board_id": map[string]interface{}{
						"type":        "string",
						"description": "Board to describe. Omit to list all boards",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
