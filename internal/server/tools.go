package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// cornersSchema describes an array of exactly four {x, y} points.
func cornersSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"minItems":    4,
		"maxItems":    4,
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"x": map[string]interface{}{"type": "integer"},
				"y": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"x", "y"},
		},
	}
}

var orderingSchema = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"yx", "angle"},
	"description": "Corner ordering: yx (sort by y then x, default) or angle (around the centroid, for rotated regions)",
}

var folderSchema = map[string]interface{}{
	"type":        "string",
	"description": "Parameter folder name under the calibration root, or an absolute path",
}

// scaleProperties are the shape and real-size arguments shared by the
// scaling tools.
func scaleProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"folder":    folderSchema,
		"width":     map[string]interface{}{"type": "integer", "description": "Rectified width in pixels (ignored with folder)"},
		"height":    map[string]interface{}{"type": "integer", "description": "Rectified height in pixels (ignored with folder)"},
		"length_mm": map[string]interface{}{"type": "integer", "description": "Real length in mm along the width axis (ignored with folder)"},
		"width_mm":  map[string]interface{}{"type": "integer", "description": "Real width in mm along the height axis (ignored with folder)"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image inspection
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG. Use this to preview a template region before capturing it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"x1": map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"},
					"y1": map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"},
					"x2": map[string]interface{}{"type": "integer", "description": "Right edge X coordinate (exclusive)"},
					"y2": map[string]interface{}{"type": "integer", "description": "Bottom edge Y coordinate (exclusive)"},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "image_sample_color",
			Description: "Get the exact color value at a specific pixel coordinate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"x": map[string]interface{}{"type": "integer", "description": "X coordinate (0-based, from left)"},
					"y": map[string]interface{}{"type": "integer", "description": "Y coordinate (0-based, from top)"},
				},
				"required": []string{"path", "x", "y"},
			},
		},

		// Positioning
		{
			Name:        "position_rectify",
			Description: "Warp the quadrilateral given by four corners (or a parameter folder's stored corners) into a fronto-parallel rectangle.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the camera frame",
					},
					"corners":  cornersSchema("Four corners in any order; takes precedence over folder"),
					"folder":   folderSchema,
					"ordering": orderingSchema,
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor for the returned preview. Default 1.0",
						"default":     1.0,
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Save the rectified image here instead of returning it",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "position_locate",
			Description: "Find every occurrence of a template in an already rectified image using normalized cross-correlation and non-max suppression.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the rectified image",
					},
					"template_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the template image",
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Minimum correlation score (default 0.9)",
						"default":     0.9,
					},
					"overlap": map[string]interface{}{
						"type":        "number",
						"description": "Suppression overlap ratio (default 0.3)",
						"default":     0.3,
					},
				},
				"required": []string{"path", "template_path"},
			},
		},
		{
			Name:        "position_detect",
			Description: "Run the full pipeline on one camera frame: rectify with the folder's corners, locate its template, and report each detection in millimetres.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the camera frame",
					},
					"folder":    folderSchema,
					"ordering":  orderingSchema,
					"threshold": map[string]interface{}{"type": "number", "description": "Minimum correlation score (default 0.9)", "default": 0.9},
					"overlap":   map[string]interface{}{"type": "number", "description": "Suppression overlap ratio (default 0.3)", "default": 0.3},
					"annotate_path": map[string]interface{}{
						"type":        "string",
						"description": "Save the rectified frame with boxes and centres drawn on it",
					},
				},
				"required": []string{"path", "folder"},
			},
		},
		{
			Name:        "position_order_corners",
			Description: "Order four unordered corners into top-left, top-right, bottom-left, bottom-right and report the rectified size, the frame-to-rectified homography and whether the quadrilateral is usable.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"points":   cornersSchema("Four corners in any order"),
					"ordering": orderingSchema,
				},
				"required": []string{"points"},
			},
		},
		{
			Name:        "position_to_physical",
			Description: "Convert a rectified-frame pixel position to millimetres, rounded to 0.1 mm.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": scaleProperties(map[string]interface{}{
					"x": map[string]interface{}{"type": "number", "description": "X in rectified pixels"},
					"y": map[string]interface{}{"type": "number", "description": "Y in rectified pixels"},
				}),
				"required": []string{"x", "y"},
			},
		},
		{
			Name:        "position_measure",
			Description: "Measure the physical distance and direction between two rectified-frame points.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": scaleProperties(map[string]interface{}{
					"x1": map[string]interface{}{"type": "number", "description": "First point X"},
					"y1": map[string]interface{}{"type": "number", "description": "First point Y"},
					"x2": map[string]interface{}{"type": "number", "description": "Second point X"},
					"y2": map[string]interface{}{"type": "number", "description": "Second point Y"},
				}),
				"required": []string{"x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "position_suggest_corners",
			Description: "Propose corner sets for calibration from closed, high-contrast outlines in a frame (for example a tray edge). Largest outline first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the camera frame",
					},
					"min_area": map[string]interface{}{
						"type":        "integer",
						"description": "Smallest enclosed area in square pixels. Default 400",
						"default":     400,
					},
					"min_support": map[string]interface{}{
						"type":        "number",
						"description": "Fraction of each outline's sides that must lie on edges (0.0-1.0). Default 0.8",
						"default":     0.8,
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of proposals. Default 5",
						"default":     5,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "position_grid",
			Description: "Return the image with a labelled coordinate grid, for reading off corner positions.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"grid_spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels between grid lines (default 50)",
						"default":     50,
					},
					"show_coordinates": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether to label grid intersections with coordinates",
						"default":     true,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line color as hex (default #FF000080 - semi-transparent red)",
						"default":     "#FF000080",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor for the returned image. Default 1.0",
						"default":     1.0,
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Save the grid image here instead of returning it",
					},
				},
				"required": []string{"path"},
			},
		},

		// Parameter folders
		{
			Name:        "calibration_load",
			Description: "Read and validate a parameter folder (points.txt, real_size.txt, template.jpg) and summarise it, flagging a suspicious aspect ratio.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"folder": folderSchema,
				},
				"required": []string{"folder"},
			},
		},
		{
			Name:        "calibration_save_corners",
			Description: "Rectify a frame with four corners and save the corners, rectified shape, and rectified image (output.jpg) to a parameter folder.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"folder": folderSchema,
					"frame_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the camera frame the corners were picked on",
					},
					"corners":  cornersSchema("Four corners in any order"),
					"ordering": orderingSchema,
				},
				"required": []string{"folder", "frame_path", "corners"},
			},
		},
		{
			Name:        "calibration_save_real_size",
			Description: "Save the physical size of the rectified region to a parameter folder.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"folder":    folderSchema,
					"length_mm": map[string]interface{}{"type": "integer", "description": "Length in mm along the rectified width"},
					"width_mm":  map[string]interface{}{"type": "integer", "description": "Width in mm along the rectified height"},
				},
				"required": []string{"folder", "length_mm", "width_mm"},
			},
		},
		{
			Name:        "calibration_capture_template",
			Description: "Crop a region of the folder's rectified image (or another rectified image) and save it as the folder's template.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"folder": folderSchema,
					"source_path": map[string]interface{}{
						"type":        "string",
						"description": "Rectified image to crop from (default: the folder's output.jpg)",
					},
					"x1": map[string]interface{}{"type": "integer", "description": "Left edge X coordinate"},
					"y1": map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate"},
					"x2": map[string]interface{}{"type": "integer", "description": "Right edge X coordinate (exclusive)"},
					"y2": map[string]interface{}{"type": "integer", "description": "Bottom edge Y coordinate (exclusive)"},
				},
				"required": []string{"folder", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "calibration_list_folders",
			Description: "List parameter folders under the calibration root and which files each one has.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"root": map[string]interface{}{
						"type":        "string",
						"description": "Directory to list (default: the configured calibration root)",
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
