package server

import (
	"encoding/json"
	"errors"
	"image"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "position_detect", "calibration_load").
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
// Malformed arguments or input (faults.ErrInvalidInput) return code -32602;
// every other failure returns -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "kind", faults.Kind(err), "error", err)
		if errors.Is(err, faults.ErrInvalidInput) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.log.Debug("tool succeeded", "tool", params.Name)

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
//
// Each tool handler:
//  1. Decodes its arguments
//  2. Applies configured defaults for optional parameters
//  3. Loads images and parameter folders as needed
//  4. Calls the geometry, detection, scale, or calibration packages
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image inspection
	case "image_load":
		return s.handleImageLoad(args)
	case "image_crop":
		return s.handleImageCrop(args)
	case "image_sample_color":
		return s.handleImageSampleColor(args)

	// Positioning
	case "position_rectify":
		return s.handlePositionRectify(args)
	case "position_locate":
		return s.handlePositionLocate(args)
	case "position_detect":
		return s.handlePositionDetect(args)
	case "position_order_corners":
		return s.handlePositionOrderCorners(args)
	case "position_to_physical":
		return s.handlePositionToPhysical(args)
	case "position_measure":
		return s.handlePositionMeasure(args)
	case "position_grid":
		return s.handlePositionGrid(args)
	case "position_suggest_corners":
		return s.handlePositionSuggestCorners(args)

	// Parameter folders
	case "calibration_load":
		return s.handleCalibrationLoad(args)
	case "calibration_save_corners":
		return s.handleCalibrationSaveCorners(args)
	case "calibration_save_real_size":
		return s.handleCalibrationSaveRealSize(args)
	case "calibration_capture_template":
		return s.handleCalibrationCaptureTemplate(args)
	case "calibration_list_folders":
		return s.handleCalibrationListFolders(args)

	default:
		return nil, faults.Invalid("unknown tool: %s", name)
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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments, reporting failures as invalid input.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return faults.Invalid("missing arguments")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return faults.Invalid("invalid arguments: %v", err)
	}
	return nil
}

type pointArg struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func cornerSetFromArgs(pts []pointArg) (geometry.CornerSet, error) {
	points := make([]geometry.Point, len(pts))
	for i, p := range pts {
		points[i] = geometry.Point{X: p.X, Y: p.Y}
	}
	return geometry.NewCornerSet(points)
}

// ordering returns the requested corner ordering or the configured default.
func (s *Server) ordering(name string) (geometry.Ordering, error) {
	if name == "" {
		return s.cfg.Ordering(), nil
	}
	return geometry.ParseOrdering(name)
}

// === Image Inspection Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type imageCropArgs struct {
	Path  string  `json:"path"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	cropped, err := imaging.Crop(img, image.Rect(a.X1, a.Y1, a.X2, a.Y2))
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(cropped, a.Scale)
}

type imageSampleColorArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type sampleColorResult struct {
	X   int    `json:"x"`
	Y   int    `json:"y"`
	Hex string `json:"hex"`
	R   uint8  `json:"r"`
	G   uint8  `json:"g"`
	B   uint8  `json:"b"`
	A   uint8  `json:"a"`
}

func (s *Server) handleImageSampleColor(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	c, err := imaging.SampleColor(img, a.X, a.Y)
	if err != nil {
		return nil, err
	}
	return &sampleColorResult{X: a.X, Y: a.Y, Hex: imaging.HexString(c), R: c.R, G: c.G, B: c.B, A: c.A}, nil
}
