package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/positioning-tools/internal/config"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writePNG(t, img)
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// createSceneFile writes a 200x120 frame with a smooth background and a
// square logo whose top-left corner is at (54,44).
func createSceneFile(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			v := 100 + 50*math.Sin(float64(x)/7)*math.Cos(float64(y)/9)
			img.Set(x, y, color.RGBA{uint8(v), uint8(v), uint8(v), 255})
		}
	}
	for y := 44; y < 56; y++ {
		for x := 54; x < 66; x++ {
			c := color.RGBA{250, 250, 250, 255}
			if x >= 58 && x < 62 && y >= 48 && y < 52 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	return writePNG(t, img)
}

var sceneCorners = []map[string]int{
	{"x": 170, "y": 100}, {"x": 10, "y": 10}, {"x": 10, "y": 100}, {"x": 170, "y": 10},
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CalibrationRoot = t.TempDir()
	return New(cfg, nil), cfg.CalibrationRoot
}

// callTool invokes a tool through handleRequest and decodes the text result.
func callTool(t *testing.T, s *Server, name string, args interface{}) (*MCPResponse, map[string]interface{}) {
	t.Helper()
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp, nil
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("tool result is not JSON: %v", err)
	}
	return resp, out
}

func mustCall(t *testing.T, s *Server, name string, args interface{}) map[string]interface{} {
	t.Helper()
	resp, out := callTool(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s failed: %v (%v)", name, resp.Error.Message, resp.Error.Data)
	}
	return out
}

func expectErrorCode(t *testing.T, resp *MCPResponse, code int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error code %d, got success", code)
	}
	if resp.Error.Code != code {
		t.Errorf("error code: got %d, want %d (%v)", resp.Error.Code, code, resp.Error.Data)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	out := mustCall(t, s, "image_load", map[string]interface{}{"path": imgPath})
	if out["width"] != float64(100) || out["height"] != float64(80) || out["format"] != "png" {
		t.Errorf("image info: %v", out)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s, _ := newTestServer(t)
	resp, _ := callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/image.png"})
	expectErrorCode(t, resp, -32000)
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s, _ := newTestServer(t)
	resp, _ := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	expectErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_MissingArguments(t *testing.T) {
	s, _ := newTestServer(t)
	paramsJSON, _ := json.Marshal(map[string]interface{}{"name": "position_detect"})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: paramsJSON})
	expectErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{invalid json}`),
	})
	expectErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_Crop(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{0, 0, 255, 255})

	out := mustCall(t, s, "image_crop", map[string]interface{}{
		"path": imgPath, "x1": 10, "y1": 10, "x2": 50, "y2": 30, "scale": 2.0,
	})
	if out["width"] != float64(80) || out["height"] != float64(40) {
		t.Errorf("crop size: %v x %v", out["width"], out["height"])
	}

	resp, _ := callTool(t, s, "image_crop", map[string]interface{}{
		"path": imgPath, "x1": 50, "y1": 10, "x2": 150, "y2": 30,
	})
	expectErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_SampleColor(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 50, 50, color.RGBA{255, 128, 0, 255})

	out := mustCall(t, s, "image_sample_color", map[string]interface{}{"path": imgPath, "x": 25, "y": 25})
	if out["hex"] != "#FF8000" {
		t.Errorf("hex: got %v, want #FF8000", out["hex"])
	}
}

func TestHandleToolsCall_OrderCorners(t *testing.T) {
	s, _ := newTestServer(t)

	out := mustCall(t, s, "position_order_corners", map[string]interface{}{
		"points": []map[string]int{{"x": 100, "y": 50}, {"x": 0, "y": 0}, {"x": 0, "y": 50}, {"x": 100, "y": 0}},
	})
	ordered := out["ordered"].(map[string]interface{})
	tr := ordered["top_right"].(map[string]interface{})
	if tr["x"] != float64(100) || tr["y"] != float64(0) {
		t.Errorf("top_right: %v", tr)
	}
	if out["width"] != float64(100) || out["height"] != float64(50) || out["valid"] != true {
		t.Errorf("result: %v", out)
	}
	h, ok := out["homography"].([]interface{})
	if !ok || len(h) != 9 {
		t.Fatalf("homography: got %v", out["homography"])
	}
	// The 100x50 rectangle maps onto (0,0)-(99,49): a pure scale.
	for i, want := range []float64{0.99, 0, 0, 0, 0.98, 0, 0, 0, 1} {
		if got := h[i].(float64); math.Abs(got-want) > 1e-6 {
			t.Errorf("homography[%d]: got %v, want %v", i, got, want)
		}
	}

	// Three points on one line
	out = mustCall(t, s, "position_order_corners", map[string]interface{}{
		"points": []map[string]int{{"x": 0, "y": 0}, {"x": 50, "y": 0}, {"x": 100, "y": 0}, {"x": 0, "y": 50}},
	})
	if out["valid"] != false || out["problem"] == "" {
		t.Errorf("collinear corners reported valid: %v", out)
	}
	if _, ok := out["homography"]; ok {
		t.Errorf("invalid corners should carry no homography: %v", out)
	}

	resp, _ := callTool(t, s, "position_order_corners", map[string]interface{}{
		"points": []map[string]int{{"x": 0, "y": 0}, {"x": 50, "y": 0}, {"x": 0, "y": 50}},
	})
	expectErrorCode(t, resp, -32602)

	resp, _ = callTool(t, s, "position_order_corners", map[string]interface{}{
		"points":   []map[string]int{{"x": 0, "y": 0}, {"x": 50, "y": 0}, {"x": 0, "y": 50}, {"x": 50, "y": 50}},
		"ordering": "spiral",
	})
	expectErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_ToPhysical(t *testing.T) {
	s, _ := newTestServer(t)

	out := mustCall(t, s, "position_to_physical", map[string]interface{}{
		"x": 50, "y": 25, "width": 100, "height": 50, "length_mm": 200, "width_mm": 100,
	})
	if out["x_mm"] != 100.0 || out["y_mm"] != 50.0 {
		t.Errorf("physical: %v", out)
	}

	resp, _ := callTool(t, s, "position_to_physical", map[string]interface{}{
		"x": 50, "y": 25, "width": 0, "height": 50, "length_mm": 200, "width_mm": 100,
	})
	expectErrorCode(t, resp, -32000)
}

func TestHandleToolsCall_Measure(t *testing.T) {
	s, _ := newTestServer(t)

	out := mustCall(t, s, "position_measure", map[string]interface{}{
		"x1": 0, "y1": 0, "x2": 30, "y2": 40, "width": 100, "height": 100, "length_mm": 100, "width_mm": 100,
	})
	if out["distance_mm"] != 50.0 {
		t.Errorf("distance: got %v, want 50", out["distance_mm"])
	}
}

func TestHandleToolsCall_Grid(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 120, 90, color.RGBA{255, 255, 255, 255})

	out := mustCall(t, s, "position_grid", map[string]interface{}{"path": imgPath, "grid_spacing": 30})
	img, ok := out["image"].(map[string]interface{})
	if !ok || img["image_base64"] == "" || img["mime_type"] != "image/png" {
		t.Errorf("grid image missing: %v", out)
	}

	outPath := filepath.Join(t.TempDir(), "grid.png")
	out = mustCall(t, s, "position_grid", map[string]interface{}{"path": imgPath, "output_path": outPath})
	if out["output_path"] != outPath {
		t.Errorf("output_path: %v", out["output_path"])
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("grid not saved: %v", err)
	}

	resp, _ := callTool(t, s, "position_grid", map[string]interface{}{"path": imgPath, "grid_color": "blue"})
	expectErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_CalibrationWorkflow(t *testing.T) {
	s, root := newTestServer(t)
	frame := createSceneFile(t)

	// Corners
	out := mustCall(t, s, "calibration_save_corners", map[string]interface{}{
		"folder": "line_a", "frame_path": frame, "corners": sceneCorners,
	})
	shape := out["shape"].(map[string]interface{})
	if shape["width"] != float64(160) || shape["height"] != float64(90) {
		t.Fatalf("shape: %v", shape)
	}
	if _, err := os.Stat(filepath.Join(root, "line_a", "output.jpg")); err != nil {
		t.Fatalf("output.jpg not written: %v", err)
	}

	// Real size
	out = mustCall(t, s, "calibration_save_real_size", map[string]interface{}{
		"folder": "line_a", "length_mm": 320, "width_mm": 180,
	})
	if out["aspect_suspicious"] != false {
		t.Errorf("matching aspect flagged: %v", out)
	}

	// Template around the logo
	out = mustCall(t, s, "calibration_capture_template", map[string]interface{}{
		"folder": "line_a", "x1": 40, "y1": 30, "x2": 60, "y2": 50,
	})
	if out["width"] != float64(20) || out["height"] != float64(20) {
		t.Errorf("template size: %v", out)
	}

	// Load
	out = mustCall(t, s, "calibration_load", map[string]interface{}{"folder": "line_a"})
	if out["template_width"] != float64(20) || out["aspect_suspicious"] != false {
		t.Errorf("summary: %v", out)
	}

	// List
	out = mustCall(t, s, "calibration_list_folders", map[string]interface{}{})
	folders := out["folders"].([]interface{})
	if len(folders) != 1 || folders[0].(map[string]interface{})["has_template"] != true {
		t.Errorf("folders: %v", folders)
	}

	// Detect
	annotated := filepath.Join(t.TempDir(), "annotated.png")
	out = mustCall(t, s, "position_detect", map[string]interface{}{
		"path": frame, "folder": "line_a", "annotate_path": annotated,
	})
	if out["found"] != true {
		t.Fatalf("logo not found: best score %v", out["best_score"])
	}
	dets := out["detections"].([]interface{})
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	mm := dets[0].(map[string]interface{})["center_mm"].(map[string]interface{})
	if x := mm["x_mm"].(float64); x < 96 || x > 104 {
		t.Errorf("x_mm: got %v, want about 100", x)
	}
	if y := mm["y_mm"].(float64); y < 76 || y > 84 {
		t.Errorf("y_mm: got %v, want about 80", y)
	}
	if _, err := os.Stat(annotated); err != nil {
		t.Errorf("annotated frame not saved: %v", err)
	}

	// Rectify with the stored corners, then locate on the result
	rectified := filepath.Join(t.TempDir(), "rectified.png")
	out = mustCall(t, s, "position_rectify", map[string]interface{}{
		"path": frame, "folder": "line_a", "output_path": rectified,
	})
	if out["output_path"] != rectified {
		t.Errorf("rectify output_path: %v", out["output_path"])
	}
	out = mustCall(t, s, "position_locate", map[string]interface{}{
		"path": rectified, "template_path": filepath.Join(root, "line_a", "template.jpg"),
	})
	if out["found"] != true {
		t.Errorf("locate did not find the logo: %v", out)
	}

	// Scaling through the folder
	out = mustCall(t, s, "position_to_physical", map[string]interface{}{"folder": "line_a", "x": 80, "y": 45})
	if out["x_mm"] != 160.0 || out["y_mm"] != 90.0 {
		t.Errorf("folder scaling: %v", out)
	}
}

func TestHandleToolsCall_DetectNoMatch(t *testing.T) {
	s, _ := newTestServer(t)
	frame := createSceneFile(t)
	mustCall(t, s, "calibration_save_corners", map[string]interface{}{
		"folder": "line_a", "frame_path": frame, "corners": sceneCorners,
	})
	mustCall(t, s, "calibration_save_real_size", map[string]interface{}{
		"folder": "line_a", "length_mm": 320, "width_mm": 180,
	})
	mustCall(t, s, "calibration_capture_template", map[string]interface{}{
		"folder": "line_a", "x1": 40, "y1": 30, "x2": 60, "y2": 50,
	})

	blank := createTestImageFile(t, 200, 120, color.RGBA{90, 90, 90, 255})
	out := mustCall(t, s, "position_detect", map[string]interface{}{"path": blank, "folder": "line_a"})
	if out["found"] != false {
		t.Errorf("found a logo in a blank frame: %v", out)
	}
	if dets, ok := out["detections"].([]interface{}); !ok || len(dets) != 0 {
		t.Errorf("detections should be an empty list, got %v", out["detections"])
	}
}

func TestHandleToolsCall_MissingFolder(t *testing.T) {
	s, _ := newTestServer(t)
	frame := createSceneFile(t)

	resp, _ := callTool(t, s, "position_detect", map[string]interface{}{"path": frame, "folder": "nope"})
	expectErrorCode(t, resp, -32000)

	resp, _ = callTool(t, s, "calibration_load", map[string]interface{}{"folder": "nope"})
	expectErrorCode(t, resp, -32000)

	resp, _ = callTool(t, s, "position_rectify", map[string]interface{}{"path": frame})
	expectErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_DegenerateCorners(t *testing.T) {
	s, _ := newTestServer(t)
	frame := createSceneFile(t)

	resp, _ := callTool(t, s, "calibration_save_corners", map[string]interface{}{
		"folder":     "line_a",
		"frame_path": frame,
		"corners":    []map[string]int{{"x": 10, "y": 10}, {"x": 11, "y": 10}, {"x": 10, "y": 100}, {"x": 11, "y": 100}},
	})
	expectErrorCode(t, resp, -32000)
}

func TestExecuteTool_AllTools(t *testing.T) {
	s, _ := newTestServer(t)
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			// Every defined tool must be dispatched; an empty argument object
			// may fail validation but never as an unknown tool.
			_, err := s.executeTool(tool.Name, json.RawMessage(`{}`))
			if err != nil && strings.Contains(err.Error(), "unknown tool") {
				t.Errorf("tool %s is defined but not dispatched", tool.Name)
			}
		})
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s, _ := newTestServer(t)
	if _, err := s.executeTool("position_detect", json.RawMessage(`{invalid`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestHandleToolsCall_SuggestCorners(t *testing.T) {
	s, _ := newTestServer(t)

	img := image.NewRGBA(image.Rect(0, 0, 200, 150))
	for y := 0; y < 150; y++ {
		for x := 0; x < 200; x++ {
			c := color.RGBA{230, 230, 230, 255}
			if x >= 30 && x <= 170 && y >= 20 && y <= 120 {
				c = color.RGBA{40, 40, 40, 255}
			}
			img.Set(x, y, c)
		}
	}
	path := writePNG(t, img)

	out := mustCall(t, s, "position_suggest_corners", map[string]interface{}{"path": path})
	candidates := out["candidates"].([]interface{})
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	corners := candidates[0].(map[string]interface{})["corners"].([]interface{})
	if len(corners) != 4 {
		t.Errorf("corners: %v", corners)
	}

	resp, _ := callTool(t, s, "position_suggest_corners", map[string]interface{}{"path": path, "min_support": 1.5})
	expectErrorCode(t, resp, -32602)
}
