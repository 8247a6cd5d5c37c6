// Package server implements the MCP (Model Context Protocol) server for the
// positioning tools.
//
// This package provides a JSON-RPC 2.0 server that exposes rectification,
// template location, physical scaling and parameter-folder management
// through the MCP protocol, so an MCP client can calibrate a camera view and
// run detections without the interactive CLI.
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
// Image inspection:
//   - image_load: Load image and get metadata
//   - image_crop: Extract rectangular region
//   - image_sample_color: Get color at pixel
//
// Positioning:
//   - position_rectify: Warp a quadrilateral to a rectangle
//   - position_locate: Find a template in a rectified image
//   - position_detect: Full pipeline on one frame with a parameter folder
//   - position_order_corners: Order four corners and check the quadrilateral
//   - position_to_physical: Pixel position to millimetres
//   - position_measure: Physical distance between two points
//   - position_grid: Coordinate grid for picking corners
//
// Parameter folders:
//   - calibration_load: Validate and summarise a folder
//   - calibration_save_corners: Save corners, shape and rectified image
//   - calibration_save_real_size: Save the physical size
//   - calibration_capture_template: Crop and save the template
//   - calibration_list_folders: List folders under the root
//
// # Image Caching
//
// Templates and inspected images are cached by path for the lifetime of the
// process. Camera frames passed to the positioning tools are decoded fresh
// on every call. Saving a template evicts its cache entry.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for malformed arguments or input, -32000 for any other
//     failure (missing files, degenerate corners)
//   - message: Human-readable error description
//   - data: The Go error string
//
// A frame in which the template is not found is a successful call with
// "found": false.
//
// # Usage
//
//	srv := server.New(cfg, logger)
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
