// Package imaging provides the raster plumbing shared by the positioning
// tools: cached decoding, atomic encoding, cropping, colour parsing, text
// labels, and the coordinate grid used to pick corners by eye.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images. Drawing
// helpers mutate their destination and must not share one across goroutines.
//
// # File Output
//
// Save never leaves a partially written file behind: the image is encoded to
// a temporary file in the destination directory, which is then renamed over
// the target. The format is chosen from the file extension.
//
// # Error Handling
//
// Invalid arguments (regions outside the image, malformed colours) wrap
// faults.ErrInvalidInput. File system and codec failures wrap
// faults.ErrResource.
package imaging
