// Package calibration persists the per-installation parameters of a fixed
// camera: the four corners of the region of interest with the rectified
// shape they produce, the real size of the region, and the template image.
//
// # Parameter Folder
//
// A parameter folder holds:
//
//   - points.txt: four "x,y" corner lines, then one "h,w,c" shape line
//   - real_size.txt: one "length,width" line in millimetres
//   - template.jpg: the template, converted to grayscale on load
//   - output.jpg: the last rectified frame, written when corners are saved
//
// Text files are written through a temporary file and a rename, so an
// interrupted save never leaves a truncated file behind.
//
// # Errors
//
// Malformed content wraps faults.ErrInvalidInput and names the file and line.
// Missing or unreadable files wrap faults.ErrResource.
package calibration
