// Package detection locates a template in a rectified frame.
//
// The matcher scores every placement of the template with the normalised
// cross-correlation coefficient, keeps the placements scoring at or above a
// threshold, and collapses overlapping placements with non-maximum
// suppression.
//
// # Algorithm Overview
//
//  1. Grayscale: convert frame and template to 8-bit luma (BT.601 weights)
//  2. Response surface: for each top-left (x, y), correlate the template with
//     the window below it. Window sums come from integral images, so only the
//     cross term is computed per pixel
//  3. Candidates: every placement with score >= Threshold becomes a box
//     (x, y, x+tw, y+th)
//  4. Suppression: NonMaxSuppress with the asymmetric overlap ratio
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// A DetectionBox is (X1, Y1, X2, Y2) with X2 = X1 + template width. The
// suppression overlap treats both ends as inclusive.
//
// # Scores
//
// Scores lie in [-1, 1]. A window or template with no intensity variation
// scores 0, except that a flat window matching a flat template of the same
// intensity scores 1.
//
// # Engines
//
// Options.Engine picks who computes the surface. EngineGo is the pure-Go
// path above; its cost grows with the template area times the number of
// placements. EngineOpenCV calls cv::matchTemplate and needs the gocv build
// tag. Both produce the same scores up to float32 precision.
//
// # Region Suggestions
//
// SuggestRegions is a calibration aid. It finds closed edge outlines and
// proposes the four extreme points of each as a corner set. It works best on
// a clear, high-contrast boundary such as a tray edge or a taped rectangle.
package detection
