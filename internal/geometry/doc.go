// Package geometry rectifies a quadrilateral region of a camera frame into a
// fronto-parallel rectangle.
//
// The region is described by four manually selected corner points in
// arbitrary order. Rectification runs in three steps:
//
//  1. Ordering: the corners are ordered into top-left, top-right,
//     bottom-left, bottom-right. The default strategy sorts by y then x and
//     fixes each pair by x. It assumes both top corners sit strictly above
//     both bottom corners; strongly rotated regions break that assumption.
//     OrderingAngle sorts around the centroid instead and copes with them.
//
//  2. Sizing: the output width is the rounded distance TL→TR and the output
//     height the rounded distance TL→BL.
//
//  3. Warping: a projective transform mapping the ordered corners exactly
//     onto (0,0), (w-1,0), (0,h-1), (w-1,h-1) is solved from the four
//     correspondences and every output pixel is resampled from the source
//     with bilinear interpolation. Source coordinates outside the frame
//     read as black.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with the origin at the top-left corner,
// X increasing rightward and Y increasing downward, matching the image
// package.
//
// # Degenerate Geometry
//
// Corners that collapse the output (width or height below two pixels), that
// enclose no area, that do not form a convex quadrilateral once ordered, or
// that yield a singular transform fail with faults.ErrDegenerateGeometry
// instead of producing a garbage image.
//
// This is not a camera calibration package: there is no intrinsic or
// extrinsic solve and no lens distortion model.
package geometry
