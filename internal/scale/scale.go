// Package scale maps rectified-frame pixel coordinates to millimetres.
//
// The rectified frame is a fronto-parallel view of a region whose real
// extent is known, so the mapping is a per-axis linear scale:
//
//	x_mm = cx / width  * length_mm
//	y_mm = cy / height * width_mm
//
// The region's length runs along the rectified width and its width along the
// rectified height. Results are rounded to 0.1 mm, ties to even.
package scale

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
)

// DefaultAspectTolerance is the relative aspect difference above which a
// calibration is reported as suspicious.
const DefaultAspectTolerance = 0.15

// RealSize is the physical extent of the rectified region in millimetres.
type RealSize struct {
	LengthMM int `json:"length_mm"`
	WidthMM  int `json:"width_mm"`
}

// Validate checks that both extents are positive.
func (r RealSize) Validate() error {
	if r.LengthMM <= 0 || r.WidthMM <= 0 {
		return faults.Invalid("real size %dx%d mm: both extents must be positive", r.LengthMM, r.WidthMM)
	}
	return nil
}

// String formats the size the way it is persisted: "length,width".
func (r RealSize) String() string {
	return fmt.Sprintf("%d,%d", r.LengthMM, r.WidthMM)
}

// PhysicalPoint is a position on the region in millimetres, measured from
// the top-left corner.
type PhysicalPoint struct {
	XMM float64 `json:"x_mm"`
	YMM float64 `json:"y_mm"`
}

// String formats the point as "(x.x, y.y) mm".
func (p PhysicalPoint) String() string {
	return fmt.Sprintf("(%.1f, %.1f) mm", p.XMM, p.YMM)
}

// ToPhysical converts a rectified-frame pixel centre to millimetres.
//
// A shape with a zero (or negative) width or height cannot be scaled and
// fails with faults.ErrDegenerateGeometry.
func ToPhysical(center geometry.PointF, shape geometry.Shape, real RealSize) (PhysicalPoint, error) {
	if shape.Width <= 0 || shape.Height <= 0 {
		return PhysicalPoint{}, faults.Degenerate("cannot scale against rectified shape %dx%d", shape.Width, shape.Height)
	}
	return PhysicalPoint{
		XMM: Round1(center.X / float64(shape.Width) * float64(real.LengthMM)),
		YMM: Round1(center.Y / float64(shape.Height) * float64(real.WidthMM)),
	}, nil
}

// Round1 rounds v to one decimal place. The exact binary value of v is
// rounded, with ties going to the even digit, so 0.25 gives 0.2 and 0.35
// (stored just below 0.35) gives 0.3.
func Round1(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// AspectMismatch returns the relative difference between the rectified
// aspect ratio (width/height) and the real one (length/width). Zero means a
// perfect fit. Invalid inputs report zero.
func AspectMismatch(shape geometry.Shape, real RealSize) float64 {
	if shape.Width <= 0 || shape.Height <= 0 || real.LengthMM <= 0 || real.WidthMM <= 0 {
		return 0
	}
	px := float64(shape.Width) / float64(shape.Height)
	mm := float64(real.LengthMM) / float64(real.WidthMM)
	return math.Abs(px-mm) / mm
}
