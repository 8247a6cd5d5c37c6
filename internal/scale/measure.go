package scale

import (
	"math"

	"github.com/ironsheep/positioning-tools/internal/geometry"
)

// Measurement is the physical separation of two rectified-frame points.
type Measurement struct {
	From         PhysicalPoint `json:"from"`
	To           PhysicalPoint `json:"to"`
	DeltaXMM     float64       `json:"delta_x_mm"`
	DeltaYMM     float64       `json:"delta_y_mm"`
	DistanceMM   float64       `json:"distance_mm"`
	AngleDegrees float64       `json:"angle_degrees"`
}

// Measure converts both points to millimetres and reports the distance and
// direction between them. The angle is 0 pointing along the region's length
// and 90 pointing along its width, away from the top edge.
//
// The distance is computed from the unrounded coordinates and then rounded
// to 0.1 mm, so it may differ slightly from the distance between From and To.
func Measure(a, b geometry.PointF, shape geometry.Shape, real RealSize) (*Measurement, error) {
	from, err := ToPhysical(a, shape, real)
	if err != nil {
		return nil, err
	}
	to, err := ToPhysical(b, shape, real)
	if err != nil {
		return nil, err
	}

	dx := (b.X - a.X) / float64(shape.Width) * float64(real.LengthMM)
	dy := (b.Y - a.Y) / float64(shape.Height) * float64(real.WidthMM)

	return &Measurement{
		From:         from,
		To:           to,
		DeltaXMM:     Round1(dx),
		DeltaYMM:     Round1(dy),
		DistanceMM:   Round1(math.Hypot(dx, dy)),
		AngleDegrees: Round1(math.Atan2(dy, dx) * 180 / math.Pi),
	}, nil
}
