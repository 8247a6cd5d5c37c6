package detection

import (
	"fmt"

	"github.com/ironsheep/positioning-tools/internal/geometry"
)

// DetectionBox is an axis-aligned match in rectified-frame pixel space.
//
// The coordinate convention follows the template placement:
//   - (X1, Y1) is the top-left pixel of the matched window
//   - (X2, Y2) is (X1 + template width, Y1 + template height)
//
// Suppression treats the box as inclusive on both ends, so its area is
// (X2-X1+1) * (Y2-Y1+1).
type DetectionBox struct {
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Score float64 `json:"score"`
}

// Width returns X2 - X1.
func (b DetectionBox) Width() int { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b DetectionBox) Height() int { return b.Y2 - b.Y1 }

// Center returns the integer centroid ((X1+X2)/2, (Y1+Y2)/2) using floor
// division.
func (b DetectionBox) Center() geometry.Point {
	return geometry.Point{X: floorDiv2(b.X1 + b.X2), Y: floorDiv2(b.Y1 + b.Y2)}
}

// String formats the box as "[x1,y1,x2,y2]".
func (b DetectionBox) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// area is the inclusive area used by suppression.
func (b DetectionBox) area() int {
	return (b.X2 - b.X1 + 1) * (b.Y2 - b.Y1 + 1)
}

func floorDiv2(v int) int {
	if v < 0 && v%2 != 0 {
		return v/2 - 1
	}
	return v / 2
}
