package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// Point represents a pixel coordinate in camera-frame space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String formats the point the way it is persisted: "x,y".
func (p Point) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// PointF is a sub-pixel coordinate.
type PointF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Float converts p to sub-pixel coordinates.
func (p Point) Float() PointF {
	return PointF{X: float64(p.X), Y: float64(p.Y)}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ParsePoint parses an "x,y" integer pair. Surrounding whitespace is
// ignored on both fields.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Point{}, faults.Invalid("point %q: want \"x,y\"", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Point{}, faults.Invalid("point %q: bad x: %v", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Point{}, faults.Invalid("point %q: bad y: %v", s, err)
	}
	return Point{X: x, Y: y}, nil
}

// CornerSet is the quadrilateral region of interest: exactly four corners in
// the order they were picked. It is never mutated during detection.
type CornerSet [4]Point

// NewCornerSet builds a CornerSet from a slice, failing when the slice does
// not hold exactly four points.
func NewCornerSet(points []Point) (CornerSet, error) {
	var cs CornerSet
	if len(points) != 4 {
		return cs, faults.Invalid("four corners required, got %d", len(points))
	}
	copy(cs[:], points)
	return cs, nil
}

// ParseCornerSet parses four points separated by semicolons, for example
// "10,10;200,12;8,150;205,149".
func ParseCornerSet(s string) (CornerSet, error) {
	fields := strings.Split(s, ";")
	points := make([]Point, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			continue
		}
		p, err := ParsePoint(f)
		if err != nil {
			return CornerSet{}, err
		}
		points = append(points, p)
	}
	return NewCornerSet(points)
}

// Shape is the (height, width, channels) of a rectified frame. Channels is
// kept for record keeping only; no geometry depends on it.
type Shape struct {
	Height   int `json:"height"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// Validate checks that both spatial dimensions are positive.
func (s Shape) Validate() error {
	if s.Height <= 0 || s.Width <= 0 {
		return faults.Invalid("shape %dx%d: height and width must be positive", s.Height, s.Width)
	}
	return nil
}

// String formats the shape the way it is persisted: "h,w,c".
func (s Shape) String() string {
	return fmt.Sprintf("%d,%d,%d", s.Height, s.Width, s.Channels)
}
