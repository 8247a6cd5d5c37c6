package geometry

import (
	"math"
	"sort"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// Ordering selects how four unordered corners are assigned to TL, TR, BL, BR.
type Ordering string

const (
	// OrderingYX sorts by y then x and fixes each pair by x. It is the
	// default and matches the behaviour calibration files were produced with.
	OrderingYX Ordering = "yx"

	// OrderingAngle sorts the corners by angle around their centroid. It
	// handles rotated regions where one top corner sits lower than a bottom
	// corner.
	OrderingAngle Ordering = "angle"
)

// ParseOrdering maps a configuration string to an Ordering. The empty
// string selects OrderingYX.
func ParseOrdering(s string) (Ordering, error) {
	switch Ordering(s) {
	case "", OrderingYX:
		return OrderingYX, nil
	case OrderingAngle:
		return OrderingAngle, nil
	default:
		return "", faults.Invalid("unknown corner ordering %q (want %q or %q)", s, OrderingYX, OrderingAngle)
	}
}

// OrderedCorners holds the corners of a region in rectification order.
type OrderedCorners struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomLeft  Point `json:"bottom_left"`
	BottomRight Point `json:"bottom_right"`
}

// Slice returns the corners as TL, TR, BL, BR.
func (o OrderedCorners) Slice() [4]Point {
	return [4]Point{o.TopLeft, o.TopRight, o.BottomLeft, o.BottomRight}
}

// OrderCorners orders a CornerSet with the y-then-x heuristic.
//
// The points are sorted by y ascending with ties broken on x, so the first
// two are taken as the top pair and the last two as the bottom pair. Each
// pair is then swapped so that the lower x comes first. The result is
// independent of the input permutation as long as the two top corners are
// both above the two bottom corners; otherwise the mapping is silently wrong
// and Rectify's convexity check is what catches it.
func OrderCorners(cs CornerSet) OrderedCorners {
	sp := cs
	sort.SliceStable(sp[:], func(i, j int) bool {
		if sp[i].Y != sp[j].Y {
			return sp[i].Y < sp[j].Y
		}
		return sp[i].X < sp[j].X
	})
	if sp[0].X > sp[1].X {
		sp[0], sp[1] = sp[1], sp[0]
	}
	if sp[2].X > sp[3].X {
		sp[2], sp[3] = sp[3], sp[2]
	}
	return OrderedCorners{
		TopLeft:     sp[0],
		TopRight:    sp[1],
		BottomLeft:  sp[2],
		BottomRight: sp[3],
	}
}

// OrderCornersByAngle orders a CornerSet by walking clockwise around the
// centroid, starting from the corner with the smallest x+y.
func OrderCornersByAngle(cs CornerSet) OrderedCorners {
	var cx, cy float64
	for _, p := range cs {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= 4
	cy /= 4

	sp := cs
	sort.SliceStable(sp[:], func(i, j int) bool {
		ai := math.Atan2(float64(sp[i].Y)-cy, float64(sp[i].X)-cx)
		aj := math.Atan2(float64(sp[j].Y)-cy, float64(sp[j].X)-cx)
		return ai < aj
	})

	// With y pointing down, ascending angle is clockwise on screen.
	start := 0
	for i := 1; i < 4; i++ {
		si := sp[i].X + sp[i].Y
		ss := sp[start].X + sp[start].Y
		if si < ss || (si == ss && sp[i].Y < sp[start].Y) {
			start = i
		}
	}
	at := func(k int) Point { return sp[(start+k)%4] }

	return OrderedCorners{
		TopLeft:     at(0),
		TopRight:    at(1),
		BottomRight: at(2),
		BottomLeft:  at(3),
	}
}

// Order orders cs with the given strategy.
func Order(cs CornerSet, o Ordering) OrderedCorners {
	if o == OrderingAngle {
		return OrderCornersByAngle(cs)
	}
	return OrderCorners(cs)
}

// quadArea returns the shoelace area of the ordered quadrilateral walked
// TL → TR → BR → BL.
func quadArea(o OrderedCorners) float64 {
	ring := [4]Point{o.TopLeft, o.TopRight, o.BottomRight, o.BottomLeft}
	area := 0.0
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		area += float64(ring[i].X*ring[j].Y - ring[j].X*ring[i].Y)
	}
	return math.Abs(area) / 2
}

// Area returns the area enclosed by the corners walked TL → TR → BR → BL.
func (o OrderedCorners) Area() float64 {
	return quadArea(o)
}

// isConvex reports whether TL → TR → BR → BL turns the same way at every
// corner. A misordered set produces a bow-tie and fails this check.
func isConvex(o OrderedCorners) bool {
	ring := [4]Point{o.TopLeft, o.TopRight, o.BottomRight, o.BottomLeft}
	sign := 0
	for i := 0; i < 4; i++ {
		a, b, c := ring[i], ring[(i+1)%4], ring[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		if cross == 0 {
			continue
		}
		s := 1
		if cross < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return sign != 0
}

// hasCollinearTriple reports whether any three of the corners lie on one line.
func hasCollinearTriple(o OrderedCorners) bool {
	pts := o.Slice()
	for i := 0; i < 4; i++ {
		a, b, c := pts[(i+1)%4], pts[(i+2)%4], pts[(i+3)%4]
		if (b.X-a.X)*(c.Y-a.Y)-(b.Y-a.Y)*(c.X-a.X) == 0 {
			return true
		}
	}
	return false
}
