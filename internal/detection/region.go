package detection

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/positioning-tools/internal/geometry"
)

// Edge detection defaults for SuggestRegions.
const (
	DefaultEdgeThreshold = 30
	DefaultMinRegionArea = 400
	minContourPixels     = 10
	edgeSupportRadius    = 2
	edgeSupportSamples   = 16
)

// RegionCandidate is a four-cornered outline proposed as the region of
// interest for calibration.
type RegionCandidate struct {
	// Corners are the outline's extreme points, in TL, TR, BL, BR order.
	Corners geometry.CornerSet `json:"corners"`

	// Area is the area enclosed by the corners in square pixels.
	Area float64 `json:"area"`

	// Support is the fraction of points sampled along the four sides that
	// lie on an edge pixel (0.0 to 1.0).
	Support float64 `json:"support"`
}

// RegionOptions tunes SuggestRegions. Zero values select the defaults.
type RegionOptions struct {
	EdgeThreshold int
	MinArea       int
	MinSupport    float64
	MaxResults    int
}

// SuggestRegions proposes quadrilateral outlines that could serve as the
// corner set of a parameter folder.
//
// # Algorithm
//
//  1. Edge Detection: threshold the forward luma differences in x and y
//  2. Contour Finding: group 8-connected edge pixels by flood fill
//  3. Corners: take the contour points extreme in x+y and x-y, which are the
//     corners of any outline rotated less than 45 degrees
//  4. Filtering: drop outlines below MinArea, outlines that do not rectify,
//     and outlines whose sides are not backed by edges
//
// Candidates are sorted by area, largest first.
func SuggestRegions(img image.Image, opts RegionOptions) []RegionCandidate {
	if opts.EdgeThreshold <= 0 {
		opts.EdgeThreshold = DefaultEdgeThreshold
	}
	if opts.MinArea <= 0 {
		opts.MinArea = DefaultMinRegionArea
	}

	gray := Grayscale(img)
	em := detectEdges(gray, uint8(opts.EdgeThreshold))

	candidates := make([]RegionCandidate, 0)
	for _, contour := range em.contours() {
		cs := extremeCorners(contour)
		oc := geometry.OrderCorners(cs)
		area := oc.Area()
		if area < float64(opts.MinArea) {
			continue
		}
		if _, err := geometry.NewPlan(cs); err != nil {
			continue
		}
		support := em.support(oc)
		if support < opts.MinSupport {
			continue
		}

		origin := gray.Bounds().Min
		for i := range cs {
			cs[i].X += origin.X
			cs[i].Y += origin.Y
		}
		candidates = append(candidates, RegionCandidate{Corners: cs, Area: area, Support: support})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Area > candidates[j].Area
	})
	if opts.MaxResults > 0 && len(candidates) > opts.MaxResults {
		candidates = candidates[:opts.MaxResults]
	}
	return candidates
}

// edgeMap is a binary edge image in frame-relative coordinates.
type edgeMap struct {
	w, h int
	on   []bool
}

func (m *edgeMap) at(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.w && y < m.h && m.on[y*m.w+x]
}

// detectEdges marks pixels whose luma differs from the right or lower
// neighbour by more than threshold. The outermost rows and columns stay off.
func detectEdges(gray *image.Gray, threshold uint8) *edgeMap {
	b := gray.Bounds()
	m := &edgeMap{w: b.Dx(), h: b.Dy(), on: make([]bool, b.Dx()*b.Dy())}

	for y := 1; y < m.h-1; y++ {
		row := gray.Pix[y*gray.Stride:]
		next := gray.Pix[(y+1)*gray.Stride:]
		for x := 1; x < m.w-1; x++ {
			c := int(row[x])
			dx := absInt(c - int(row[x+1]))
			dy := absInt(c - int(next[x]))
			if dx > int(threshold) || dy > int(threshold) {
				m.on[y*m.w+x] = true
			}
		}
	}
	return m
}

// contours groups edge pixels into 8-connected components, discarding
// components smaller than minContourPixels.
func (m *edgeMap) contours() [][]geometry.Point {
	visited := make([]bool, len(m.on))
	out := make([][]geometry.Point, 0)

	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if !m.on[y*m.w+x] || visited[y*m.w+x] {
				continue
			}
			contour := m.floodFill(visited, x, y)
			if len(contour) >= minContourPixels {
				out = append(out, contour)
			}
		}
	}
	return out
}

// floodFill collects the component containing (startX, startY) with an
// explicit stack.
func (m *edgeMap) floodFill(visited []bool, startX, startY int) []geometry.Point {
	contour := make([]geometry.Point, 0)
	stack := []geometry.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !m.at(p.X, p.Y) || visited[p.Y*m.w+p.X] {
			continue
		}
		visited[p.Y*m.w+p.X] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, geometry.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return contour
}

// extremeCorners returns the points minimising x+y, maximising x-y,
// maximising y-x and maximising x+y, in that order.
func extremeCorners(contour []geometry.Point) geometry.CornerSet {
	tl, tr, bl, br := contour[0], contour[0], contour[0], contour[0]
	for _, p := range contour[1:] {
		if p.X+p.Y < tl.X+tl.Y {
			tl = p
		}
		if p.X-p.Y > tr.X-tr.Y {
			tr = p
		}
		if p.Y-p.X > bl.Y-bl.X {
			bl = p
		}
		if p.X+p.Y > br.X+br.Y {
			br = p
		}
	}
	return geometry.CornerSet{tl, tr, bl, br}
}

// support samples each side of the outline and reports the fraction of
// samples with an edge pixel within edgeSupportRadius.
func (m *edgeMap) support(oc geometry.OrderedCorners) float64 {
	sides := [4][2]geometry.Point{
		{oc.TopLeft, oc.TopRight},
		{oc.TopRight, oc.BottomRight},
		{oc.BottomRight, oc.BottomLeft},
		{oc.BottomLeft, oc.TopLeft},
	}

	hits, total := 0, 0
	for _, side := range sides {
		a, b := side[0], side[1]
		for i := 0; i <= edgeSupportSamples; i++ {
			t := float64(i) / edgeSupportSamples
			x := int(math.Round(float64(a.X) + t*float64(b.X-a.X)))
			y := int(math.Round(float64(a.Y) + t*float64(b.Y-a.Y)))
			total++
			if m.near(x, y) {
				hits++
			}
		}
	}
	return float64(hits) / float64(total)
}

func (m *edgeMap) near(x, y int) bool {
	for dy := -edgeSupportRadius; dy <= edgeSupportRadius; dy++ {
		for dx := -edgeSupportRadius; dx <= edgeSupportRadius; dx++ {
			if m.at(x+dx, y+dy) {
				return true
			}
		}
	}
	return false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
