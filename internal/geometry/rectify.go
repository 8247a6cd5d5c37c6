package geometry

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/parallel"
)

// minRectifiedSide is the smallest accepted output width or height in pixels.
const minRectifiedSide = 2

type rectifyConfig struct {
	ordering Ordering
	workers  int
}

// RectifyOption configures Rectify.
type RectifyOption func(*rectifyConfig)

// WithOrdering selects the corner ordering strategy. The default is
// OrderingYX.
func WithOrdering(o Ordering) RectifyOption {
	return func(c *rectifyConfig) {
		c.ordering = o
	}
}

// WithWorkers bounds the number of goroutines used to resample rows.
// Zero uses GOMAXPROCS.
func WithWorkers(n int) RectifyOption {
	return func(c *rectifyConfig) {
		c.workers = n
	}
}

// Plan is the geometric part of a rectification: ordered corners, output
// size, and the transform from the source frame to the output rectangle.
// A Plan depends only on the corners, so one plan serves every frame of a
// session.
type Plan struct {
	Corners OrderedCorners
	Width   int
	Height  int

	forward Homography
	inverse Homography
}

// Shape returns the rectified shape produced by the plan.
func (p *Plan) Shape() Shape {
	return Shape{Height: p.Height, Width: p.Width, Channels: 3}
}

// Forward returns the transform from frame pixels to rectified pixels.
func (p *Plan) Forward() Homography {
	return p.forward
}

// NewPlan orders the corners, sizes the output rectangle, and solves the
// perspective transform.
//
// Output width is round(|TL-TR|) and height round(|TL-BL|). The destination
// corners are (0,0), (w-1,0), (0,h-1), (w-1,h-1) in the same TL, TR, BL, BR
// order as the source.
func NewPlan(cs CornerSet, opts ...RectifyOption) (*Plan, error) {
	cfg := rectifyConfig{ordering: OrderingYX}
	for _, opt := range opts {
		opt(&cfg)
	}

	oc := Order(cs, cfg.ordering)
	width := int(math.Round(Distance(oc.TopLeft, oc.TopRight)))
	height := int(math.Round(Distance(oc.TopLeft, oc.BottomLeft)))

	if width < minRectifiedSide || height < minRectifiedSide {
		return nil, faults.Degenerate("rectified size %dx%d is below %d pixels", width, height, minRectifiedSide)
	}
	if quadArea(oc) < 1 {
		return nil, faults.Degenerate("corners %v enclose no area", cs)
	}
	if hasCollinearTriple(oc) {
		return nil, faults.Degenerate("three of the corners %v are collinear", cs)
	}
	if !isConvex(oc) {
		return nil, faults.Degenerate("ordered corners %v, %v, %v, %v do not form a convex quadrilateral",
			oc.TopLeft, oc.TopRight, oc.BottomLeft, oc.BottomRight)
	}

	src := [4]PointF{oc.TopLeft.Float(), oc.TopRight.Float(), oc.BottomLeft.Float(), oc.BottomRight.Float()}
	dst := [4]PointF{
		{X: 0, Y: 0},
		{X: float64(width - 1), Y: 0},
		{X: 0, Y: float64(height - 1)},
		{X: float64(width - 1), Y: float64(height - 1)},
	}

	forward, err := ComputeHomography(src, dst)
	if err != nil {
		return nil, err
	}
	inverse, err := forward.Inverse()
	if err != nil {
		return nil, err
	}

	return &Plan{
		Corners: oc,
		Width:   width,
		Height:  height,
		forward: forward,
		inverse: inverse,
	}, nil
}

// Rectify warps the quadrilateral described by cs into a fronto-parallel
// rectangle and returns it with its shape.
func Rectify(img image.Image, cs CornerSet, opts ...RectifyOption) (*image.NRGBA, Shape, error) {
	if img == nil {
		return nil, Shape{}, faults.Invalid("no image to rectify")
	}
	plan, err := NewPlan(cs, opts...)
	if err != nil {
		return nil, Shape{}, err
	}
	cfg := rectifyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return plan.Warp(img, cfg.workers), plan.Shape(), nil
}

// Warp resamples img into the plan's output rectangle. Every output pixel is
// mapped back through the inverse transform and bilinearly interpolated from
// its four source neighbours; neighbours outside the frame read as black.
// The output is always fully opaque.
func (p *Plan) Warp(img image.Image, workers int) *image.NRGBA {
	src := imaging.Clone(img)
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))

	parallel.Rows(p.Height, workers, func(start, end int) {
		for v := start; v < end; v++ {
			row := out.Pix[v*out.Stride:]
			for u := 0; u < p.Width; u++ {
				o := row[u*4 : u*4+4]
				o[3] = 0xff

				sx, sy, ok := p.inverse.Apply(float64(u), float64(v))
				if !ok || sx <= -1 || sy <= -1 || sx >= float64(sw) || sy >= float64(sh) {
					continue
				}
				x0 := int(math.Floor(sx))
				y0 := int(math.Floor(sy))
				fx := sx - float64(x0)
				fy := sy - float64(y0)

				w00 := (1 - fx) * (1 - fy)
				w10 := fx * (1 - fy)
				w01 := (1 - fx) * fy
				w11 := fx * fy

				for c := 0; c < 3; c++ {
					val := w00*sample(src, sw, sh, x0, y0, c) +
						w10*sample(src, sw, sh, x0+1, y0, c) +
						w01*sample(src, sw, sh, x0, y0+1, c) +
						w11*sample(src, sw, sh, x0+1, y0+1, c)
					o[c] = clampByte(val)
				}
			}
		}
	})
	return out
}

// sample returns channel c of the pixel at (x, y), or 0 outside the image.
func sample(img *image.NRGBA, w, h, x, y, c int) float64 {
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0
	}
	return float64(img.Pix[y*img.Stride+x*4+c])
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
