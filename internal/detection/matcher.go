package detection

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/parallel"
)

// Default matching parameters.
const (
	DefaultThreshold = 0.9
	DefaultOverlap   = 0.3
)

// Options configures Locate and MatchTemplate.
type Options struct {
	// Threshold is the minimum correlation score for a raw candidate.
	// Zero selects DefaultThreshold.
	Threshold float64 `json:"threshold"`

	// Overlap is the suppression ratio above which a candidate is discarded.
	// Zero selects DefaultOverlap.
	Overlap float64 `json:"overlap"`

	// Workers bounds the goroutines computing the response surface.
	// Zero uses GOMAXPROCS.
	Workers int `json:"workers"`

	// Engine selects who computes the response surface. Empty selects
	// EngineGo.
	Engine Engine `json:"engine,omitempty"`
}

// Engine names a response-surface implementation.
type Engine string

const (
	// EngineGo is the pure-Go surface. Window statistics are O(1) per
	// placement but the cross term is a full w×h product, so a W×H frame
	// costs about (W-w+1)(H-h+1)·w·h multiply-adds split across Workers.
	EngineGo Engine = "go"

	// EngineOpenCV hands the frame to cv::matchTemplate (TM_CCOEFF_NORMED),
	// which uses DFT-based correlation for large templates. It needs a
	// binary built with the gocv tag.
	EngineOpenCV Engine = "opencv"
)

// Check reports an ErrResource error when e cannot run in this binary.
func (e Engine) Check() error {
	if e == EngineOpenCV && !openCVBuilt {
		return faults.Resource(nil, "opencv matching not compiled in, rebuild with -tags gocv")
	}
	return nil
}

// ParseEngine maps a configuration string to an Engine. The empty string
// selects EngineGo.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case "", EngineGo:
		return EngineGo, nil
	case EngineOpenCV:
		return EngineOpenCV, nil
	default:
		return "", faults.Invalid("unknown match engine %q (want %q or %q)", s, EngineGo, EngineOpenCV)
	}
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Overlap: DefaultOverlap}
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Overlap == 0 {
		o.Overlap = DefaultOverlap
	}
	if o.Engine == "" {
		o.Engine = EngineGo
	}
	return o
}

// ResponseSurface holds one correlation score per template placement.
// Scores are stored row-major; cell (x, y) is the score with the template's
// top-left corner at (x, y) in the frame.
type ResponseSurface struct {
	Width  int
	Height int
	Scores []float64
}

// At returns the score at placement (x, y).
func (s *ResponseSurface) At(x, y int) float64 {
	return s.Scores[y*s.Width+x]
}

// Max returns the highest score and its placement. Ties keep the first cell
// in row-major order.
func (s *ResponseSurface) Max() (float64, image.Point) {
	best := math.Inf(-1)
	var at image.Point
	for i, v := range s.Scores {
		if v > best {
			best = v
			at = image.Point{X: i % s.Width, Y: i / s.Width}
		}
	}
	return best, at
}

// intensity is a single-channel frame plus its summed-area tables. The
// tables have one extra leading row and column of zeros so that any window
// sum is four lookups without bounds checks.
type intensity struct {
	pix    []uint8
	w, h   int
	sum    []int64
	sumSq  []int64
	stride int
}

// Grayscale converts img to 8-bit luma with BT.601 weights. Images that are
// already *image.Gray are returned unchanged.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	rgba := effect.GrayscaleWithWeights(img, 0.299, 0.587, 0.114)
	b := rgba.Bounds()
	gray := image.NewGray(b)
	w, h := b.Dx(), b.Dy()
	// bild writes the luma into all three colour channels; keep R.
	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride:]
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			dst[x] = src[x*4]
		}
	}
	return gray
}

// toIntensity copies the luma of img into a tightly packed buffer.
func toIntensity(img image.Image) *intensity {
	gray := Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		copy(pix[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
	}
	return &intensity{pix: pix, w: w, h: h}
}

// buildIntegrals fills the summed-area tables of the frame.
func (f *intensity) buildIntegrals() {
	f.stride = f.w + 1
	f.sum = make([]int64, (f.w+1)*(f.h+1))
	f.sumSq = make([]int64, (f.w+1)*(f.h+1))
	for y := 0; y < f.h; y++ {
		var row, rowSq int64
		for x := 0; x < f.w; x++ {
			v := int64(f.pix[y*f.w+x])
			row += v
			rowSq += v * v
			i := (y+1)*f.stride + x + 1
			f.sum[i] = f.sum[i-f.stride] + row
			f.sumSq[i] = f.sumSq[i-f.stride] + rowSq
		}
	}
}

// window returns the sum and the sum of squares over the w×h window at (x, y).
func (f *intensity) window(x, y, w, h int) (int64, int64) {
	s := f.stride
	a := y*s + x
	b := y*s + x + w
	c := (y+h)*s + x
	d := (y+h)*s + x + w
	return f.sum[d] - f.sum[b] - f.sum[c] + f.sum[a],
		f.sumSq[d] - f.sumSq[b] - f.sumSq[c] + f.sumSq[a]
}

// MatchTemplate slides tmpl over frame and returns the zero-mean normalized
// cross-correlation coefficient at every placement.
//
// Both images are reduced to 8-bit intensity first. The surface is
// (W-w+1) × (H-h+1) for a W×H frame and a w×h template.
//
// # Flat windows
//
// The coefficient is undefined when either side has zero variance. Such
// cells are scored 1 when both the window and the template are flat at the
// same intensity, and 0 otherwise. No cell is ever NaN.
//
// Window sums come from summed-area tables; only the cross term is computed
// per placement. Rows of the surface are split across opts.Workers
// goroutines and the result does not depend on the worker count.
// opts.Engine = EngineOpenCV delegates the whole surface to OpenCV instead,
// which is the faster choice for full-resolution frames and large templates.
func MatchTemplate(frame, tmpl image.Image, opts Options) (*ResponseSurface, error) {
	if frame == nil || tmpl == nil {
		return nil, faults.Invalid("frame and template are both required")
	}
	fb, tb := frame.Bounds(), tmpl.Bounds()
	if tb.Dx() == 0 || tb.Dy() == 0 {
		return nil, faults.Invalid("template is empty")
	}
	if tb.Dx() > fb.Dx() || tb.Dy() > fb.Dy() {
		return nil, faults.Invalid("template %dx%d is larger than frame %dx%d",
			tb.Dx(), tb.Dy(), fb.Dx(), fb.Dy())
	}

	engine, err := ParseEngine(string(opts.Engine))
	if err != nil {
		return nil, err
	}

	f := toIntensity(frame)
	t := toIntensity(tmpl)
	if engine == EngineOpenCV {
		return matchOpenCV(f, t)
	}
	f.buildIntegrals()

	tw, th := t.w, t.h
	n := int64(tw * th)
	var sumT, sumT2 int64
	for _, v := range t.pix {
		sumT += int64(v)
		sumT2 += int64(v) * int64(v)
	}
	varT := n*sumT2 - sumT*sumT

	surface := &ResponseSurface{
		Width:  f.w - tw + 1,
		Height: f.h - th + 1,
	}
	surface.Scores = make([]float64, surface.Width*surface.Height)

	parallel.Rows(surface.Height, opts.Workers, func(start, end int) {
		for y := start; y < end; y++ {
			row := surface.Scores[y*surface.Width : (y+1)*surface.Width]
			for x := range row {
				sumF, sumF2 := f.window(x, y, tw, th)
				varF := n*sumF2 - sumF*sumF

				if varF == 0 || varT == 0 {
					if varF == 0 && varT == 0 && sumF == sumT {
						row[x] = 1
					}
					continue
				}

				var cross int64
				for ty := 0; ty < th; ty++ {
					fr := f.pix[(y+ty)*f.w+x : (y+ty)*f.w+x+tw]
					tr := t.pix[ty*tw : (ty+1)*tw]
					for i, tv := range tr {
						cross += int64(fr[i]) * int64(tv)
					}
				}

				num := float64(n*cross - sumF*sumT)
				den := math.Sqrt(float64(varF)) * math.Sqrt(float64(varT))
				row[x] = clampUnit(num / den)
			}
		}
	})

	return surface, nil
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Candidates returns every placement scoring at least threshold as a box the
// size of a tw×th template, in row-major order.
func (s *ResponseSurface) Candidates(threshold float64, tw, th int) []DetectionBox {
	var boxes []DetectionBox
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			if v := s.Scores[y*s.Width+x]; v >= threshold {
				boxes = append(boxes, DetectionBox{X1: x, Y1: y, X2: x + tw, Y2: y + th, Score: v})
			}
		}
	}
	return boxes
}

// Result is the outcome of Locate with the diagnostics behind it.
type Result struct {
	// Boxes are the detections surviving suppression, in pick order.
	Boxes []DetectionBox `json:"boxes"`

	// Candidates is the number of placements at or above the threshold.
	Candidates int `json:"candidates"`

	// BestScore is the highest correlation anywhere on the surface.
	BestScore float64 `json:"best_score"`

	// BestAt is the placement of BestScore.
	BestAt image.Point `json:"best_at"`
}

// Found reports whether any detection survived.
func (r *Result) Found() bool {
	return len(r.Boxes) > 0
}

// Locate finds every occurrence of tmpl in frame.
//
// Placements scoring at least opts.Threshold become raw candidates, which are
// then reduced by NonMaxSuppress with opts.Overlap. An absent template is not
// an error: the result simply holds no boxes.
func Locate(frame, tmpl image.Image, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	surface, err := MatchTemplate(frame, tmpl, opts)
	if err != nil {
		return nil, err
	}
	tb := tmpl.Bounds()
	raw := surface.Candidates(opts.Threshold, tb.Dx(), tb.Dy())
	best, at := surface.Max()
	return &Result{
		Boxes:      NonMaxSuppress(raw, opts.Overlap),
		Candidates: len(raw),
		BestScore:  best,
		BestAt:     at,
	}, nil
}
