//go:build gocv

package detection

import (
	"math"

	"gocv.io/x/gocv"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

const openCVBuilt = true

// matchOpenCV computes the response surface with cv::matchTemplate. Scores
// OpenCV leaves undefined on flat windows come back as 0.
func matchOpenCV(f, t *intensity) (*ResponseSurface, error) {
	frame, err := grayMat(f)
	if err != nil {
		return nil, err
	}
	defer frame.Close()
	tmpl, err := grayMat(t)
	if err != nil {
		return nil, err
	}
	defer tmpl.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(frame, tmpl, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return nil, faults.Resource(nil, "opencv produced no response surface for a %dx%d template", t.w, t.h)
	}

	surface := &ResponseSurface{Width: result.Cols(), Height: result.Rows()}
	surface.Scores = make([]float64, surface.Width*surface.Height)
	for y := 0; y < surface.Height; y++ {
		for x := 0; x < surface.Width; x++ {
			v := float64(result.GetFloatAt(y, x))
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			surface.Scores[y*surface.Width+x] = clampUnit(v)
		}
	}
	return surface, nil
}

func grayMat(g *intensity) (gocv.Mat, error) {
	m, err := gocv.NewMatFromBytes(g.h, g.w, gocv.MatTypeCV8U, g.pix)
	if err != nil {
		return gocv.Mat{}, faults.Resource(err, "failed to convert %dx%d image for opencv", g.w, g.h)
	}
	return m, nil
}
