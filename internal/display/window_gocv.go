//go:build gocv

package display

import (
	"context"

	"gocv.io/x/gocv"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// WindowReporter shows each annotated frame in an OpenCV window. Pressing
// 'q' or Esc returns ErrQuit.
type WindowReporter struct {
	window *gocv.Window
	style  Style
}

// NewWindowReporter opens a window titled title.
func NewWindowReporter(title string, style Style) (Reporter, error) {
	return &WindowReporter{window: gocv.NewWindow(title), style: style}, nil
}

func (r *WindowReporter) Report(_ context.Context, f *Frame) error {
	if f.Image == nil {
		return nil
	}
	mat, err := gocv.ImageToMatRGB(Annotate(f.Image, f.Detections, r.style))
	if err != nil {
		return faults.Resource(err, "failed to convert frame %d", f.Index)
	}
	defer mat.Close()

	r.window.IMShow(mat)
	switch r.window.WaitKey(1) {
	case 'q', 27:
		return ErrQuit
	}
	return nil
}

func (r *WindowReporter) Close() error {
	return r.window.Close()
}
