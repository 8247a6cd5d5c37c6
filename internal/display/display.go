// Package display presents per-frame detection results.
//
// A Reporter receives every processed frame. Reporters log, write text
// lines, save annotated snapshots, or (with the "gocv" build tag) show a
// live window. Multi fans a frame out to several reporters.
package display

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/ironsheep/positioning-tools/internal/detection"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/imaging"
	"github.com/ironsheep/positioning-tools/internal/scale"
)

// ErrQuit is returned by a reporter when the operator asked to stop.
var ErrQuit = errors.New("display: quit requested")

// Detection is one located target in rectified and physical coordinates.
type Detection struct {
	Box      detection.DetectionBox `json:"box"`
	Center   geometry.Point         `json:"center_px"`
	Physical scale.PhysicalPoint    `json:"center_mm"`
}

// Frame is what a Reporter receives for each processed frame.
type Frame struct {
	Index      int
	Image      image.Image
	Detections []Detection
	BestScore  float64
}

// Reporter consumes processed frames.
type Reporter interface {
	Report(ctx context.Context, f *Frame) error
	Close() error
}

// Style controls how Annotate draws detections.
type Style struct {
	Box       color.NRGBA
	Center    color.NRGBA
	Thickness int
	Radius    int
	Labels    bool
}

// DefaultStyle draws a red 2px box and a filled blue centre dot.
func DefaultStyle() Style {
	return Style{
		Box:       color.NRGBA{R: 255, A: 255},
		Center:    color.NRGBA{B: 255, A: 255},
		Thickness: 2,
		Radius:    5,
		Labels:    true,
	}
}

// StyleFromHex returns DefaultStyle with the given box and centre colours.
func StyleFromHex(box, center string) (Style, error) {
	s := DefaultStyle()
	var err error
	if s.Box, err = imaging.ParseColor(box); err != nil {
		return s, err
	}
	if s.Center, err = imaging.ParseColor(center); err != nil {
		return s, err
	}
	return s, nil
}

// Annotate draws each detection onto a copy of img.
func Annotate(img image.Image, dets []Detection, style Style) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	boxColor := image.NewUniform(style.Box)
	for _, d := range dets {
		drawOutline(out, image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2+1, d.Box.Y2+1), style.Thickness, boxColor)
		fillCircle(out, d.Center.X, d.Center.Y, style.Radius, style.Center)

		if style.Labels {
			text := d.Physical.String()
			_, h := imaging.LabelSize(text)
			y := d.Box.Y1 - h
			if y < 0 {
				y = d.Box.Y2 + 1
			}
			imaging.DrawLabel(out, d.Box.X1, y, text, color.White, color.NRGBA{A: 180})
		}
	}
	return out
}

func drawOutline(dst draw.Image, r image.Rectangle, t int, src image.Image) {
	if t <= 0 {
		t = 1
	}
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

func fillCircle(dst *image.NRGBA, cx, cy, radius int, c color.NRGBA) {
	b := dst.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			p := image.Pt(cx+dx, cy+dy)
			if p.In(b) {
				dst.SetNRGBA(p.X, p.Y, c)
			}
		}
	}
}
