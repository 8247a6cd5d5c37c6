package calibration

import (
	"image"
	"math"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/scale"
)

// Params is an immutable snapshot of a parameter folder. It is loaded once
// per session and shared read-only by every frame.
type Params struct {
	Dir      string
	Corners  geometry.CornerSet
	Shape    geometry.Shape
	RealSize scale.RealSize
	Template *image.Gray
}

// Validate checks the snapshot is usable for detection: a positive shape, a
// positive real size, and a non-empty template that fits the shape.
func (p *Params) Validate() error {
	if err := p.Shape.Validate(); err != nil {
		return err
	}
	if err := p.RealSize.Validate(); err != nil {
		return err
	}
	if p.Template == nil || p.Template.Bounds().Empty() {
		return faults.Invalid("template is empty")
	}
	tw, th := p.Template.Bounds().Dx(), p.Template.Bounds().Dy()
	if tw > p.Shape.Width || th > p.Shape.Height {
		return faults.Invalid("template %dx%d does not fit the rectified shape %dx%d",
			tw, th, p.Shape.Width, p.Shape.Height)
	}
	return nil
}

// Summary is the JSON-friendly view of Params.
type Summary struct {
	Dir              string                  `json:"dir"`
	Corners          geometry.CornerSet      `json:"corners"`
	Ordered          geometry.OrderedCorners `json:"ordered"`
	Shape            geometry.Shape          `json:"shape"`
	RealSize         scale.RealSize          `json:"real_size"`
	TemplateWidth    int                     `json:"template_width"`
	TemplateHeight   int                     `json:"template_height"`
	AspectMismatch   float64                 `json:"aspect_mismatch"`
	AspectSuspicious bool                    `json:"aspect_suspicious"`
}

// Summarize describes p with its corners ordered by ordering, flagging an
// aspect mismatch above tolerance.
func (p *Params) Summarize(ordering geometry.Ordering, tolerance float64) Summary {
	mismatch := scale.AspectMismatch(p.Shape, p.RealSize)
	s := Summary{
		Dir:              p.Dir,
		Corners:          p.Corners,
		Ordered:          geometry.Order(p.Corners, ordering),
		Shape:            p.Shape,
		RealSize:         p.RealSize,
		AspectMismatch:   math.Round(mismatch*1000) / 1000,
		AspectSuspicious: mismatch > tolerance,
	}
	if p.Template != nil {
		s.TemplateWidth = p.Template.Bounds().Dx()
		s.TemplateHeight = p.Template.Bounds().Dy()
	}
	return s
}
