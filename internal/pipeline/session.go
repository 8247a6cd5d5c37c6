// Package pipeline runs detection sessions: capture, rectify, locate, scale,
// report.
//
// A Session is built once from a calibration snapshot and never changes, so
// frames can be processed on any goroutine without locks. Run drives the
// capture loop around it.
package pipeline

import (
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/positioning-tools/internal/calibration"
	"github.com/ironsheep/positioning-tools/internal/detection"
	"github.com/ironsheep/positioning-tools/internal/display"
	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/scale"
)

// SessionConfig selects matcher and geometry settings for a session.
type SessionConfig struct {
	Options         detection.Options
	Ordering        geometry.Ordering
	AspectTolerance float64
}

// Session is an immutable detection context for one parameter folder.
type Session struct {
	ID       string
	Params   *calibration.Params
	Options  detection.Options
	Ordering geometry.Ordering

	// Warnings lists calibration problems that do not stop detection.
	Warnings []string

	plan *geometry.Plan
}

// NewSession validates params and precomputes the rectification plan.
func NewSession(params *calibration.Params, cfg SessionConfig) (*Session, error) {
	if params == nil {
		return nil, faults.Invalid("no calibration parameters")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Options.Engine.Check(); err != nil {
		return nil, err
	}
	if cfg.Ordering == "" {
		cfg.Ordering = geometry.OrderingYX
	}
	if cfg.AspectTolerance <= 0 {
		cfg.AspectTolerance = scale.DefaultAspectTolerance
	}

	plan, err := geometry.NewPlan(params.Corners,
		geometry.WithOrdering(cfg.Ordering),
		geometry.WithWorkers(cfg.Options.Workers))
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		Params:   params,
		Options:  cfg.Options,
		Ordering: cfg.Ordering,
		plan:     plan,
	}

	if ps := plan.Shape(); ps.Width != params.Shape.Width || ps.Height != params.Shape.Height {
		s.Warnings = append(s.Warnings, fmt.Sprintf(
			"corners rectify to %dx%d but the stored shape is %dx%d; scaling uses the stored shape",
			ps.Width, ps.Height, params.Shape.Width, params.Shape.Height))
	}
	if m := scale.AspectMismatch(params.Shape, params.RealSize); m > cfg.AspectTolerance {
		s.Warnings = append(s.Warnings, fmt.Sprintf(
			"rectified aspect %dx%d differs from real size %s mm by %.0f%%",
			params.Shape.Width, params.Shape.Height, params.RealSize, m*100))
	}
	return s, nil
}

// FrameResult is everything produced for one frame.
type FrameResult struct {
	Rectified  *image.NRGBA
	Detections []display.Detection
	Candidates int
	BestScore  float64
	Elapsed    time.Duration
}

// ProcessFrame rectifies frame, locates the template, and converts every
// surviving box centre to millimetres. A frame without a match yields an
// empty Detections slice and no error.
func (s *Session) ProcessFrame(frame image.Image) (*FrameResult, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, faults.Invalid("empty frame")
	}
	start := time.Now()

	rectified := s.plan.Warp(frame, s.Options.Workers)
	res, err := detection.Locate(rectified, s.Params.Template, s.Options)
	if err != nil {
		return nil, err
	}

	dets := make([]display.Detection, 0, len(res.Boxes))
	for _, box := range res.Boxes {
		center := box.Center()
		phys, err := scale.ToPhysical(center.Float(), s.Params.Shape, s.Params.RealSize)
		if err != nil {
			return nil, err
		}
		dets = append(dets, display.Detection{Box: box, Center: center, Physical: phys})
	}

	return &FrameResult{
		Rectified:  rectified,
		Detections: dets,
		Candidates: res.Candidates,
		BestScore:  res.BestScore,
		Elapsed:    time.Since(start),
	}, nil
}
