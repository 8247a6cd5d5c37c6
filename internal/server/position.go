package server

import (
	"encoding/json"
	"image"
	"math"

	"github.com/ironsheep/positioning-tools/internal/calibration"
	"github.com/ironsheep/positioning-tools/internal/detection"
	"github.com/ironsheep/positioning-tools/internal/display"
	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/imaging"
	"github.com/ironsheep/positioning-tools/internal/pipeline"
	"github.com/ironsheep/positioning-tools/internal/scale"
)

// === Rectification ===

type positionRectifyArgs struct {
	Path       string     `json:"path"`
	Corners    []pointArg `json:"corners"`
	Folder     string     `json:"folder"`
	Ordering   string     `json:"ordering"`
	Scale      float64    `json:"scale"`
	OutputPath string     `json:"output_path"`
}

type positionRectifyResult struct {
	Shape      geometry.Shape          `json:"shape"`
	Ordered    geometry.OrderedCorners `json:"ordered"`
	OutputPath string                  `json:"output_path,omitempty"`
	Image      *imaging.EncodedImage   `json:"image,omitempty"`
}

func (s *Server) handlePositionRectify(args json.RawMessage) (interface{}, error) {
	var a positionRectifyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ordering, err := s.ordering(a.Ordering)
	if err != nil {
		return nil, err
	}

	var cs geometry.CornerSet
	switch {
	case len(a.Corners) > 0:
		if cs, err = cornerSetFromArgs(a.Corners); err != nil {
			return nil, err
		}
	case a.Folder != "":
		if cs, _, err = calibration.NewStore(s.folderPath(a.Folder), s.cache).LoadPoints(); err != nil {
			return nil, err
		}
	default:
		return nil, faults.Invalid("either corners or folder is required")
	}

	img, err := imaging.Open(a.Path)
	if err != nil {
		return nil, err
	}
	rectified, shape, err := geometry.Rectify(img, cs,
		geometry.WithOrdering(ordering),
		geometry.WithWorkers(s.cfg.Workers))
	if err != nil {
		return nil, err
	}

	result := &positionRectifyResult{Shape: shape, Ordered: geometry.Order(cs, ordering)}
	if a.OutputPath != "" {
		if err := imaging.Save(a.OutputPath, rectified); err != nil {
			return nil, err
		}
		result.OutputPath = a.OutputPath
		return result, nil
	}
	if result.Image, err = imaging.EncodePNG(rectified, a.Scale); err != nil {
		return nil, err
	}
	return result, nil
}

// === Template location ===

type positionLocateArgs struct {
	Path         string  `json:"path"`
	TemplatePath string  `json:"template_path"`
	Threshold    float64 `json:"threshold"`
	Overlap      float64 `json:"overlap"`
}

type locatedBox struct {
	Box    detection.DetectionBox `json:"box"`
	Center geometry.Point         `json:"center"`
}

type positionLocateResult struct {
	Found      bool         `json:"found"`
	Boxes      []locatedBox `json:"boxes"`
	Candidates int          `json:"candidates"`
	BestScore  float64      `json:"best_score"`
	BestAt     image.Point  `json:"best_at"`
}

// detectionOptions applies per-call overrides to the configured options.
func (s *Server) detectionOptions(threshold, overlap float64) (detection.Options, error) {
	opts := s.cfg.DetectionOptions()
	if threshold < 0 || threshold > 1 || overlap < 0 || overlap > 1 {
		return opts, faults.Invalid("threshold and overlap must be within [0, 1]")
	}
	if threshold > 0 {
		opts.Threshold = threshold
	}
	if overlap > 0 {
		opts.Overlap = overlap
	}
	return opts, nil
}

func (s *Server) handlePositionLocate(args json.RawMessage) (interface{}, error) {
	var a positionLocateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	opts, err := s.detectionOptions(a.Threshold, a.Overlap)
	if err != nil {
		return nil, err
	}

	frame, err := imaging.Open(a.Path)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.cache.Load(a.TemplatePath)
	if err != nil {
		return nil, err
	}

	res, err := detection.Locate(frame, tmpl, opts)
	if err != nil {
		return nil, err
	}
	boxes := make([]locatedBox, len(res.Boxes))
	for i, b := range res.Boxes {
		boxes[i] = locatedBox{Box: b, Center: b.Center()}
	}
	return &positionLocateResult{
		Found:      res.Found(),
		Boxes:      boxes,
		Candidates: res.Candidates,
		BestScore:  res.BestScore,
		BestAt:     res.BestAt,
	}, nil
}

// === Full pipeline on one frame ===

type positionDetectArgs struct {
	Path         string  `json:"path"`
	Folder       string  `json:"folder"`
	Threshold    float64 `json:"threshold"`
	Overlap      float64 `json:"overlap"`
	Ordering     string  `json:"ordering"`
	AnnotatePath string  `json:"annotate_path"`
}

type positionDetectResult struct {
	SessionID     string              `json:"session_id"`
	Folder        string              `json:"folder"`
	Found         bool                `json:"found"`
	Detections    []display.Detection `json:"detections"`
	Candidates    int                 `json:"candidates"`
	BestScore     float64             `json:"best_score"`
	Shape         geometry.Shape      `json:"shape"`
	RealSize      scale.RealSize      `json:"real_size"`
	Warnings      []string            `json:"warnings,omitempty"`
	AnnotatedPath string              `json:"annotated_path,omitempty"`
	ElapsedMS     float64             `json:"elapsed_ms"`
}

func (s *Server) handlePositionDetect(args json.RawMessage) (interface{}, error) {
	var a positionDetectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Folder == "" {
		return nil, faults.Invalid("folder is required")
	}
	opts, err := s.detectionOptions(a.Threshold, a.Overlap)
	if err != nil {
		return nil, err
	}
	ordering, err := s.ordering(a.Ordering)
	if err != nil {
		return nil, err
	}

	dir := s.folderPath(a.Folder)
	params, err := calibration.NewStore(dir, s.cache).Load()
	if err != nil {
		return nil, err
	}
	session, err := pipeline.NewSession(params, pipeline.SessionConfig{
		Options:         opts,
		Ordering:        ordering,
		AspectTolerance: s.cfg.AspectTolerance,
	})
	if err != nil {
		return nil, err
	}

	frame, err := imaging.Open(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := session.ProcessFrame(frame)
	if err != nil {
		return nil, err
	}

	result := &positionDetectResult{
		SessionID:  session.ID,
		Folder:     dir,
		Found:      len(res.Detections) > 0,
		Detections: res.Detections,
		Candidates: res.Candidates,
		BestScore:  res.BestScore,
		Shape:      params.Shape,
		RealSize:   params.RealSize,
		Warnings:   session.Warnings,
		ElapsedMS:  math.Round(res.Elapsed.Seconds()*1e5) / 100,
	}

	if a.AnnotatePath != "" {
		style, err := display.StyleFromHex(s.cfg.BoxColor, s.cfg.CenterColor)
		if err != nil {
			return nil, err
		}
		if err := imaging.Save(a.AnnotatePath, display.Annotate(res.Rectified, res.Detections, style)); err != nil {
			return nil, err
		}
		result.AnnotatedPath = a.AnnotatePath
	}
	return result, nil
}

// === Corner ordering ===

type positionOrderCornersArgs struct {
	Points   []pointArg `json:"points"`
	Ordering string     `json:"ordering"`
}

type positionOrderCornersResult struct {
	Ordering geometry.Ordering       `json:"ordering"`
	Ordered  geometry.OrderedCorners `json:"ordered"`
	Width    int                     `json:"width"`
	Height   int                     `json:"height"`
	Valid    bool                    `json:"valid"`
	Problem  string                  `json:"problem,omitempty"`

	// Homography maps frame pixels to rectified pixels, row-major.
	Homography *geometry.Homography `json:"homography,omitempty"`
}

func (s *Server) handlePositionOrderCorners(args json.RawMessage) (interface{}, error) {
	var a positionOrderCornersArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ordering, err := s.ordering(a.Ordering)
	if err != nil {
		return nil, err
	}
	cs, err := cornerSetFromArgs(a.Points)
	if err != nil {
		return nil, err
	}

	oc := geometry.Order(cs, ordering)
	result := &positionOrderCornersResult{
		Ordering: ordering,
		Ordered:  oc,
		Width:    int(math.Round(geometry.Distance(oc.TopLeft, oc.TopRight))),
		Height:   int(math.Round(geometry.Distance(oc.TopLeft, oc.BottomLeft))),
		Valid:    true,
	}
	plan, err := geometry.NewPlan(cs, geometry.WithOrdering(ordering))
	if err != nil {
		result.Valid = false
		result.Problem = err.Error()
		return result, nil
	}
	h := plan.Forward()
	result.Homography = &h
	return result, nil
}

// === Scaling ===

// scaleArgs names the rectified shape and real size, either directly or
// through a parameter folder.
type scaleArgs struct {
	Folder   string `json:"folder"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	LengthMM int    `json:"length_mm"`
	WidthMM  int    `json:"width_mm"`
}

func (s *Server) scaleContext(a scaleArgs) (geometry.Shape, scale.RealSize, error) {
	if a.Folder != "" {
		store := calibration.NewStore(s.folderPath(a.Folder), s.cache)
		_, shape, err := store.LoadPoints()
		if err != nil {
			return geometry.Shape{}, scale.RealSize{}, err
		}
		real, err := store.LoadRealSize()
		if err != nil {
			return geometry.Shape{}, scale.RealSize{}, err
		}
		return shape, real, nil
	}

	shape := geometry.Shape{Height: a.Height, Width: a.Width, Channels: 3}
	real := scale.RealSize{LengthMM: a.LengthMM, WidthMM: a.WidthMM}
	if err := real.Validate(); err != nil {
		return shape, real, err
	}
	return shape, real, nil
}

type positionToPhysicalArgs struct {
	scaleArgs
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handlePositionToPhysical(args json.RawMessage) (interface{}, error) {
	var a positionToPhysicalArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	shape, real, err := s.scaleContext(a.scaleArgs)
	if err != nil {
		return nil, err
	}
	return scale.ToPhysical(geometry.PointF{X: a.X, Y: a.Y}, shape, real)
}

type positionMeasureArgs struct {
	scaleArgs
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (s *Server) handlePositionMeasure(args json.RawMessage) (interface{}, error) {
	var a positionMeasureArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	shape, real, err := s.scaleContext(a.scaleArgs)
	if err != nil {
		return nil, err
	}
	return scale.Measure(geometry.PointF{X: a.X1, Y: a.Y1}, geometry.PointF{X: a.X2, Y: a.Y2}, shape, real)
}

// === Corner picking aid ===

type positionGridArgs struct {
	Path            string  `json:"path"`
	GridSpacing     int     `json:"grid_spacing"`
	ShowCoordinates *bool   `json:"show_coordinates"`
	GridColor       string  `json:"grid_color"`
	Scale           float64 `json:"scale"`
	OutputPath      string  `json:"output_path"`
}

type positionGridResult struct {
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`
	OutputPath string                `json:"output_path,omitempty"`
	Image      *imaging.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handlePositionGrid(args json.RawMessage) (interface{}, error) {
	var a positionGridArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.GridSpacing == 0 {
		a.GridSpacing = 50
	}
	if a.GridColor == "" {
		a.GridColor = "#FF000080"
	}
	showCoordinates := a.ShowCoordinates == nil || *a.ShowCoordinates

	lineColor, err := imaging.ParseColor(a.GridColor)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Open(a.Path)
	if err != nil {
		return nil, err
	}
	grid, err := imaging.GridOverlay(img, a.GridSpacing, showCoordinates, lineColor)
	if err != nil {
		return nil, err
	}

	result := &positionGridResult{Width: grid.Bounds().Dx(), Height: grid.Bounds().Dy()}
	if a.OutputPath != "" {
		if err := imaging.Save(a.OutputPath, grid); err != nil {
			return nil, err
		}
		result.OutputPath = a.OutputPath
		return result, nil
	}
	if result.Image, err = imaging.EncodePNG(grid, a.Scale); err != nil {
		return nil, err
	}
	return result, nil
}

// === Corner suggestion ===

type positionSuggestCornersArgs struct {
	Path       string   `json:"path"`
	MinArea    int      `json:"min_area"`
	MinSupport *float64 `json:"min_support"`
	MaxResults int      `json:"max_results"`
}

type positionSuggestCornersResult struct {
	Width      int                         `json:"width"`
	Height     int                         `json:"height"`
	Candidates []detection.RegionCandidate `json:"candidates"`
}

func (s *Server) handlePositionSuggestCorners(args json.RawMessage) (interface{}, error) {
	var a positionSuggestCornersArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	minSupport := 0.8
	if a.MinSupport != nil {
		minSupport = *a.MinSupport
	}
	if minSupport < 0 || minSupport > 1 {
		return nil, faults.Invalid("min_support must be within [0, 1]")
	}
	if a.MaxResults == 0 {
		a.MaxResults = 5
	}

	img, err := imaging.Open(a.Path)
	if err != nil {
		return nil, err
	}
	candidates := detection.SuggestRegions(img, detection.RegionOptions{
		MinArea:    a.MinArea,
		MinSupport: minSupport,
		MaxResults: a.MaxResults,
	})
	return &positionSuggestCornersResult{
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Candidates: candidates,
	}, nil
}
