package server

import (
	"encoding/json"
	"image"

	"github.com/ironsheep/positioning-tools/internal/calibration"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/imaging"
	"github.com/ironsheep/positioning-tools/internal/scale"
)

// store opens the parameter folder. With create set, a missing folder is
// created.
func (s *Server) store(folder string, create bool) (*calibration.Store, error) {
	return calibration.OpenFolder(s.cfg.CalibrationRoot, folder, create, s.cache)
}

type folderArgs struct {
	Folder string `json:"folder"`
}

func (s *Server) handleCalibrationLoad(args json.RawMessage) (interface{}, error) {
	var a folderArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	st, err := s.store(a.Folder, false)
	if err != nil {
		return nil, err
	}
	params, err := st.Load()
	if err != nil {
		return nil, err
	}
	return params.Summarize(s.cfg.Ordering(), s.cfg.AspectTolerance), nil
}

type calibrationSaveCornersArgs struct {
	Folder    string     `json:"folder"`
	FramePath string     `json:"frame_path"`
	Corners   []pointArg `json:"corners"`
	Ordering  string     `json:"ordering"`
}

type calibrationSaveCornersResult struct {
	Folder     string                  `json:"folder"`
	Shape      geometry.Shape          `json:"shape"`
	Ordered    geometry.OrderedCorners `json:"ordered"`
	OutputPath string                  `json:"output_path"`
}

func (s *Server) handleCalibrationSaveCorners(args json.RawMessage) (interface{}, error) {
	var a calibrationSaveCornersArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ordering, err := s.ordering(a.Ordering)
	if err != nil {
		return nil, err
	}
	cs, err := cornerSetFromArgs(a.Corners)
	if err != nil {
		return nil, err
	}
	frame, err := imaging.Open(a.FramePath)
	if err != nil {
		return nil, err
	}
	st, err := s.store(a.Folder, true)
	if err != nil {
		return nil, err
	}

	_, shape, err := st.Calibrate(frame, cs,
		geometry.WithOrdering(ordering),
		geometry.WithWorkers(s.cfg.Workers))
	if err != nil {
		return nil, err
	}
	s.log.Info("corners saved", "folder", st.Dir(), "shape", shape.String())
	return &calibrationSaveCornersResult{
		Folder:     st.Dir(),
		Shape:      shape,
		Ordered:    geometry.Order(cs, ordering),
		OutputPath: st.Path(calibration.OutputFile),
	}, nil
}

type calibrationSaveRealSizeArgs struct {
	Folder   string `json:"folder"`
	LengthMM int    `json:"length_mm"`
	WidthMM  int    `json:"width_mm"`
}

type calibrationSaveRealSizeResult struct {
	Folder           string         `json:"folder"`
	RealSize         scale.RealSize `json:"real_size"`
	AspectMismatch   *float64       `json:"aspect_mismatch,omitempty"`
	AspectSuspicious bool           `json:"aspect_suspicious"`
}

func (s *Server) handleCalibrationSaveRealSize(args json.RawMessage) (interface{}, error) {
	var a calibrationSaveRealSizeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	st, err := s.store(a.Folder, true)
	if err != nil {
		return nil, err
	}
	rs := scale.RealSize{LengthMM: a.LengthMM, WidthMM: a.WidthMM}
	if err := st.SaveRealSize(rs); err != nil {
		return nil, err
	}

	result := &calibrationSaveRealSizeResult{Folder: st.Dir(), RealSize: rs}
	if _, shape, err := st.LoadPoints(); err == nil {
		m := scale.AspectMismatch(shape, rs)
		result.AspectMismatch = &m
		result.AspectSuspicious = m > s.cfg.AspectTolerance
	}
	return result, nil
}

type calibrationCaptureTemplateArgs struct {
	Folder     string `json:"folder"`
	SourcePath string `json:"source_path"`
	X1         int    `json:"x1"`
	Y1         int    `json:"y1"`
	X2         int    `json:"x2"`
	Y2         int    `json:"y2"`
}

type calibrationCaptureTemplateResult struct {
	Folder       string                `json:"folder"`
	TemplatePath string                `json:"template_path"`
	Width        int                   `json:"width"`
	Height       int                   `json:"height"`
	Image        *imaging.EncodedImage `json:"image"`
}

func (s *Server) handleCalibrationCaptureTemplate(args json.RawMessage) (interface{}, error) {
	var a calibrationCaptureTemplateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	st, err := s.store(a.Folder, false)
	if err != nil {
		return nil, err
	}
	source := a.SourcePath
	if source == "" {
		source = st.Path(calibration.OutputFile)
	}
	rectified, err := imaging.Open(source)
	if err != nil {
		return nil, err
	}
	tmpl, err := st.CaptureTemplate(rectified, image.Rect(a.X1, a.Y1, a.X2, a.Y2))
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNG(tmpl, 1)
	if err != nil {
		return nil, err
	}
	return &calibrationCaptureTemplateResult{
		Folder:       st.Dir(),
		TemplatePath: st.Path(calibration.TemplateFile),
		Width:        tmpl.Bounds().Dx(),
		Height:       tmpl.Bounds().Dy(),
		Image:        encoded,
	}, nil
}

type calibrationListFoldersArgs struct {
	Root string `json:"root"`
}

type calibrationListFoldersResult struct {
	Root    string               `json:"root"`
	Folders []calibration.Folder `json:"folders"`
}

func (s *Server) handleCalibrationListFolders(args json.RawMessage) (interface{}, error) {
	var a calibrationListFoldersArgs
	if len(args) > 0 {
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
	}
	if a.Root == "" {
		a.Root = s.cfg.CalibrationRoot
	}
	folders, err := calibration.List(a.Root)
	if err != nil {
		return nil, err
	}
	return &calibrationListFoldersResult{Root: a.Root, Folders: folders}, nil
}
