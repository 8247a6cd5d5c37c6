package calibration

import (
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/ironsheep/positioning-tools/internal/detection"
	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/imaging"
	"github.com/ironsheep/positioning-tools/internal/scale"
)

// Store reads and writes the calibration files of one parameter folder.
// It is safe for concurrent readers; concurrent writers to the same file
// race only in the sense that the last rename wins.
type Store struct {
	dir   string
	cache *imaging.ImageCache
}

// NewStore returns a store for dir. A nil cache disables template caching.
func NewStore(dir string, cache *imaging.ImageCache) *Store {
	return &Store{dir: dir, cache: cache}
}

// Dir returns the parameter folder.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path of a file inside the parameter folder.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// LoadPoints reads points.txt.
func (s *Store) LoadPoints() (geometry.CornerSet, geometry.Shape, error) {
	var cs geometry.CornerSet
	var shape geometry.Shape
	err := s.read(PointsFile, func(r io.Reader) error {
		var err error
		cs, shape, err = ReadPoints(r)
		return err
	})
	return cs, shape, err
}

// SavePoints atomically replaces points.txt.
func (s *Store) SavePoints(cs geometry.CornerSet, shape geometry.Shape) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	return writeFileAtomic(s.Path(PointsFile), func(w io.Writer) error {
		return WritePoints(w, cs, shape)
	})
}

// LoadRealSize reads real_size.txt.
func (s *Store) LoadRealSize() (scale.RealSize, error) {
	var rs scale.RealSize
	err := s.read(RealSizeFile, func(r io.Reader) error {
		var err error
		rs, err = ReadRealSize(r)
		return err
	})
	return rs, err
}

// SaveRealSize atomically replaces real_size.txt.
func (s *Store) SaveRealSize(rs scale.RealSize) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	return writeFileAtomic(s.Path(RealSizeFile), func(w io.Writer) error {
		return WriteRealSize(w, rs)
	})
}

// LoadTemplate decodes template.jpg and converts it to grayscale.
func (s *Store) LoadTemplate() (*image.Gray, error) {
	path := s.Path(TemplateFile)
	var (
		img image.Image
		err error
	)
	if s.cache != nil {
		img, err = s.cache.Load(path)
	} else {
		img, err = imaging.Open(path)
	}
	if err != nil {
		return nil, err
	}
	return detection.Grayscale(img), nil
}

// SaveTemplate atomically replaces template.jpg.
func (s *Store) SaveTemplate(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return faults.Invalid("template image is empty")
	}
	path := s.Path(TemplateFile)
	if err := imaging.Save(path, img); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Evict(path)
	}
	return nil
}

// SaveOutput atomically replaces output.jpg, the rectified frame kept for
// reviewing a calibration.
func (s *Store) SaveOutput(img image.Image) error {
	return imaging.Save(s.Path(OutputFile), img)
}

// Calibrate rectifies frame with cs, then saves the corners, the resulting
// shape, and the rectified frame as output.jpg. The rectified frame is
// returned for template capture.
func (s *Store) Calibrate(frame image.Image, cs geometry.CornerSet, opts ...geometry.RectifyOption) (*image.NRGBA, geometry.Shape, error) {
	rectified, shape, err := geometry.Rectify(frame, cs, opts...)
	if err != nil {
		return nil, geometry.Shape{}, err
	}
	if err := s.SavePoints(cs, shape); err != nil {
		return nil, geometry.Shape{}, err
	}
	if err := s.SaveOutput(rectified); err != nil {
		return nil, geometry.Shape{}, err
	}
	return rectified, shape, nil
}

// CaptureTemplate crops region out of a rectified frame and saves it as
// template.jpg.
func (s *Store) CaptureTemplate(rectified image.Image, region image.Rectangle) (*image.NRGBA, error) {
	tmpl, err := imaging.Crop(rectified, region)
	if err != nil {
		return nil, err
	}
	if err := s.SaveTemplate(tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Load reads every calibration file and returns a validated snapshot.
func (s *Store) Load() (*Params, error) {
	cs, shape, err := s.LoadPoints()
	if err != nil {
		return nil, err
	}
	rs, err := s.LoadRealSize()
	if err != nil {
		return nil, err
	}
	tmpl, err := s.LoadTemplate()
	if err != nil {
		return nil, err
	}
	p := &Params{
		Dir:      s.dir,
		Corners:  cs,
		Shape:    shape,
		RealSize: rs,
		Template: tmpl,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) read(name string, fn func(io.Reader) error) error {
	path := s.Path(name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return faults.Resource(err, "calibration file %s is missing", name)
		}
		return faults.Resource(err, "failed to open %s", path)
	}
	defer f.Close()
	return fn(f)
}
