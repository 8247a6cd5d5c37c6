package camera

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/imaging"
)

// FileSource returns the same still image on every call.
type FileSource struct {
	path string
	img  image.Image
}

// OpenFile decodes path once and serves it as every frame.
func OpenFile(path string) (*FileSource, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{path: path, img: img}, nil
}

// NewStillSource serves img as every frame.
func NewStillSource(img image.Image) *FileSource {
	return &FileSource{path: "<memory>", img: img}
}

// CaptureFrame returns the still image.
func (s *FileSource) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.img, nil
}

// Close does nothing.
func (s *FileSource) Close() error { return nil }

// imageExtensions are the file types DirectorySource replays.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// DirectorySource replays image files from a directory in lexical order.
type DirectorySource struct {
	mu    sync.Mutex
	files []string
	next  int
	loop  bool
}

// OpenDirectory lists the images in dir. With loop set the sequence
// restarts after the last file; otherwise CaptureFrame returns io.EOF.
func OpenDirectory(dir string, loop bool) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, faults.Resource(err, "failed to list frames in %s", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, faults.Resource(nil, "no image files in %s", dir)
	}
	sort.Strings(files)
	return &DirectorySource{files: files, loop: loop}, nil
}

// Len returns the number of frames in one pass.
func (s *DirectorySource) Len() int {
	return len(s.files)
}

// CaptureFrame decodes the next file. After the last file it returns io.EOF
// unless the source loops.
func (s *DirectorySource) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.files) {
		if !s.loop {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	s.mu.Unlock()

	return imaging.Open(path)
}

// Close does nothing; files are opened per frame.
func (s *DirectorySource) Close() error { return nil }

// Open picks a source from a source string: "device" or
// "device:N" opens a camera, a directory replays its images, and any other
// path is served as a still image.
func Open(spec string, mode Mode, loop bool) (Source, error) {
	switch {
	case spec == "device":
		return OpenDevice(0, mode)
	case strings.HasPrefix(spec, "device:"):
		id, err := ParseDeviceID(strings.TrimPrefix(spec, "device:"))
		if err != nil {
			return nil, err
		}
		return OpenDevice(id, mode)
	}

	info, err := os.Stat(spec)
	if err != nil {
		return nil, faults.Resource(err, "frame source %s", spec)
	}
	if info.IsDir() {
		return OpenDirectory(spec, loop)
	}
	return OpenFile(spec)
}
