package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// writeFrame writes a solid PNG of the given width into dir/name
func writeFrame(t *testing.T, dir, name string, width int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"high_res", HighRes, false},
		{"MEDIUM_RES", MediumRes, false},
		{"low_res", LowRes, false},
		{"0", HighRes, false},
		{"2", LowRes, false},
		{"3", 0, true},
		{"-1", 0, true},
		{"ultra", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, faults.ErrInvalidInput) {
				t.Errorf("ParseMode(%q): expected ErrInvalidInput, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestModeSpecs(t *testing.T) {
	tests := []struct {
		mode          Mode
		width, height int
		fps           float64
	}{
		{HighRes, 4608, 2592, 14.35},
		{MediumRes, 2304, 1296, 56.03},
		{LowRes, 1536, 864, 120.13},
	}
	for _, tt := range tests {
		spec := tt.mode.Spec()
		if spec.Width != tt.width || spec.Height != tt.height || spec.FPS != tt.fps {
			t.Errorf("%s: got %+v", tt.mode, spec)
		}
	}
	if len(Modes()) != 3 {
		t.Errorf("Modes: got %d, want 3", len(Modes()))
	}
	if Mode(7).String() != "mode(7)" {
		t.Errorf("unknown mode String: got %q", Mode(7).String())
	}
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "b.png", 20)
	writeFrame(t, dir, "a.png", 10)
	writeFrame(t, dir, "c.png", 30)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644)

	src, err := OpenDirectory(dir, false)
	if err != nil {
		t.Fatalf("OpenDirectory failed: %v", err)
	}
	defer src.Close()

	if src.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", src.Len())
	}

	ctx := context.Background()
	for _, want := range []int{10, 20, 30} {
		img, err := src.CaptureFrame(ctx)
		if err != nil {
			t.Fatalf("CaptureFrame failed: %v", err)
		}
		if img.Bounds().Dx() != want {
			t.Errorf("frame width: got %d, want %d", img.Bounds().Dx(), want)
		}
	}
	if _, err := src.CaptureFrame(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("after last frame: expected io.EOF, got %v", err)
	}
}

func TestDirectorySource_Loop(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "a.png", 10)
	writeFrame(t, dir, "b.png", 20)

	src, err := OpenDirectory(dir, true)
	if err != nil {
		t.Fatalf("OpenDirectory failed: %v", err)
	}

	ctx := context.Background()
	for i, want := range []int{10, 20, 10, 20, 10} {
		img, err := src.CaptureFrame(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if img.Bounds().Dx() != want {
			t.Errorf("frame %d width: got %d, want %d", i, img.Bounds().Dx(), want)
		}
	}
}

func TestDirectorySource_Errors(t *testing.T) {
	if _, err := OpenDirectory(t.TempDir(), false); !errors.Is(err, faults.ErrResource) {
		t.Errorf("empty dir: expected ErrResource, got %v", err)
	}
	if _, err := OpenDirectory("/nonexistent/frames", false); !errors.Is(err, faults.ErrResource) {
		t.Errorf("missing dir: expected ErrResource, got %v", err)
	}

	dir := t.TempDir()
	path := writeFrame(t, dir, "a.png", 10)
	src, err := OpenDirectory(dir, true)
	if err != nil {
		t.Fatalf("OpenDirectory failed: %v", err)
	}
	os.Remove(path)
	if _, err := src.CaptureFrame(context.Background()); !errors.Is(err, faults.ErrResource) {
		t.Errorf("vanished file: expected ErrResource, got %v", err)
	}
}

func TestFileSource(t *testing.T) {
	path := writeFrame(t, t.TempDir(), "still.png", 12)
	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}

	ctx := context.Background()
	first, _ := src.CaptureFrame(ctx)
	second, _ := src.CaptureFrame(ctx)
	if first != second {
		t.Error("FileSource should serve the same image every call")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := src.CaptureFrame(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: expected context.Canceled, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := writeFrame(t, dir, "a.png", 10)

	src, err := Open(dir, LowRes, false)
	if err != nil {
		t.Fatalf("Open(dir) failed: %v", err)
	}
	if _, ok := src.(*DirectorySource); !ok {
		t.Errorf("Open(dir): got %T, want *DirectorySource", src)
	}

	src, err = Open(path, LowRes, false)
	if err != nil {
		t.Fatalf("Open(file) failed: %v", err)
	}
	if _, ok := src.(*FileSource); !ok {
		t.Errorf("Open(file): got %T, want *FileSource", src)
	}

	if _, err := Open("/nonexistent/frame.png", LowRes, false); !errors.Is(err, faults.ErrResource) {
		t.Errorf("missing path: expected ErrResource, got %v", err)
	}
	if _, err := Open("device:abc", LowRes, false); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("bad device id: expected ErrInvalidInput, got %v", err)
	}
}
