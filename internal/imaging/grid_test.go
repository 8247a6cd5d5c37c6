package imaging

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

func TestGridOverlay_GridLines(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{0, 0, 0, 255})

	result, err := GridOverlay(img, 25, false, color.NRGBA{255, 255, 255, 255})
	if err != nil {
		t.Fatalf("GridOverlay failed: %v", err)
	}
	if b := result.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Fatalf("dimensions: got %dx%d, want 100x100", b.Dx(), b.Dy())
	}

	for _, p := range []image.Point{{25, 10}, {50, 99}, {10, 75}, {99, 25}} {
		if c := result.NRGBAAt(p.X, p.Y); c.R != 255 {
			t.Errorf("grid pixel %v: got %v, want white", p, c)
		}
	}
	for _, p := range []image.Point{{0, 0}, {24, 24}, {26, 51}} {
		if c := result.NRGBAAt(p.X, p.Y); c.R != 0 {
			t.Errorf("background pixel %v: got %v, want black", p, c)
		}
	}

	// Source must be untouched
	if r, _, _, _ := img.At(25, 10).RGBA(); r != 0 {
		t.Error("GridOverlay modified its source image")
	}
}

func TestGridOverlay_WithCoordinates(t *testing.T) {
	img := createInMemoryImage(120, 120, color.RGBA{0, 0, 0, 255})

	plain, err := GridOverlay(img, 50, false, nil)
	if err != nil {
		t.Fatalf("GridOverlay failed: %v", err)
	}
	labelled, err := GridOverlay(img, 50, true, nil)
	if err != nil {
		t.Fatalf("GridOverlay failed: %v", err)
	}

	// The label box below-right of the (50,50) crossing differs from the plain grid.
	w, h := LabelSize("50,50")
	differs := false
	for y := 52; y < 52+h && !differs; y++ {
		for x := 52; x < 52+w; x++ {
			if plain.NRGBAAt(x, y) != labelled.NRGBAAt(x, y) {
				differs = true
				break
			}
		}
	}
	if !differs {
		t.Error("coordinate labels were not drawn")
	}
}

func TestGridOverlay_InvalidSpacing(t *testing.T) {
	img := createInMemoryImage(10, 10, color.Black)
	for _, spacing := range []int{0, -5} {
		if _, err := GridOverlay(img, spacing, false, nil); !errors.Is(err, faults.ErrInvalidInput) {
			t.Errorf("spacing %d: expected ErrInvalidInput, got %v", spacing, err)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		input   string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FF0000", color.NRGBA{255, 0, 0, 255}, false},
		{"00ff00", color.NRGBA{0, 255, 0, 255}, false},
		{"#00F", color.NRGBA{0, 0, 255, 255}, false},
		{"#FF000080", color.NRGBA{255, 0, 0, 128}, false},
		{"", color.NRGBA{}, true},
		{"#GG0000", color.NRGBA{}, true},
		{"#FF00", color.NRGBA{}, true},
		{"#FF0000ZZ", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if tt.wantErr {
				if !errors.Is(err, faults.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseColor failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHexString(t *testing.T) {
	if got := HexString(color.NRGBA{255, 128, 0, 255}); got != "#FF8000" {
		t.Errorf("got %s, want #FF8000", got)
	}
}

func TestSampleColor(t *testing.T) {
	img := createQuadrantImage(100, 100)

	c, err := SampleColor(img, 75, 25)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	if c != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("got %v, want green", c)
	}

	for _, p := range []image.Point{{-1, 0}, {0, 100}, {100, 0}} {
		if _, err := SampleColor(img, p.X, p.Y); !errors.Is(err, faults.ErrInvalidInput) {
			t.Errorf("SampleColor(%v): expected ErrInvalidInput, got %v", p, err)
		}
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 60, 20))
	fg := color.NRGBA{255, 255, 255, 255}
	bg := color.NRGBA{0, 0, 255, 255}

	box := DrawLabel(img, 2, 2, "1.5", fg, bg)
	w, h := LabelSize("1.5")
	if box != image.Rect(2, 2, 2+w, 2+h) {
		t.Errorf("box: got %v, want %v", box, image.Rect(2, 2, 2+w, 2+h))
	}

	foreground := 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if img.NRGBAAt(x, y) == fg {
				foreground++
			}
		}
	}
	if foreground == 0 {
		t.Error("no text pixels drawn")
	}
	if c := img.NRGBAAt(box.Min.X, box.Min.Y); c != bg {
		t.Errorf("background corner: got %v, want %v", c, bg)
	}

	// Clipped at the image edge without panicking
	DrawLabel(img, 55, 15, "123456", fg, bg)
}
