package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// DefaultGridColor is the semi-transparent red used when no colour is given.
var DefaultGridColor = color.NRGBA{R: 255, G: 0, B: 0, A: 128}

// GridOverlay draws a coordinate grid over a copy of img.
//
// Corners of the region of interest are picked by reading coordinates off
// this grid, so labels show the absolute pixel position of each crossing.
//
// Parameters:
//   - img: Source image (not modified).
//   - spacing: Distance between grid lines in pixels. Must be positive.
//   - showCoordinates: Label every crossing with "x,y".
//   - lineColor: Grid line colour. Nil selects DefaultGridColor.
func GridOverlay(img image.Image, spacing int, showCoordinates bool, lineColor color.Color) (*image.NRGBA, error) {
	if spacing <= 0 {
		return nil, faults.Invalid("grid spacing must be positive, got %d", spacing)
	}
	if lineColor == nil {
		lineColor = DefaultGridColor
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	result := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)
	line := image.NewUniform(lineColor)

	for x := spacing; x < width; x += spacing {
		draw.Draw(result, image.Rect(x, 0, x+1, height), line, image.Point{}, draw.Over)
	}
	for y := spacing; y < height; y += spacing {
		draw.Draw(result, image.Rect(0, y, width, y+1), line, image.Point{}, draw.Over)
	}

	if showCoordinates {
		fg := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		bg := color.NRGBA{R: 0, G: 0, B: 0, A: 180}
		for y := spacing; y < height; y += spacing {
			for x := spacing; x < width; x += spacing {
				DrawLabel(result, x+2, y+2, fmt.Sprintf("%d,%d", x, y), fg, bg)
			}
		}
	}

	return result, nil
}
