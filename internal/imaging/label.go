package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// labelPadding is the gap in pixels between the label background and its text.
const labelPadding = 1

// LabelSize returns the width and height of the box DrawLabel fills for text.
func LabelSize(text string) (int, int) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	return w + 2*labelPadding, face.Height + 2*labelPadding
}

// DrawLabel draws text with its background box's top-left corner at (x, y).
// A nil bg leaves the background untouched. Pixels outside dst are clipped.
// The returned rectangle is the box that was drawn.
func DrawLabel(dst draw.Image, x, y int, text string, fg, bg color.Color) image.Rectangle {
	face := basicfont.Face7x13
	w, h := LabelSize(text)
	box := image.Rect(x, y, x+w, y+h)

	if bg != nil {
		draw.Draw(dst, box.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x+labelPadding, y+labelPadding+face.Ascent),
	}
	d.DrawString(text)
	return box
}
