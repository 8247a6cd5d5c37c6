package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// EncodedImage is a PNG rendering of an image ready to embed in a JSON reply.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts the region (x1,y1)-(x2,y2) from an image. The region is
// relative to the image bounds and must lie inside them.
func Crop(img image.Image, region image.Rectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()
	abs := region.Add(bounds.Min)

	if region.Min.X >= region.Max.X || region.Min.Y >= region.Max.Y {
		return nil, faults.Invalid("invalid crop region %v: x1 must be < x2, y1 must be < y2", region)
	}
	if !abs.In(bounds) {
		return nil, faults.Invalid("crop region %v outside image bounds %dx%d",
			region, bounds.Dx(), bounds.Dy())
	}

	return imaging.Crop(img, abs), nil
}

// ParseRegion parses "x1,y1,x2,y2" into a rectangle.
func ParseRegion(s string) (image.Rectangle, error) {
	var x1, y1, x2, y2 int
	if err := scanInts(s, &x1, &y1, &x2, &y2); err != nil {
		return image.Rectangle{}, faults.Invalid("region %q: want \"x1,y1,x2,y2\": %v", s, err)
	}
	return image.Rect(x1, y1, x2, y2), nil
}

// EncodePNG renders img as base64 PNG, optionally scaled by factor.
// A factor of 0 or 1 keeps the original size.
func EncodePNG(img image.Image, factor float64) (*EncodedImage, error) {
	out := img
	if factor > 0 && factor != 1.0 {
		w := int(float64(img.Bounds().Dx()) * factor)
		h := int(float64(img.Bounds().Dy()) * factor)
		if w < 1 || h < 1 {
			return nil, faults.Invalid("scale %.3f leaves an empty image", factor)
		}
		out = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, faults.Resource(err, "failed to encode image")
	}

	return &EncodedImage{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// scanInts parses a comma separated list into exactly len(dst) integers.
func scanInts(s string, dst ...*int) error {
	parts := strings.Split(s, ",")
	if len(parts) != len(dst) {
		return fmt.Errorf("got %d values, want %d", len(parts), len(dst))
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}
