// Package camera provides frame sources for the capture loop.
//
// A Source hands out one frame per call. The core never retries a failed
// capture; callers decide whether and how often to try again.
//
// Three sources are available:
//
//   - FileSource returns the same still image every call.
//   - DirectorySource replays the images in a directory in lexical order.
//   - DeviceSource reads a live camera through OpenCV. It is compiled in
//     only with the "gocv" build tag; without it OpenDevice fails with
//     faults.ErrResource.
package camera

import (
	"context"
	"image"
	"strconv"
	"strings"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// Source produces camera frames.
type Source interface {
	// CaptureFrame returns the next frame. Failures wrap faults.ErrResource.
	CaptureFrame(ctx context.Context) (image.Image, error)

	// Close releases the underlying device or files.
	Close() error
}

// Mode is one of the fixed sensor configurations.
type Mode int

const (
	HighRes Mode = iota
	MediumRes
	LowRes
)

// ModeSpec is the capture size and frame rate of a Mode.
type ModeSpec struct {
	Name   string  `json:"name"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
}

var modeSpecs = [...]ModeSpec{
	HighRes:   {Name: "high_res", Width: 4608, Height: 2592, FPS: 14.35},
	MediumRes: {Name: "medium_res", Width: 2304, Height: 1296, FPS: 56.03},
	LowRes:    {Name: "low_res", Width: 1536, Height: 864, FPS: 120.13},
}

// Spec returns the capture parameters of m.
func (m Mode) Spec() ModeSpec {
	return modeSpecs[m]
}

// String returns the mode's name, e.g. "low_res".
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeSpecs) {
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
	return modeSpecs[m].Name
}

// Modes lists every mode in index order.
func Modes() []ModeSpec {
	out := make([]ModeSpec, len(modeSpecs))
	copy(out, modeSpecs[:])
	return out
}

// ParseMode accepts a mode name ("high_res") or its index ("0").
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i, spec := range modeSpecs {
		if s == spec.Name {
			return Mode(i), nil
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(modeSpecs) {
		return Mode(i), nil
	}
	return 0, faults.Invalid("unknown camera mode %q", s)
}

// ParseDeviceID parses a non-negative camera index.
func ParseDeviceID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id < 0 {
		return 0, faults.Invalid("invalid camera device %q", s)
	}
	return id, nil
}
