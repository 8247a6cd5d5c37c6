//go:build !gocv

package display

import "github.com/ironsheep/positioning-tools/internal/faults"

// NewWindowReporter fails unless built with the "gocv" tag.
func NewWindowReporter(title string, style Style) (Reporter, error) {
	return nil, faults.Resource(nil, "window display not compiled in (build with -tags gocv)")
}
