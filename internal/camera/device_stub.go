//go:build !gocv

package camera

import "github.com/ironsheep/positioning-tools/internal/faults"

// OpenDevice is unavailable without the gocv build tag.
func OpenDevice(id int, mode Mode) (Source, error) {
	return nil, faults.Resource(nil, "camera %d (%s): camera support not compiled in, rebuild with -tags gocv", id, mode)
}
