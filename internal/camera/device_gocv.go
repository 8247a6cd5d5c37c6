//go:build gocv

package camera

import (
	"context"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// DeviceSource reads frames from a camera through OpenCV.
type DeviceSource struct {
	mu   sync.Mutex
	id   int
	mode Mode
	cap  *gocv.VideoCapture
	mat  gocv.Mat
}

// OpenDevice opens camera id and requests the size and frame rate of mode.
func OpenDevice(id int, mode Mode) (Source, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, faults.Resource(err, "failed to open camera %d", id)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, faults.Resource(nil, "camera %d did not open", id)
	}

	spec := mode.Spec()
	vc.Set(gocv.VideoCaptureFrameWidth, float64(spec.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(spec.Height))
	vc.Set(gocv.VideoCaptureFPS, spec.FPS)

	return &DeviceSource{id: id, mode: mode, cap: vc, mat: gocv.NewMat()}, nil
}

// CaptureFrame grabs and decodes one frame.
func (d *DeviceSource) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if ok := d.cap.Read(&d.mat); !ok {
		return nil, faults.Resource(nil, "camera %d: read failed", d.id)
	}
	if d.mat.Empty() {
		return nil, faults.Resource(nil, "camera %d: empty frame", d.id)
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return nil, faults.Resource(err, "camera %d: convert frame", d.id)
	}
	return img, nil
}

// Close releases the frame buffer and the device.
func (d *DeviceSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mat.Close()
	return d.cap.Close()
}
