package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ironsheep/positioning-tools/internal/camera"
	"github.com/ironsheep/positioning-tools/internal/faults"
)

// TimingLogName returns the timing log file name for a camera mode.
func TimingLogName(mode camera.Mode) string {
	return mode.String() + "_times.txt"
}

// TimingLog records capture and processing durations, one tab-separated
// line of seconds per frame. Lines go to a temporary file that Close
// renames into place.
type TimingLog struct {
	path string
	tmp  *os.File
	w    *bufio.Writer
}

// OpenTimingLog starts a timing log for mode inside dir.
func OpenTimingLog(dir string, mode camera.Mode) (*TimingLog, error) {
	path := filepath.Join(dir, TimingLogName(mode))
	tmp, err := os.CreateTemp(dir, "."+TimingLogName(mode)+".*.tmp")
	if err != nil {
		return nil, faults.Resource(err, "failed to create timing log %s", path)
	}
	return &TimingLog{path: path, tmp: tmp, w: bufio.NewWriter(tmp)}, nil
}

// Path returns the final location of the log.
func (l *TimingLog) Path() string {
	return l.path
}

// Record appends one frame's durations.
func (l *TimingLog) Record(capture, process time.Duration) error {
	_, err := fmt.Fprintf(l.w, "%.6f\t%.6f\n", capture.Seconds(), process.Seconds())
	return err
}

// Close flushes the log and moves it into place.
func (l *TimingLog) Close() error {
	defer os.Remove(l.tmp.Name())
	if err := l.w.Flush(); err != nil {
		l.tmp.Close()
		return faults.Resource(err, "failed to write timing log %s", l.path)
	}
	if err := l.tmp.Close(); err != nil {
		return faults.Resource(err, "failed to write timing log %s", l.path)
	}
	if err := os.Rename(l.tmp.Name(), l.path); err != nil {
		return faults.Resource(err, "failed to write timing log %s", l.path)
	}
	return nil
}
