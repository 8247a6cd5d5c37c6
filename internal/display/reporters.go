package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/imaging"
)

// LogReporter logs each detection at info level and misses at debug level.
type LogReporter struct {
	log *slog.Logger
}

// NewLogReporter returns a reporter writing to log.
func NewLogReporter(log *slog.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(ctx context.Context, f *Frame) error {
	if len(f.Detections) == 0 {
		r.log.DebugContext(ctx, "no match", "frame", f.Index, "best_score", f.BestScore)
		return nil
	}
	for _, d := range f.Detections {
		r.log.InfoContext(ctx, "target located",
			"frame", f.Index,
			"box", d.Box.String(),
			"center_px", d.Center.String(),
			"x_mm", d.Physical.XMM,
			"y_mm", d.Physical.YMM,
		)
	}
	return nil
}

func (r *LogReporter) Close() error { return nil }

// TextReporter writes one tab-separated line per detection:
// frame index, x mm, y mm.
type TextReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextReporter returns a reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Report(_ context.Context, f *Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range f.Detections {
		if _, err := fmt.Fprintf(r.w, "%d\t%.1f\t%.1f\n", f.Index, d.Physical.XMM, d.Physical.YMM); err != nil {
			return faults.Resource(err, "failed to write frame %d", f.Index)
		}
	}
	return nil
}

func (r *TextReporter) Close() error { return nil }

// SnapshotReporter saves an annotated PNG of every Nth frame.
type SnapshotReporter struct {
	dir   string
	every int
	style Style
}

// NewSnapshotReporter creates dir and saves every Nth frame into it.
// every below 1 is treated as 1.
func NewSnapshotReporter(dir string, every int, style Style) (*SnapshotReporter, error) {
	if every < 1 {
		every = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, faults.Resource(err, "failed to create snapshot dir %s", dir)
	}
	return &SnapshotReporter{dir: dir, every: every, style: style}, nil
}

// SnapshotPath returns the file a frame index is saved to.
func (r *SnapshotReporter) SnapshotPath(index int) string {
	return filepath.Join(r.dir, fmt.Sprintf("frame_%06d.png", index))
}

func (r *SnapshotReporter) Report(_ context.Context, f *Frame) error {
	if f.Image == nil || f.Index%r.every != 0 {
		return nil
	}
	return imaging.Save(r.SnapshotPath(f.Index), Annotate(f.Image, f.Detections, r.style))
}

func (r *SnapshotReporter) Close() error { return nil }

type multi []Reporter

// Multi returns a reporter that forwards each frame to all of rs and joins
// their errors.
func Multi(rs ...Reporter) Reporter {
	return multi(rs)
}

func (m multi) Report(ctx context.Context, f *Frame) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
