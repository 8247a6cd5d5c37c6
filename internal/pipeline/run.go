package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/ironsheep/positioning-tools/internal/camera"
	"github.com/ironsheep/positioning-tools/internal/display"
	"github.com/ironsheep/positioning-tools/internal/faults"
)

// RunOptions controls the capture loop.
type RunOptions struct {
	// MaxFrames stops the loop after this many captured frames. Zero means
	// no limit.
	MaxFrames int

	// Pipelined captures the next frame while the current one is processed.
	Pipelined bool

	// MaxCaptureFailures is how many consecutive capture errors are retried
	// before the loop gives up. Zero ends the loop on the first failure.
	MaxCaptureFailures int

	// RetryBackoff is the pause before each capture retry.
	RetryBackoff time.Duration

	// Timing receives per-frame durations when set.
	Timing *TimingLog
}

// Stats summarises a run.
type Stats struct {
	Frames         int `json:"frames"`
	Processed      int `json:"processed"`
	Failed         int `json:"failed"`
	NoMatch        int `json:"no_match"`
	Detections     int `json:"detections"`
	CaptureRetries int `json:"capture_retries"`
}

type capturedFrame struct {
	img     image.Image
	elapsed time.Duration
	err     error
}

type loop struct {
	session  *Session
	source   camera.Source
	reporter display.Reporter
	opts     RunOptions
	log      *slog.Logger
	stats    Stats
}

// Run captures frames from source until ctx is cancelled, the source is
// exhausted, the reporter returns display.ErrQuit, or MaxFrames is reached;
// all of these return a nil error. A frame that fails to process is logged
// and skipped. A capture failure that outlives the retry budget ends the run
// with that error.
func Run(ctx context.Context, s *Session, source camera.Source, reporter display.Reporter, opts RunOptions, log *slog.Logger) (Stats, error) {
	l := &loop{session: s, source: source, reporter: reporter, opts: opts, log: log}

	log.Info("detection session started",
		"session", s.ID,
		"dir", s.Params.Dir,
		"shape", s.Params.Shape.String(),
		"real_size", s.Params.RealSize.String(),
		"threshold", s.Options.Threshold,
		"pipelined", opts.Pipelined)
	for _, w := range s.Warnings {
		log.Warn("calibration check", "session", s.ID, "warning", w)
	}

	var err error
	if opts.Pipelined {
		err = l.runPipelined(ctx)
	} else {
		err = l.runSequential(ctx)
	}

	log.Info("detection session finished",
		"session", s.ID,
		"frames", l.stats.Frames,
		"failed", l.stats.Failed,
		"no_match", l.stats.NoMatch)
	return l.stats, err
}

func (l *loop) more(index int) bool {
	return l.opts.MaxFrames <= 0 || index < l.opts.MaxFrames
}

func (l *loop) runSequential(ctx context.Context) error {
	for index := 0; l.more(index); index++ {
		if ctx.Err() != nil {
			return nil
		}
		c := l.capture(ctx)
		stop, err := l.handle(ctx, index, c)
		if stop || err != nil {
			return err
		}
	}
	return nil
}

func (l *loop) runPipelined(ctx context.Context) error {
	pctx, cancel := context.WithCancel(ctx)
	frames := make(chan capturedFrame, 1)

	go func() {
		defer close(frames)
		for index := 0; l.more(index); index++ {
			c := l.capture(pctx)
			select {
			case frames <- c:
			case <-pctx.Done():
				return
			}
			if c.err != nil {
				return
			}
		}
	}()

	defer func() {
		cancel()
		for range frames {
		}
	}()

	index := 0
	for c := range frames {
		if ctx.Err() != nil {
			return nil
		}
		stop, err := l.handle(ctx, index, c)
		if stop || err != nil {
			return err
		}
		index++
	}
	return nil
}

// capture reads one frame, retrying resource failures within the budget.
func (l *loop) capture(ctx context.Context) capturedFrame {
	failures := 0
	for {
		start := time.Now()
		img, err := l.source.CaptureFrame(ctx)
		if err == nil {
			return capturedFrame{img: img, elapsed: time.Since(start)}
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil || failures >= l.opts.MaxCaptureFailures {
			return capturedFrame{err: err}
		}
		failures++
		l.stats.CaptureRetries++
		l.log.Warn("capture failed, retrying", "attempt", failures, "kind", faults.Kind(err), "error", err)

		if l.opts.RetryBackoff > 0 {
			t := time.NewTimer(l.opts.RetryBackoff)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return capturedFrame{err: ctx.Err()}
			}
		}
	}
}

// handle processes and reports one captured frame. It returns stop=true
// when the loop should end normally.
func (l *loop) handle(ctx context.Context, index int, c capturedFrame) (bool, error) {
	if c.err != nil {
		if errors.Is(c.err, io.EOF) || ctx.Err() != nil {
			return true, nil
		}
		l.log.Error("capture failed", "frame", index, "kind", faults.Kind(c.err), "error", c.err)
		return true, c.err
	}
	l.stats.Frames++

	res, err := l.session.ProcessFrame(c.img)
	if err != nil {
		l.stats.Failed++
		l.log.Warn("frame processing failed", "frame", index, "kind", faults.Kind(err), "error", err)
		l.recordTiming(c.elapsed, 0)
		return false, nil
	}
	l.stats.Processed++
	l.stats.Detections += len(res.Detections)
	if len(res.Detections) == 0 {
		l.stats.NoMatch++
	}
	l.recordTiming(c.elapsed, res.Elapsed)

	frame := &display.Frame{
		Index:      index,
		Image:      res.Rectified,
		Detections: res.Detections,
		BestScore:  res.BestScore,
	}
	if err := l.reporter.Report(ctx, frame); err != nil {
		if errors.Is(err, display.ErrQuit) {
			return true, nil
		}
		l.log.Warn("report failed", "frame", index, "error", err)
	}
	return false, nil
}

func (l *loop) recordTiming(capture, process time.Duration) {
	if l.opts.Timing == nil {
		return
	}
	if err := l.opts.Timing.Record(capture, process); err != nil {
		l.log.Warn("timing log write failed", "error", err)
	}
}
