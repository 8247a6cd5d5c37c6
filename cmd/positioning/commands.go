package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/ironsheep/positioning-tools/internal/calibration"
	"github.com/ironsheep/positioning-tools/internal/camera"
	"github.com/ironsheep/positioning-tools/internal/config"
	"github.com/ironsheep/positioning-tools/internal/detection"
	"github.com/ironsheep/positioning-tools/internal/display"
	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/imaging"
	"github.com/ironsheep/positioning-tools/internal/pipeline"
	"github.com/ironsheep/positioning-tools/internal/scale"
	"github.com/ironsheep/positioning-tools/internal/server"
)

const defaultConfigPath = "positioning.json"

// cliEnv carries what every command writes to.
type cliEnv struct {
	log    *slog.Logger
	stdout io.Writer
}

// printJSON writes v to stdout as indented JSON.
func (e *cliEnv) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// commonFlags are accepted by every command that reads configuration.
type commonFlags struct {
	configPath string
	root       string
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", defaultConfigPath, "JSON config file; a missing file means defaults")
	fs.StringVar(&c.root, "root", "", "calibration root (overrides config)")
	return fs, c
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return faults.Invalid("%v", err)
	}
	if fs.NArg() > 0 {
		return faults.Invalid("unexpected arguments: %v", fs.Args())
	}
	return nil
}

// visited returns the names of the flags given on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// load reads the config file, then the environment, then -root.
func (c *commonFlags) load() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	if c.root != "" {
		cfg.CalibrationRoot = c.root
	}
	return cfg, nil
}

func runServe(ctx context.Context, env *cliEnv, args []string) error {
	fs, common := newFlagSet("serve")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	env.log.Debug("server starting",
		"version", Version,
		"build_time", BuildTime,
		"commit", GitCommit,
		"calibration_root", cfg.CalibrationRoot)

	srv := server.New(cfg, env.log)
	srv.SetVersion(Version)
	return srv.Run(ctx, os.Stdin, env.stdout)
}

func runDetect(ctx context.Context, env *cliEnv, args []string) error {
	fs, common := newFlagSet("detect")
	folder := fs.String("folder", "", "parameter folder (required)")
	source := fs.String("source", "device", `frame source: "device", "device:N", an image file or a directory`)
	mode := fs.String("mode", "", "camera mode: high_res, medium_res or low_res")
	frames := fs.Int("frames", 0, "stop after this many frames (0 = no limit)")
	loop := fs.Bool("loop", false, "replay a frame directory forever")
	pipelined := fs.Bool("pipelined", false, "capture the next frame while processing the current one")
	threshold := fs.Float64("threshold", 0, "match threshold in (0, 1]")
	overlap := fs.Float64("overlap", 0, "suppression overlap in (0, 1]")
	ordering := fs.String("ordering", "", "corner ordering: yx or angle")
	engine := fs.String("engine", "", "match engine: go or opencv (opencv needs the gocv build)")
	window := fs.Bool("window", false, "show annotated frames in a window (needs the gocv build)")
	text := fs.Bool("text", false, "print frame, x_mm and y_mm per detection to stdout")
	snapshotDir := fs.String("snapshot-dir", "", "save annotated frames to this directory")
	snapshotEvery := fs.Int("snapshot-every", 0, "save every Nth frame (0 or 1 = every frame)")
	timing := fs.Bool("timing", true, "write the per-frame timing log")
	timingDir := fs.String("timing-dir", "", "directory for the timing log (default: the parameter folder)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *folder == "" {
		return faults.Invalid("-folder is required")
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	set := visited(fs)
	if set["mode"] {
		cfg.CameraMode = *mode
	}
	if set["pipelined"] {
		cfg.Pipelined = *pipelined
	}
	if set["threshold"] {
		cfg.Threshold = *threshold
	}
	if set["overlap"] {
		cfg.Overlap = *overlap
	}
	if set["ordering"] {
		cfg.CornerOrdering = *ordering
	}
	if set["engine"] {
		cfg.MatchEngine = *engine
	}
	if set["snapshot-dir"] {
		cfg.SnapshotDir = *snapshotDir
	}
	if set["snapshot-every"] {
		cfg.SnapshotEvery = *snapshotEvery
	}
	if set["timing"] {
		cfg.TimingLog = *timing
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	backoff, err := cfg.Backoff()
	if err != nil {
		return err
	}

	store := calibration.NewStore(cfg.FolderPath(*folder), nil)
	params, err := store.Load()
	if err != nil {
		return err
	}
	session, err := pipeline.NewSession(params, pipeline.SessionConfig{
		Options:         cfg.DetectionOptions(),
		Ordering:        cfg.Ordering(),
		AspectTolerance: cfg.AspectTolerance,
	})
	if err != nil {
		return err
	}

	style, err := display.StyleFromHex(cfg.BoxColor, cfg.CenterColor)
	if err != nil {
		return err
	}
	reporters := []display.Reporter{display.NewLogReporter(env.log)}
	if *text {
		reporters = append(reporters, display.NewTextReporter(env.stdout))
	}
	if cfg.SnapshotDir != "" {
		snap, err := display.NewSnapshotReporter(cfg.SnapshotDir, cfg.SnapshotEvery, style)
		if err != nil {
			return err
		}
		reporters = append(reporters, snap)
	}
	if *window {
		win, err := display.NewWindowReporter("positioning - "+*folder, style)
		if err != nil {
			return err
		}
		reporters = append(reporters, win)
	}
	reporter := display.Multi(reporters...)
	defer func() {
		if err := reporter.Close(); err != nil {
			env.log.Warn("failed to close reporters", "error", err)
		}
	}()

	src, err := camera.Open(*source, cfg.Mode(), *loop)
	if err != nil {
		return err
	}
	defer src.Close()

	opts := pipeline.RunOptions{
		MaxFrames:          *frames,
		Pipelined:          cfg.Pipelined,
		MaxCaptureFailures: cfg.MaxCaptureFailures,
		RetryBackoff:       backoff,
	}
	if cfg.TimingLog {
		dir := *timingDir
		if dir == "" {
			dir = store.Dir()
		}
		tl, err := pipeline.OpenTimingLog(dir, cfg.Mode())
		if err != nil {
			return err
		}
		defer func() {
			if err := tl.Close(); err != nil {
				env.log.Warn("failed to write timing log", "error", err)
				return
			}
			env.log.Info("timing log written", "path", tl.Path())
		}()
		opts.Timing = tl
	}

	stats, err := pipeline.Run(ctx, session, src, reporter, opts, env.log)
	env.log.Debug("run statistics",
		"processed", stats.Processed,
		"detections", stats.Detections,
		"capture_retries", stats.CaptureRetries)
	return err
}

func runCalibrate(ctx context.Context, env *cliEnv, args []string) error {
	fs, common := newFlagSet("calibrate")
	folder := fs.String("folder", "", "parameter folder, created if missing (required)")
	frame := fs.String("frame", "", `reference frame: an image file, "device" or "device:N" (required)`)
	corners := fs.String("corners", "", `four corners as "x,y;x,y;x,y;x,y" in any order (required)`)
	ordering := fs.String("ordering", "", "corner ordering: yx or angle")
	mode := fs.String("mode", "", "camera mode when capturing from a device")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *folder == "" || *frame == "" || *corners == "" {
		return faults.Invalid("-folder, -frame and -corners are required")
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *ordering != "" {
		cfg.CornerOrdering = *ordering
	}
	if *mode != "" {
		cfg.CameraMode = *mode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cs, err := geometry.ParseCornerSet(*corners)
	if err != nil {
		return err
	}
	img, err := captureOne(ctx, *frame, cfg.Mode())
	if err != nil {
		return err
	}
	store, err := calibration.OpenFolder(cfg.CalibrationRoot, *folder, true, nil)
	if err != nil {
		return err
	}
	_, shape, err := store.Calibrate(img, cs,
		geometry.WithOrdering(cfg.Ordering()),
		geometry.WithWorkers(cfg.Workers))
	if err != nil {
		return err
	}

	env.log.Info("corners saved", "folder", store.Dir(), "shape", shape.String())
	return env.printJSON(map[string]interface{}{
		"folder":      store.Dir(),
		"shape":       shape,
		"ordered":     geometry.Order(cs, cfg.Ordering()),
		"output_path": store.Path(calibration.OutputFile),
	})
}

// captureOne reads a single frame from a file or camera.
func captureOne(ctx context.Context, spec string, mode camera.Mode) (image.Image, error) {
	src, err := camera.Open(spec, mode, false)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.CaptureFrame(ctx)
}

func runRealSize(_ context.Context, env *cliEnv, args []string) error {
	fs, common := newFlagSet("real-size")
	folder := fs.String("folder", "", "parameter folder, created if missing (required)")
	length := fs.Int("length", 0, "physical length of the region along x in mm (required)")
	width := fs.Int("width", 0, "physical width of the region along y in mm (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *folder == "" {
		return faults.Invalid("-folder is required")
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	store, err := calibration.OpenFolder(cfg.CalibrationRoot, *folder, true, nil)
	if err != nil {
		return err
	}
	rs := scale.RealSize{LengthMM: *length, WidthMM: *width}
	if err := store.SaveRealSize(rs); err != nil {
		return err
	}
	env.log.Info("real size saved", "folder", store.Dir(), "real_size", rs.String())

	if _, shape, err := store.LoadPoints(); err == nil {
		if m := scale.AspectMismatch(shape, rs); m > cfg.AspectTolerance {
			env.log.Warn("real size aspect does not match the rectified frame",
				"shape", shape.String(),
				"real_size", rs.String(),
				"mismatch", m)
		}
	}
	return nil
}

func runTemplate(_ context.Context, env *cliEnv, args []string) error {
	fs, common := newFlagSet("template")
	folder := fs.String("folder", "", "parameter folder (required)")
	region := fs.String("region", "", `template region in rectified pixels as "x1,y1,x2,y2" (required)`)
	source := fs.String("source", "", "rectified image to cut from (default: the folder's output.jpg)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *folder == "" || *region == "" {
		return faults.Invalid("-folder and -region are required")
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	store, err := calibration.OpenFolder(cfg.CalibrationRoot, *folder, false, nil)
	if err != nil {
		return err
	}
	rect, err := imaging.ParseRegion(*region)
	if err != nil {
		return err
	}
	path := *source
	if path == "" {
		path = store.Path(calibration.OutputFile)
	}
	rectified, err := imaging.Open(path)
	if err != nil {
		return err
	}
	tmpl, err := store.CaptureTemplate(rectified, rect)
	if err != nil {
		return err
	}
	env.log.Info("template saved",
		"path", store.Path(calibration.TemplateFile),
		"width", tmpl.Bounds().Dx(),
		"height", tmpl.Bounds().Dy())
	return nil
}

func runFolders(_ context.Context, env *cliEnv, args []string) error {
	fs, common := newFlagSet("folders")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	folders, err := calibration.List(cfg.CalibrationRoot)
	if err != nil {
		return err
	}
	if *asJSON {
		return env.printJSON(folders)
	}
	for _, f := range folders {
		status := "incomplete"
		if f.Complete() {
			status = "ready"
		}
		fmt.Fprintf(env.stdout, "%-24s %-10s points=%t real_size=%t template=%t\n",
			f.Name, status, f.HasPoints, f.HasRealSize, f.HasTemplate)
	}
	return nil
}

func runGrid(_ context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("grid", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	in := fs.String("in", "", "input image (required)")
	out := fs.String("out", "", "output image (required)")
	spacing := fs.Int("spacing", 50, "grid spacing in pixels")
	gridColor := fs.String("color", "#FF000080", "grid colour as #RRGGBB or #RRGGBBAA")
	labels := fs.Bool("labels", true, "label the grid lines with coordinates")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return faults.Invalid("-in and -out are required")
	}

	lineColor, err := imaging.ParseColor(*gridColor)
	if err != nil {
		return err
	}
	img, err := imaging.Open(*in)
	if err != nil {
		return err
	}
	grid, err := imaging.GridOverlay(img, *spacing, *labels, lineColor)
	if err != nil {
		return err
	}
	if err := imaging.Save(*out, grid); err != nil {
		return err
	}
	env.log.Info("grid written", "path", *out)
	return nil
}

func runSuggest(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	frame := fs.String("frame", "", `frame: an image file, "device" or "device:N" (required)`)
	mode := fs.String("mode", "high_res", "camera mode when capturing from a device")
	minArea := fs.Int("min-area", detection.DefaultMinRegionArea, "smallest enclosed area in square pixels")
	minSupport := fs.Float64("min-support", 0.8, "fraction of each side that must lie on edges")
	maxResults := fs.Int("max", 5, "maximum number of proposals")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *frame == "" {
		return faults.Invalid("-frame is required")
	}
	m, err := camera.ParseMode(*mode)
	if err != nil {
		return err
	}

	img, err := captureOne(ctx, *frame, m)
	if err != nil {
		return err
	}
	candidates := detection.SuggestRegions(img, detection.RegionOptions{
		MinArea:    *minArea,
		MinSupport: *minSupport,
		MaxResults: *maxResults,
	})
	for _, c := range candidates {
		cs := c.Corners
		fmt.Fprintf(env.stdout, "%d,%d;%d,%d;%d,%d;%d,%d\tarea=%.0f\tsupport=%.2f\n",
			cs[0].X, cs[0].Y, cs[1].X, cs[1].Y, cs[2].X, cs[2].Y, cs[3].X, cs[3].Y, c.Area, c.Support)
	}
	if len(candidates) == 0 {
		env.log.Warn("no outline found", "frame", *frame)
	}
	return nil
}

func runModes(_ context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("modes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	for i, m := range camera.Modes() {
		fmt.Fprintf(env.stdout, "%d  %-10s %dx%d @ %.2f fps  log: %s\n",
			i, m.Name, m.Width, m.Height, m.FPS, pipeline.TimingLogName(camera.Mode(i)))
	}
	return nil
}

// runConfig prints the effective configuration (file, environment and
// -root applied). With -write it saves it to the -config path, so a fresh
// install can start from a complete file.
func runConfig(_ context.Context, env *cliEnv, args []string) error {
	fs, common := newFlagSet("config")
	write := fs.Bool("write", false, "save the effective configuration to the -config file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *write {
		if err := cfg.Save(common.configPath); err != nil {
			return err
		}
		env.log.Info("config written", "path", common.configPath)
	}
	return env.printJSON(cfg)
}
