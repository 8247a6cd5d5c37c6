// Package config holds runtime settings for detection and the capture loop.
//
// Settings come from defaults, then an optional JSON file, then
// POSITIONING_* environment variables, then command-line flags applied by
// the caller. Validate runs after each layer.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ironsheep/positioning-tools/internal/camera"
	"github.com/ironsheep/positioning-tools/internal/detection"
	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/imaging"
	"github.com/ironsheep/positioning-tools/internal/scale"
)

// Config holds runtime configuration for detection and the capture loop.
type Config struct {
	// Detection parameters
	Threshold      float64 `json:"threshold"`
	Overlap        float64 `json:"overlap"`
	CornerOrdering string  `json:"corner_ordering"`
	Workers        int     `json:"workers"`
	MatchEngine    string  `json:"match_engine"`

	// Capture loop
	CameraMode         string `json:"camera_mode"`
	Pipelined          bool   `json:"pipelined"`
	MaxCaptureFailures int    `json:"max_capture_failures"`
	RetryBackoff       string `json:"retry_backoff"`
	TimingLog          bool   `json:"timing_log"`

	// Presentation
	BoxColor      string `json:"box_color"`
	CenterColor   string `json:"center_color"`
	SnapshotDir   string `json:"snapshot_dir"`
	SnapshotEvery int    `json:"snapshot_every"`

	CalibrationRoot string  `json:"calibration_root"`
	AspectTolerance float64 `json:"aspect_tolerance"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Threshold:          detection.DefaultThreshold,
		Overlap:            detection.DefaultOverlap,
		CornerOrdering:     string(geometry.OrderingYX),
		Workers:            0,
		MatchEngine:        string(detection.EngineGo),
		CameraMode:         camera.HighRes.String(),
		Pipelined:          false,
		MaxCaptureFailures: 0,
		RetryBackoff:       "500ms",
		TimingLog:          true,
		BoxColor:           "#FF0000",
		CenterColor:        "#0000FF",
		SnapshotDir:        "",
		SnapshotEvery:      0,
		CalibrationRoot:    ".",
		AspectTolerance:    scale.DefaultAspectTolerance,
	}
}

// Validate clamps numeric values to safe ranges and rejects settings that
// cannot be interpreted.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = detection.DefaultThreshold
	}
	if c.Overlap <= 0 || c.Overlap > 1 {
		c.Overlap = detection.DefaultOverlap
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.MaxCaptureFailures < 0 {
		c.MaxCaptureFailures = 0
	}
	if c.SnapshotEvery < 0 {
		c.SnapshotEvery = 0
	}
	if c.AspectTolerance <= 0 {
		c.AspectTolerance = scale.DefaultAspectTolerance
	}
	if c.CalibrationRoot == "" {
		c.CalibrationRoot = "."
	}

	if _, err := geometry.ParseOrdering(c.CornerOrdering); err != nil {
		return err
	}
	if _, err := detection.ParseEngine(c.MatchEngine); err != nil {
		return err
	}
	if _, err := camera.ParseMode(c.CameraMode); err != nil {
		return err
	}
	if _, err := c.Backoff(); err != nil {
		return err
	}
	for _, hex := range []string{c.BoxColor, c.CenterColor} {
		if _, err := imaging.ParseColor(hex); err != nil {
			return err
		}
	}
	return nil
}

// DetectionOptions returns the matcher options.
func (c *Config) DetectionOptions() detection.Options {
	engine, err := detection.ParseEngine(c.MatchEngine)
	if err != nil {
		engine = detection.EngineGo
	}
	return detection.Options{Threshold: c.Threshold, Overlap: c.Overlap, Workers: c.Workers, Engine: engine}
}

// Ordering returns the parsed corner ordering, falling back to y-then-x.
func (c *Config) Ordering() geometry.Ordering {
	o, err := geometry.ParseOrdering(c.CornerOrdering)
	if err != nil {
		return geometry.OrderingYX
	}
	return o
}

// Mode returns the parsed camera mode, falling back to high_res.
func (c *Config) Mode() camera.Mode {
	m, err := camera.ParseMode(c.CameraMode)
	if err != nil {
		return camera.HighRes
	}
	return m
}

// Backoff parses RetryBackoff. An empty value means no delay.
func (c *Config) Backoff() (time.Duration, error) {
	if c.RetryBackoff == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RetryBackoff)
	if err != nil || d < 0 {
		return 0, faults.Invalid("invalid retry_backoff %q", c.RetryBackoff)
	}
	return d, nil
}

// FolderPath resolves a parameter folder name against CalibrationRoot.
// Absolute paths are used as given.
func (c *Config) FolderPath(folder string) string {
	if filepath.IsAbs(folder) {
		return folder
	}
	return filepath.Join(c.CalibrationRoot, folder)
}

// Load reads configuration from the given JSON file path. If the file does
// not exist it returns DefaultConfig(). On a decode error it returns the
// defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, faults.Resource(err, "failed to open config %s", path)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), faults.Invalid("config %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(c *Config, v string) error
}{
	{"POSITIONING_THRESHOLD", func(c *Config, v string) error { return parseFloat(v, &c.Threshold) }},
	{"POSITIONING_OVERLAP", func(c *Config, v string) error { return parseFloat(v, &c.Overlap) }},
	{"POSITIONING_WORKERS", func(c *Config, v string) error { return parseInt(v, &c.Workers) }},
	{"POSITIONING_MATCH_ENGINE", func(c *Config, v string) error { c.MatchEngine = v; return nil }},
	{"POSITIONING_CORNER_ORDERING", func(c *Config, v string) error { c.CornerOrdering = v; return nil }},
	{"POSITIONING_CAMERA_MODE", func(c *Config, v string) error { c.CameraMode = v; return nil }},
	{"POSITIONING_CALIBRATION_ROOT", func(c *Config, v string) error { c.CalibrationRoot = v; return nil }},
	{"POSITIONING_SNAPSHOT_DIR", func(c *Config, v string) error { c.SnapshotDir = v; return nil }},
}

// ApplyEnv overrides fields from POSITIONING_* environment variables and
// validates the result.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(c, v); err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
	}
	return c.Validate()
}

func parseFloat(s string, dst *float64) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return faults.Invalid("not a number: %q", s)
	}
	*dst = v
	return nil
}

func parseInt(s string, dst *int) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return faults.Invalid("not an integer: %q", s)
	}
	*dst = v
	return nil
}

// Save writes the configuration to path as indented JSON, replacing any
// existing file atomically.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return faults.Resource(err, "failed to save config %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return faults.Resource(err, "failed to save config %s", path)
	}
	if err := tmp.Close(); err != nil {
		return faults.Resource(err, "failed to save config %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return faults.Resource(err, "failed to save config %s", path)
	}
	return nil
}
