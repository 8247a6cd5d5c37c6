package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/logging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `positioning - fixed-camera target positioning

Usage: positioning <command> [options]

Commands:
  serve        Run the MCP server on stdin/stdout
  detect       Locate the template in frames from a camera, file or directory
  calibrate    Rectify a frame with four corners and save points.txt
  real-size    Save the physical size of the rectified region in mm
  template     Cut the template out of the rectified reference frame
  folders      List parameter folders under the calibration root
  grid         Draw a coordinate grid over an image to help pick corners
  suggest      Propose corner sets from high-contrast outlines in a frame
  modes        List the camera modes
  config       Print the effective configuration, -write saves it

Options:
  --version, -v    Print version information
  --help, -h       Print this help message

Run "positioning <command> -h" for the options of a command.

Environment variables:
  POSITIONING_LOG_LEVEL=debug     Log level (debug, info, warn, error)
  POSITIONING_LOG_FORMAT=json     Log format (text, json)
  POSITIONING_CALIBRATION_ROOT    Directory holding parameter folders
  POSITIONING_THRESHOLD, POSITIONING_OVERLAP, POSITIONING_WORKERS,
  POSITIONING_CORNER_ORDERING, POSITIONING_CAMERA_MODE,
  POSITIONING_MATCH_ENGINE,
  POSITIONING_SNAPSHOT_DIR        Override the config file
`

type command func(ctx context.Context, env *cliEnv, args []string) error

var commands = map[string]command{
	"serve":     runServe,
	"detect":    runDetect,
	"calibrate": runCalibrate,
	"real-size": runRealSize,
	"template":  runTemplate,
	"folders":   runFolders,
	"grid":      runGrid,
	"suggest":   runSuggest,
	"modes":     runModes,
	"config":    runConfig,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	switch args[0] {
	case "--version", "-v", "version":
		fmt.Printf("positioning %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return 0
	case "--help", "-h", "help":
		fmt.Print(usage)
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &cliEnv{log: logging.FromEnv(), stdout: os.Stdout}
	if err := cmd(ctx, env, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		env.log.Error("command failed", "command", args[0], "kind", faults.Kind(err), "error", err)
		if errors.Is(err, faults.ErrInvalidInput) {
			return 2
		}
		return 1
	}
	return 0
}
