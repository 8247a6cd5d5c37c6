package calibration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/geometry"
	"github.com/ironsheep/positioning-tools/internal/scale"
)

// File names inside a parameter folder.
const (
	PointsFile   = "points.txt"
	RealSizeFile = "real_size.txt"
	TemplateFile = "template.jpg"
	OutputFile   = "output.jpg"
)

// ReadPoints parses a points file: four "x,y" corner lines followed by one
// "h,w,c" shape line. Trailing blank lines are ignored; anything else after
// the shape line is rejected.
func ReadPoints(r io.Reader) (geometry.CornerSet, geometry.Shape, error) {
	lines, err := readLines(r, PointsFile)
	if err != nil {
		return geometry.CornerSet{}, geometry.Shape{}, err
	}
	if len(lines) < 5 {
		return geometry.CornerSet{}, geometry.Shape{}, faults.Invalid("%s: four corners and a shape line required, got %d lines", PointsFile, len(lines))
	}
	if len(lines) > 5 {
		return geometry.CornerSet{}, geometry.Shape{}, faults.Invalid("%s line %d: unexpected content %q", PointsFile, 6, lines[5])
	}

	var cs geometry.CornerSet
	for i := 0; i < 4; i++ {
		p, err := geometry.ParsePoint(lines[i])
		if err != nil {
			return geometry.CornerSet{}, geometry.Shape{}, fmt.Errorf("%s line %d: %w", PointsFile, i+1, err)
		}
		cs[i] = p
	}

	vals, err := parseInts(lines[4], 3)
	if err != nil {
		return geometry.CornerSet{}, geometry.Shape{}, faults.Invalid("%s line 5: shape %q: %v", PointsFile, lines[4], err)
	}
	shape := geometry.Shape{Height: vals[0], Width: vals[1], Channels: vals[2]}
	if err := shape.Validate(); err != nil {
		return geometry.CornerSet{}, geometry.Shape{}, fmt.Errorf("%s line 5: %w", PointsFile, err)
	}
	return cs, shape, nil
}

// WritePoints writes cs and shape in the format ReadPoints accepts. Corners
// are written in the order given.
func WritePoints(w io.Writer, cs geometry.CornerSet, shape geometry.Shape) error {
	bw := bufio.NewWriter(w)
	for _, p := range cs {
		fmt.Fprintf(bw, "%s\n", p)
	}
	fmt.Fprintf(bw, "%s\n", shape)
	return bw.Flush()
}

// ReadRealSize parses a real-size file: a single "length,width" line in
// millimetres.
func ReadRealSize(r io.Reader) (scale.RealSize, error) {
	lines, err := readLines(r, RealSizeFile)
	if err != nil {
		return scale.RealSize{}, err
	}
	if len(lines) == 0 {
		return scale.RealSize{}, faults.Invalid("%s: file is empty", RealSizeFile)
	}
	if len(lines) > 1 {
		return scale.RealSize{}, faults.Invalid("%s line 2: unexpected content %q", RealSizeFile, lines[1])
	}
	vals, err := parseInts(lines[0], 2)
	if err != nil {
		return scale.RealSize{}, faults.Invalid("%s line 1: %q: %v", RealSizeFile, lines[0], err)
	}
	rs := scale.RealSize{LengthMM: vals[0], WidthMM: vals[1]}
	if err := rs.Validate(); err != nil {
		return scale.RealSize{}, fmt.Errorf("%s line 1: %w", RealSizeFile, err)
	}
	return rs, nil
}

// WriteRealSize writes rs in the format ReadRealSize accepts.
func WriteRealSize(w io.Writer, rs scale.RealSize) error {
	_, err := fmt.Fprintf(w, "%s\n", rs)
	return err
}

// readLines returns the trimmed lines of r with trailing blank lines dropped.
// A blank line before the last content line is kept so it is reported
// against its own line number.
func readLines(r io.Reader, name string) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, faults.Resource(err, "failed to read %s", name)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated integers, got %d fields", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// writeFileAtomic writes through fn into a temporary file next to path and
// renames it into place once fn and the close succeed.
func writeFileAtomic(path string, fn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return faults.Resource(err, "failed to create temporary file in %s", dir)
	}
	tmpName := tmp.Name()

	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return faults.Resource(err, "failed to write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return faults.Resource(err, "failed to flush %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return faults.Resource(err, "failed to replace %s", path)
	}
	return nil
}
