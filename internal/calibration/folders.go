package calibration

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/positioning-tools/internal/faults"
	"github.com/ironsheep/positioning-tools/internal/imaging"
)

// Folder describes one parameter folder under a root directory.
type Folder struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	HasPoints   bool   `json:"has_points"`
	HasRealSize bool   `json:"has_real_size"`
	HasTemplate bool   `json:"has_template"`
}

// Complete reports whether every file detection needs is present.
func (f Folder) Complete() bool {
	return f.HasPoints && f.HasRealSize && f.HasTemplate
}

// List returns the parameter folders directly under root, sorted by name.
// Hidden directories are skipped. A missing root yields an empty list.
func List(root string) ([]Folder, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Folder{}, nil
		}
		return nil, faults.Resource(err, "failed to list %s", root)
	}

	folders := make([]Folder, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(root, e.Name())
		folders = append(folders, Folder{
			Name:        e.Name(),
			Path:        path,
			HasPoints:   fileExists(filepath.Join(path, PointsFile)),
			HasRealSize: fileExists(filepath.Join(path, RealSizeFile)),
			HasTemplate: fileExists(filepath.Join(path, TemplateFile)),
		})
	}
	sort.Slice(folders, func(i, j int) bool {
		return folders[i].Name < folders[j].Name
	})
	return folders, nil
}

// Create makes a new parameter folder named name under root and returns a
// store for it. An existing folder is reused.
func Create(root, name string, cache *imaging.ImageCache) (*Store, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, faults.Invalid("invalid parameter folder name %q", name)
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, faults.Resource(err, "failed to create %s", dir)
	}
	return NewStore(dir, cache), nil
}

// OpenFolder returns a store for folder, resolved against root unless it is
// absolute. A missing folder is an ErrResource unless create is set, in
// which case it is created.
func OpenFolder(root, folder string, create bool, cache *imaging.ImageCache) (*Store, error) {
	if folder == "" {
		return nil, faults.Invalid("folder is required")
	}
	dir := folder
	if !filepath.IsAbs(folder) {
		dir = filepath.Join(root, folder)
	}
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return nil, faults.Invalid("parameter folder %s is not a directory", dir)
		}
		return NewStore(dir, cache), nil
	}
	if !create {
		return nil, faults.Resource(nil, "parameter folder %s does not exist", dir)
	}
	if filepath.IsAbs(folder) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, faults.Resource(err, "failed to create %s", dir)
		}
		return NewStore(dir, cache), nil
	}
	return Create(root, folder, cache)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
