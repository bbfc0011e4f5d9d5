// Package discovery enumerates target images and resolves the source image.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrDirectoryNotFound reports a missing or unreadable target directory.
// The run must abort rather than proceed with an empty set.
var ErrDirectoryNotFound = errors.New("directory not found")

// ErrNoSource reports that no usable source image could be resolved.
var ErrNoSource = errors.New("no source image")

// imageExts is the case-insensitive extension allow-list.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// Target describes one discovered image. Read-only; one per file.
type Target struct {
	Path string
	Base string
	Stem string
	Ext  string
}

// NewTarget derives the name attributes from path.
func NewTarget(path string) Target {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return Target{
		Path: path,
		Base: base,
		Stem: strings.TrimSuffix(base, ext),
		Ext:  ext,
	}
}

// IsImage reports whether name carries an allow-listed extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Targets returns the images in dir in lexicographic order. A directory with
// no qualifying files yields an empty slice and no error; the caller decides
// that an empty batch is a failed run. A missing or unreadable directory
// wraps ErrDirectoryNotFound.
func Targets(dir string) ([]Target, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryNotFound, dir, err)
	}
	var targets []Target
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		targets = append(targets, NewTarget(filepath.Join(dir, entry.Name())))
	}
	return targets, nil
}

// Source resolves the source image. A file path is validated as-is. A
// directory picks the lexicographically first allow-listed image and returns
// the basenames of any ignored candidates so the caller can warn about them.
func Source(path string) (resolved string, ignored []string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrNoSource, path, err)
	}
	if !info.IsDir() {
		if !IsImage(path) {
			return "", nil, fmt.Errorf("%w: %s is not a supported image type", ErrNoSource, path)
		}
		return path, nil, nil
	}
	candidates, err := Targets(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNoSource, err)
	}
	if len(candidates) == 0 {
		return "", nil, fmt.Errorf("%w: no image files in %s", ErrNoSource, path)
	}
	for _, c := range candidates[1:] {
		ignored = append(ignored, c.Base)
	}
	return candidates[0].Path, ignored, nil
}
