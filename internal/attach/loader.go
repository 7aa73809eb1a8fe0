// Package attach reads user-picked files into memory for upload.
package attach

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/nhle/relaymail/internal/model"
)

// MaxFileSize is the largest single file the loader accepts.
const MaxFileSize = 25 << 20

// ErrNotRegular is returned for directories and other non-regular files.
var ErrNotRegular = errors.New("not a regular file")

// Loader reads files from a filesystem.
type Loader struct {
	fs afero.Fs
}

// NewLoader returns a Loader over fs. Pass afero.NewOsFs() for the real
// filesystem.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// Load reads one file. The display name is the base name of path.
func (l *Loader) Load(path string) (model.File, error) {
	path = model.ExpandHome(strings.TrimSpace(path))
	if path == "" {
		return model.File{}, errors.New("empty path")
	}

	info, err := l.fs.Stat(path)
	if err != nil {
		return model.File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return model.File{}, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	if info.Size() > MaxFileSize {
		return model.File{}, fmt.Errorf("%s: file is %d bytes, limit is %d", path, info.Size(), MaxFileSize)
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return model.File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return model.File{Name: filepath.Base(path), Data: data}, nil
}

// LoadAll reads every path in order. It stops at the first failure so a
// selection is either loaded whole or not at all.
func (l *Loader) LoadAll(paths []string) ([]model.File, error) {
	files := make([]model.File, 0, len(paths))
	for _, p := range paths {
		f, err := l.Load(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// SplitPaths splits a comma-separated list, dropping blank entries.
func SplitPaths(list string) []string {
	var paths []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
