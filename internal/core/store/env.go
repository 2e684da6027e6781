package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// GlobFunc returns the paths under root matching any of patterns, in
// pattern order and without duplicates.
type GlobFunc func(root string, patterns []string) ([]string, error)

// Env carries the capabilities readers and writers consume. Zero fields are
// filled with OS-backed defaults.
type Env struct {
	Fs      afero.Fs
	Glob    GlobFunc
	Log     logrus.FieldLogger
	TempDir func() string
	Now     func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Fs == nil {
		e.Fs = afero.NewOsFs()
	}
	if e.Glob == nil {
		e.Glob = DefaultGlob(e.Fs)
	}
	if e.Log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		e.Log = logger
	}
	if e.TempDir == nil {
		e.TempDir = os.TempDir
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

// DefaultGlob matches doublestar patterns relative to root on fsys.
func DefaultGlob(fsys afero.Fs) GlobFunc {
	return func(root string, patterns []string) ([]string, error) {
		rooted := afero.NewIOFS(afero.NewBasePathFs(fsys, root))

		var matches []string
		seen := make(map[string]bool)
		for _, pattern := range patterns {
			pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
			found, err := doublestar.Glob(rooted, pattern)
			if err != nil {
				return nil, err
			}
			for _, m := range found {
				abs := filepath.Join(root, filepath.FromSlash(m))
				if seen[abs] {
					continue
				}
				seen[abs] = true
				matches = append(matches, abs)
			}
		}
		return matches, nil
	}
}
