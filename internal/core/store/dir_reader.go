package store

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
	"github.com/nightconcept/extmanifest/internal/core/pathsafe"
	"github.com/nightconcept/extmanifest/internal/core/pkgpath"
)

// DefaultManifestGlobs locate the top-level manifest when no pattern is given.
var DefaultManifestGlobs = []string{"vss-extension.json"}

// ConventionalManifestNames are checked directly under the root when no glob
// pattern matches.
var ConventionalManifestNames = []string{"vss-extension.json", "azure-devops-extension.json", "extension.json"}

// DirectoryReader reads manifests from a directory tree.
type DirectoryReader struct {
	env      Env
	root     string
	patterns []string

	// Populated on first use, cleared by Close.
	manifestPaths []string
	located       bool
	parsed        map[string]*manifest.Manifest
	index         *pkgpath.Index

	closed bool
}

// ManifestFile pairs a parsed top-level manifest with its location.
type ManifestFile struct {
	Path     string
	Manifest *manifest.Manifest
}

// OpenDirectory opens root. patterns are glob patterns relative to root that
// locate the top-level manifest; nil means DefaultManifestGlobs.
func OpenDirectory(root string, patterns []string, env Env) (*DirectoryReader, error) {
	env = env.withDefaults()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, manifest.NewError(manifest.KindManifestNotFound, root, err)
	}
	isDir, err := afero.DirExists(env.Fs, abs)
	if err != nil || !isDir {
		return nil, manifest.Errorf(manifest.KindManifestNotFound, abs, "not a directory")
	}
	if len(patterns) == 0 {
		patterns = DefaultManifestGlobs
	}
	return &DirectoryReader{
		env:      env,
		root:     abs,
		patterns: append([]string(nil), patterns...),
	}, nil
}

// Kind reports KindDirectory.
func (r *DirectoryReader) Kind() Kind {
	return KindDirectory
}

// Root returns the absolute root folder.
func (r *DirectoryReader) Root() string {
	return r.root
}

// Patterns returns the glob patterns the reader was opened with.
func (r *DirectoryReader) Patterns() []string {
	return append([]string(nil), r.patterns...)
}

// ManifestPaths returns every located top-level manifest; the first is primary.
func (r *DirectoryReader) ManifestPaths() ([]string, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if r.located {
		return append([]string(nil), r.manifestPaths...), nil
	}

	matches, err := r.env.Glob(r.root, r.patterns)
	if err != nil {
		return nil, manifest.NewError(manifest.KindManifestNotFound, r.root, err)
	}
	var paths []string
	for _, m := range matches {
		if ok, _ := afero.IsDir(r.env.Fs, m); ok {
			continue
		}
		paths = append(paths, m)
	}

	if len(paths) == 0 {
		for _, name := range ConventionalManifestNames {
			candidate := filepath.Join(r.root, name)
			if ok, _ := afero.Exists(r.env.Fs, candidate); ok {
				r.env.Log.WithField("path", candidate).Debug("No glob match; using conventional manifest name")
				paths = append(paths, candidate)
				break
			}
		}
	}

	r.manifestPaths = paths
	r.located = true
	return append([]string(nil), paths...), nil
}

// ReadTopLevelManifest implements Reader and returns the primary manifest.
func (r *DirectoryReader) ReadTopLevelManifest() (*manifest.Manifest, error) {
	paths, err := r.ManifestPaths()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, manifest.Errorf(manifest.KindManifestNotFound, r.root,
			"no manifest matches %s", strings.Join(r.patterns, ", "))
	}
	return r.readManifestAt(paths[0])
}

// ReadAllTopLevelManifests parses every located manifest.
func (r *DirectoryReader) ReadAllTopLevelManifests() ([]ManifestFile, error) {
	paths, err := r.ManifestPaths()
	if err != nil {
		return nil, err
	}
	files := make([]ManifestFile, 0, len(paths))
	for _, p := range paths {
		m, err := r.readManifestAt(p)
		if err != nil {
			return nil, err
		}
		files = append(files, ManifestFile{Path: p, Manifest: m})
	}
	return files, nil
}

func (r *DirectoryReader) readManifestAt(p string) (*manifest.Manifest, error) {
	if m, ok := r.parsed[p]; ok {
		return m, nil
	}
	data, err := afero.ReadFile(r.env.Fs, p)
	if err != nil {
		return nil, manifest.NewError(manifest.KindManifestNotFound, p, err)
	}
	m, err := manifest.Parse(p, data)
	if err != nil {
		return nil, err
	}
	if r.parsed == nil {
		r.parsed = make(map[string]*manifest.Manifest)
	}
	r.parsed[p] = m
	return m, nil
}

func (r *DirectoryReader) packageIndex() (*pkgpath.Index, error) {
	if r.index != nil {
		return r.index, nil
	}
	m, err := r.ReadTopLevelManifest()
	if err != nil {
		return nil, err
	}
	r.index = pkgpath.BuildIndex(m.Files)
	r.env.Log.WithField("mappings", r.index.Len()).Debug("Built package path index")
	return r.index, nil
}

// UnitManifestPath returns the absolute path of the unit manifest for
// logicalPath after package-path resolution.
func (r *DirectoryReader) UnitManifestPath(logicalPath string) (string, error) {
	idx, err := r.packageIndex()
	if err != nil {
		return "", err
	}
	physical := idx.Resolve(logicalPath)
	rel, err := pathsafe.Clean(path.Join(pkgpath.Normalize(physical), manifest.UnitManifestName))
	if err != nil {
		return "", err
	}
	return filepath.Join(r.root, filepath.FromSlash(rel)), nil
}

// FindUnitPaths implements Reader.
func (r *DirectoryReader) FindUnitPaths() ([]string, error) {
	m, err := r.ReadTopLevelManifest()
	if err != nil {
		return nil, err
	}
	return findUnitPaths(m, func(logical string) bool {
		p, err := r.UnitManifestPath(logical)
		if err != nil {
			return false
		}
		ok, _ := afero.Exists(r.env.Fs, p)
		return ok
	}), nil
}

// ReadUnitManifest implements Reader.
func (r *DirectoryReader) ReadUnitManifest(logicalPath string) (*manifest.Unit, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	p, err := r.UnitManifestPath(logicalPath)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(r.env.Fs, p)
	if err != nil {
		return nil, manifest.NewError(manifest.KindUnitManifestNotFound, p, err)
	}
	r.env.Log.WithField("unit", logicalPath).WithField("path", p).Debug("Read unit manifest")
	return manifest.ParseUnit(p, data)
}

// Close drops every cache. Calling it again is a no-op.
func (r *DirectoryReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.manifestPaths = nil
	r.located = false
	r.parsed = nil
	r.index = nil
	return nil
}

// invalidate forgets parsed manifests after the writer rewrote them.
func (r *DirectoryReader) invalidate() {
	r.parsed = nil
	r.index = nil
}

func (r *DirectoryReader) checkOpen() error {
	if r.closed {
		return manifest.NewError(manifest.KindManifestNotFound, r.root, fs.ErrClosed)
	}
	return nil
}
