package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
	"github.com/nightconcept/extmanifest/internal/core/overrides"
)

// DirectoryWriter writes pending edits back into a directory tree in place.
type DirectoryWriter struct {
	reader *DirectoryReader
	edits  *Edits
	env    Env
}

func newDirectoryWriter(r *DirectoryReader, edits *Edits) *DirectoryWriter {
	return &DirectoryWriter{reader: r, edits: edits, env: r.env}
}

// Commit applies the edits in order: binary-entry sweep, unit manifests,
// top-level manifests, raw files. It always emits an overrides file under
// the temp directory.
func (w *DirectoryWriter) Commit() (*Result, error) {
	r := w.reader
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	res := &Result{OutputPath: r.root}

	touched, err := w.synchronizeBinaries()
	if err != nil {
		return nil, err
	}

	written, err := w.writeUnits()
	if err != nil {
		return nil, err
	}
	res.Changed = append(res.Changed, written...)

	written, err = w.writeManifests(touched)
	if err != nil {
		return nil, err
	}
	res.Changed = append(res.Changed, written...)

	written, err = w.writeFiles()
	if err != nil {
		return nil, err
	}
	res.Changed = append(res.Changed, written...)

	res.OverridesPath, err = overrides.Save(w.env.Fs, w.env.TempDir(), w.env.Now(), overrides.New(w.edits.Manifest))
	if err != nil {
		return nil, err
	}
	w.env.Log.WithField("path", res.OverridesPath).Debug("Wrote overrides file")

	r.invalidate()
	sort.Strings(res.Changed)
	return res, nil
}

// synchronizeBinaries runs the sweep over every located manifest and returns
// the manifests it changed, keyed by path.
func (w *DirectoryWriter) synchronizeBinaries() (map[string]*manifest.Manifest, error) {
	touched := make(map[string]*manifest.Manifest)
	if !w.edits.SyncBinaries {
		return touched, nil
	}
	files, err := w.reader.ReadAllTopLevelManifests()
	if err != nil {
		return nil, err
	}
	for _, mf := range files {
		c := mf.Manifest.Clone()
		changed, err := SynchronizeBinaryEntries(w.env.Fs, filepath.Dir(mf.Path), c, w.env.Log.WithField("manifest", mf.Path))
		if err != nil {
			return nil, err
		}
		if changed {
			touched[mf.Path] = c
		}
	}
	return touched, nil
}

func (w *DirectoryWriter) writeUnits() ([]string, error) {
	units, unmatched, err := stageUnits(w.reader, w.edits)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, su := range units {
		p, err := w.reader.UnitManifestPath(su.logicalPath)
		if err != nil {
			return nil, err
		}
		if err := w.writeUnit(p, su.unit); err != nil {
			return nil, err
		}
		written = append(written, p)
	}
	for _, name := range unmatched {
		p, u, err := w.findUnitByName(name)
		if err != nil {
			return nil, err
		}
		u, err = applyUnitEdits(u, w.edits.Units[name])
		if err != nil {
			return nil, err
		}
		if err := w.writeUnit(p, u); err != nil {
			return nil, err
		}
		written = append(written, p)
	}
	return written, nil
}

func (w *DirectoryWriter) writeUnit(p string, u *manifest.Unit) error {
	data, err := u.Marshal()
	if err != nil {
		return manifest.NewError(manifest.KindWriteIO, p, err)
	}
	if err := writeFile(w.env.Fs, p, data); err != nil {
		return err
	}
	w.env.Log.WithField("path", p).Info("Updated unit manifest")
	return nil
}

var errFound = errors.New("found")

// findUnitByName walks the root for a unit manifest declaring name.
func (w *DirectoryWriter) findUnitByName(name string) (string, *manifest.Unit, error) {
	var (
		foundPath string
		foundUnit *manifest.Unit
	)
	err := afero.Walk(w.env.Fs, w.reader.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if base := info.Name(); p != w.reader.root && (base == "node_modules" || base == ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() != manifest.UnitManifestName {
			return nil
		}
		data, err := afero.ReadFile(w.env.Fs, p)
		if err != nil {
			return nil
		}
		u, err := manifest.ParseUnit(p, data)
		if err != nil || u.Name != name {
			return nil
		}
		foundPath, foundUnit = p, u
		return errFound
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", nil, manifest.NewError(manifest.KindUnitManifestNotFound, name, err)
	}
	if foundUnit == nil {
		return "", nil, manifest.Errorf(manifest.KindUnitManifestNotFound, name,
			"no unit manifest named %q under %s", name, w.reader.root)
	}
	w.env.Log.WithField("unit", name).WithField("path", foundPath).Debug("Found unit manifest by search")
	return foundPath, foundUnit, nil
}

// writeManifests writes the primary manifest when top-level or unit edits are
// pending, and every manifest the sweep changed. Pending top-level edits are
// applied to all of them.
func (w *DirectoryWriter) writeManifests(touched map[string]*manifest.Manifest) ([]string, error) {
	targets := make(map[string]*manifest.Manifest, len(touched)+1)
	for p, m := range touched {
		targets[p] = m
	}
	if len(w.edits.Manifest) > 0 {
		paths, err := w.reader.ManifestPaths()
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, manifest.Errorf(manifest.KindManifestNotFound, w.reader.root, "no manifest to write edits to")
		}
		if _, ok := targets[paths[0]]; !ok {
			m, err := w.reader.ReadTopLevelManifest()
			if err != nil {
				return nil, err
			}
			targets[paths[0]] = m.Clone()
		}
	}

	paths := make([]string, 0, len(targets))
	for p := range targets {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		m := targets[p]
		if err := m.Apply(w.edits.Manifest); err != nil {
			return nil, err
		}
		data, err := m.Marshal()
		if err != nil {
			return nil, manifest.NewError(manifest.KindWriteIO, p, err)
		}
		if err := writeFile(w.env.Fs, p, data); err != nil {
			return nil, err
		}
		w.env.Log.WithField("path", p).Info("Updated manifest")
	}
	return paths, nil
}

// writeFiles applies raw file edits relative to the root.
func (w *DirectoryWriter) writeFiles() ([]string, error) {
	names := make([]string, 0, len(w.edits.Files))
	for name := range w.edits.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		fe := w.edits.Files[name]
		p := filepath.Join(w.reader.root, filepath.FromSlash(name))
		if fe.Remove {
			if err := w.env.Fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, manifest.NewError(manifest.KindWriteIO, p, err)
			}
			written = append(written, p)
			continue
		}
		if err := writeFile(w.env.Fs, p, fe.Data); err != nil {
			return nil, err
		}
		written = append(written, p)
	}
	return written, nil
}
