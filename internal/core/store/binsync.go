package store

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
	"github.com/nightconcept/extmanifest/internal/core/pkgpath"
)

type scanRoot struct {
	dir         string
	path        string
	packagePath string
}

type entryKey struct {
	path        string
	packagePath string
}

// SynchronizeBinaryEntries rebuilds the binary file entries of m, whose file
// paths are relative to root. Existing entries typed BinaryContentType are
// dropped; every extensionless file found under the directories named by the
// remaining entries is added back, carrying the directory's packagePath. It
// reports whether the set of binary entries changed.
func SynchronizeBinaryEntries(fsys afero.Fs, root string, m *manifest.Manifest, log logrus.FieldLogger) (bool, error) {
	previous := make(map[entryKey]bool)
	seen := make(map[entryKey]bool)
	var roots []scanRoot

	for _, f := range m.Files {
		key := entryKey{pkgpath.Normalize(f.Path), pkgpath.Normalize(f.PackagePath)}
		if f.ContentType == manifest.BinaryContentType {
			previous[key] = true
			continue
		}
		seen[key] = true
		dir := filepath.Join(root, filepath.FromSlash(key.path))
		if ok, _ := afero.IsDir(fsys, dir); ok {
			roots = append(roots, scanRoot{dir: dir, path: key.path, packagePath: key.packagePath})
		}
	}

	var added []manifest.FileEntry
	current := make(map[entryKey]bool)
	for _, sr := range roots {
		err := afero.Walk(fsys, sr.dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !isBinaryName(info.Name()) {
				return nil
			}
			rel, err := filepath.Rel(sr.dir, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			key := entryKey{path: path.Join(sr.path, rel)}
			if sr.packagePath != "" {
				key.packagePath = path.Join(sr.packagePath, rel)
			}
			if seen[key] {
				return nil
			}
			seen[key] = true
			current[key] = true
			added = append(added, manifest.FileEntry{
				Path:        key.path,
				PackagePath: key.packagePath,
				ContentType: manifest.BinaryContentType,
			})
			return nil
		})
		if err != nil {
			return false, manifest.NewError(manifest.KindWriteIO, sr.dir, err)
		}
	}

	if sameKeys(previous, current) {
		log.WithField("binaries", len(current)).Debug("Binary file entries already in sync")
		return false, nil
	}
	log.WithFields(logrus.Fields{"before": len(previous), "after": len(current)}).Info("Synchronized binary file entries")
	err := m.ReplaceFiles(func(f manifest.FileEntry) bool {
		return f.ContentType != manifest.BinaryContentType
	}, added)
	return true, err
}

// isBinaryName reports whether name has no extension or ends in a bare dot.
func isBinaryName(name string) bool {
	return filepath.Ext(name) == "" || strings.HasSuffix(name, ".")
}

func sameKeys(a, b map[entryKey]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
