package store

import (
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

// Writer commits an Editor's pending edits to the backend it was read from.
type Writer interface {
	Commit() (*Result, error)
}

// Result describes what a commit produced.
type Result struct {
	// OutputPath is the archive file or directory root that was written.
	// Empty when an archive was rendered to memory only.
	OutputPath string
	// Bytes holds the rendered archive. Nil for directory commits.
	Bytes []byte
	// Digest is the sha256 of Bytes.
	Digest string
	// OverridesPath is the side-file a directory commit emitted.
	OverridesPath string
	// Changed lists the members or files that were written or removed.
	Changed []string
}

// stagedUnit is a unit manifest with its pending edits applied.
type stagedUnit struct {
	logicalPath string
	unit        *manifest.Unit
}

// stageUnits applies the pending unit edits to every unit r can read. A key
// naming a readable unit's logical path edits that unit only; any other key
// is taken as a declared unit name and edits every unit declaring it, with
// path-keyed fields winning. Keys that match nothing are returned as
// unmatched.
func stageUnits(r Reader, edits *Edits) (staged []stagedUnit, unmatched []string, err error) {
	if len(edits.Units) == 0 {
		return nil, nil, nil
	}
	entries, err := ReadAllUnitManifests(r)
	if err != nil {
		return nil, nil, err
	}

	byPath := make(map[string]bool, len(entries))
	for _, entry := range entries {
		byPath[entry.LogicalPath] = true
	}

	matched := make(map[string]bool)
	for _, entry := range entries {
		var fields map[string]interface{}
		name := entry.Manifest.Name
		if nameFields, ok := edits.Units[name]; ok && !byPath[name] {
			fields = mergeFields(fields, nameFields)
			matched[name] = true
		}
		if pathFields, ok := edits.Units[entry.LogicalPath]; ok {
			fields = mergeFields(fields, pathFields)
			matched[entry.LogicalPath] = true
		}
		if fields == nil {
			continue
		}
		u, err := applyUnitEdits(entry.Manifest, fields)
		if err != nil {
			return nil, nil, err
		}
		staged = append(staged, stagedUnit{logicalPath: entry.LogicalPath, unit: u})
	}

	for _, key := range sortedUnitKeys(edits.Units) {
		if !matched[key] {
			unmatched = append(unmatched, key)
		}
	}
	return staged, unmatched, nil
}

func mergeFields(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func applyUnitEdits(u *manifest.Unit, fields map[string]interface{}) (*manifest.Unit, error) {
	c := u.Clone()
	if err := c.Apply(fields); err != nil {
		return nil, err
	}
	return c, nil
}

func sortedUnitKeys(units map[string]map[string]interface{}) []string {
	keys := make([]string, 0, len(units))
	for key := range units {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// writeFile writes data to p on fsys, creating parent directories.
func writeFile(fsys afero.Fs, p string, data []byte) error {
	if err := fsys.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return manifest.NewError(manifest.KindWriteIO, p, err)
	}
	if err := afero.WriteFile(fsys, p, data, 0o644); err != nil {
		return manifest.NewError(manifest.KindWriteIO, p, err)
	}
	return nil
}

// replaceFile writes data to a temp file beside p and renames it over p, so
// a failed write leaves any existing file at p untouched.
func replaceFile(fsys afero.Fs, p string, data []byte) error {
	dir := filepath.Dir(p)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return manifest.NewError(manifest.KindWriteIO, p, err)
	}
	tmp, err := afero.TempFile(fsys, dir, "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return manifest.NewError(manifest.KindWriteIO, p, err)
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = fsys.Chmod(tmpName, 0o644)
	}
	if err == nil {
		err = fsys.Rename(tmpName, p)
	}
	if err != nil {
		_ = fsys.Remove(tmpName)
		return manifest.NewError(manifest.KindWriteIO, p, err)
	}
	return nil
}
