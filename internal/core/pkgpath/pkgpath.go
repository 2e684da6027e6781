// Package pkgpath maps the logical path a unit is packaged under to the
// physical path its files live at before packaging.
package pkgpath

import (
	"strings"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

// Index maps logical names to physical paths. Entries keep the order of the
// manifest's files array; when several entries could apply, the first wins.
type Index struct {
	entries []entry
}

type entry struct {
	logical  string
	physical string
}

// BuildIndex collects every file entry whose packagePath differs from its
// path. A logical name that appears twice keeps its first mapping.
func BuildIndex(files []manifest.FileEntry) *Index {
	idx := &Index{}
	seen := make(map[string]bool)
	for _, f := range files {
		if f.PackagePath == "" {
			continue
		}
		logical := Normalize(f.PackagePath)
		physical := Normalize(f.Path)
		if logical == "" || logical == physical || seen[logical] {
			continue
		}
		seen[logical] = true
		idx.entries = append(idx.entries, entry{logical: logical, physical: physical})
	}
	return idx
}

// Len returns the number of mappings.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Lookup returns the physical path mapped to an exact logical name.
func (idx *Index) Lookup(logical string) (string, bool) {
	if idx == nil {
		return "", false
	}
	n := Normalize(logical)
	for _, e := range idx.entries {
		if e.logical == n {
			return e.physical, true
		}
	}
	return "", false
}

// Resolve returns the physical path for logicalPath. An exact match returns
// the mapped path, a separator-bounded prefix match swaps the prefix and keeps
// the remainder, and anything else is returned unchanged.
func (idx *Index) Resolve(logicalPath string) string {
	if idx.Len() == 0 {
		return logicalPath
	}
	if physical, ok := idx.Lookup(logicalPath); ok {
		return physical
	}

	n := Normalize(logicalPath)
	for _, e := range idx.entries {
		if strings.HasPrefix(n, e.logical+"/") {
			return e.physical + n[len(e.logical):]
		}
	}
	return logicalPath
}

// Normalize converts p to forward-slash form without a leading "./" or a
// trailing separator.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return strings.TrimRight(p, "/")
}
