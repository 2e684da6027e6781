// Package store reads, edits and writes extension manifests held either in a
// package archive or in a directory tree.
//
// A Reader is opened with OpenArchive or OpenDirectory, wrapped in an Editor
// that collects edits, and turned into the matching Writer with
// Editor.ToWriter. Readers, editors and writers are not safe for concurrent
// use; independent instances share no state.
package store

import (
	"errors"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
	"github.com/nightconcept/extmanifest/internal/core/pkgpath"
)

// Kind identifies the backend of a Reader.
type Kind string

const (
	KindArchive   Kind = "archive"
	KindDirectory Kind = "directory"
)

// Reader is the read side of a manifest store.
type Reader interface {
	// Kind reports the backend.
	Kind() Kind
	// ReadTopLevelManifest parses the package manifest once and caches it.
	ReadTopLevelManifest() (*manifest.Manifest, error)
	// FindUnitPaths lists the logical paths of the package's units.
	FindUnitPaths() ([]string, error)
	// ReadUnitManifest resolves logicalPath and parses the unit manifest there.
	ReadUnitManifest(logicalPath string) (*manifest.Unit, error)
	// Close releases owned resources. Calling it again is a no-op.
	Close() error
}

// UnitEntry pairs a unit manifest with the logical path it was read from.
type UnitEntry struct {
	LogicalPath string
	Manifest    *manifest.Unit
}

// Summary projects the identity fields of a top-level manifest.
type Summary struct {
	Publisher   string `json:"publisher"`
	ID          string `json:"id"`
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UnitSummary projects the identity fields of a unit manifest.
type UnitSummary struct {
	Name         string `json:"name"`
	FriendlyName string `json:"friendlyName"`
	Version      string `json:"version"`
	LogicalPath  string `json:"logicalPath"`
}

// ReadAllUnitManifests reads every unit r can find. Units whose manifest is
// missing or malformed are skipped; only a failure to list the units is
// returned.
func ReadAllUnitManifests(r Reader) ([]UnitEntry, error) {
	paths, err := r.FindUnitPaths()
	if err != nil {
		return nil, err
	}
	log := envOf(r).Log

	entries := make([]UnitEntry, 0, len(paths))
	for _, p := range paths {
		u, err := r.ReadUnitManifest(p)
		if err != nil {
			log.WithError(err).WithField("unit", p).Warn("Skipping unreadable unit manifest")
			continue
		}
		entries = append(entries, UnitEntry{LogicalPath: p, Manifest: u})
	}
	return entries, nil
}

// GetSummary returns the identity fields of r's top-level manifest.
func GetSummary(r Reader) (Summary, error) {
	m, err := r.ReadTopLevelManifest()
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Publisher:   m.Publisher,
		ID:          m.ID,
		Version:     m.Version,
		Name:        m.Name,
		Description: m.Description,
	}, nil
}

// GetUnitSummaries returns one summary per readable unit.
func GetUnitSummaries(r Reader) ([]UnitSummary, error) {
	entries, err := ReadAllUnitManifests(r)
	if err != nil {
		return nil, err
	}
	summaries := make([]UnitSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, UnitSummary{
			Name:         e.Manifest.Name,
			FriendlyName: e.Manifest.FriendlyName,
			Version:      e.Manifest.Version.String(),
			LogicalPath:  e.LogicalPath,
		})
	}
	return summaries, nil
}

// findUnitPaths lists unit contributions, or when there are none, the file
// entries that hold a unit manifest according to hasUnit.
func findUnitPaths(m *manifest.Manifest, hasUnit func(logical string) bool) []string {
	if paths := m.UnitPaths(); len(paths) > 0 {
		return paths
	}

	var paths []string
	seen := make(map[string]bool)
	for _, f := range m.Files {
		logical := pkgpath.Normalize(f.PackagePath)
		if logical == "" {
			logical = pkgpath.Normalize(f.Path)
		}
		if logical == "" || seen[logical] || !hasUnit(logical) {
			continue
		}
		seen[logical] = true
		paths = append(paths, logical)
	}
	return paths
}

// envOf returns the environment of one of this package's readers.
func envOf(r Reader) Env {
	switch rr := r.(type) {
	case *ArchiveReader:
		return rr.env
	case *DirectoryReader:
		return rr.env
	}
	return Env{}.withDefaults()
}

func isNotFound(err error) bool {
	return errors.Is(err, manifest.ErrManifestNotFound)
}
