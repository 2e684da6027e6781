package store

import (
	"path"
	"path/filepath"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

// Finding is a schema problem located in one document of a package.
type Finding struct {
	// Document names the manifest: an archive member, a path relative to a
	// directory root, or <unit>/task.json for unit manifests.
	Document string `json:"document"`
	manifest.Problem
}

// ValidatePackage checks every top-level manifest and every unit manifest r
// can find. Unit manifests that cannot be read are reported as findings
// rather than errors; a missing or malformed top-level manifest is an error.
func ValidatePackage(r Reader) ([]Finding, error) {
	var findings []Finding

	switch rr := r.(type) {
	case *DirectoryReader:
		files, err := rr.ReadAllTopLevelManifests()
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			// Surface the not-found error from the primary lookup.
			if _, err := rr.ReadTopLevelManifest(); err != nil {
				return nil, err
			}
		}
		for _, f := range files {
			name := f.Path
			if rel, err := filepath.Rel(rr.Root(), f.Path); err == nil {
				name = filepath.ToSlash(rel)
			}
			findings = appendProblems(findings, name, f.Manifest.Validate())
		}
	default:
		m, err := r.ReadTopLevelManifest()
		if err != nil {
			return nil, err
		}
		name := "manifest"
		if ar, ok := r.(*ArchiveReader); ok {
			if n, err := ar.ManifestName(); err == nil {
				name = n
			}
		}
		findings = appendProblems(findings, name, m.Validate())
	}

	paths, err := r.FindUnitPaths()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		doc := path.Join(p, manifest.UnitManifestName)
		u, err := r.ReadUnitManifest(p)
		if err != nil {
			findings = append(findings, Finding{Document: doc, Problem: manifest.Problem{Message: err.Error()}})
			continue
		}
		findings = appendProblems(findings, doc, u.Validate())
	}
	return findings, nil
}

func appendProblems(findings []Finding, doc string, problems []manifest.Problem) []Finding {
	for _, p := range problems {
		findings = append(findings, Finding{Document: doc, Problem: p})
	}
	return findings
}
