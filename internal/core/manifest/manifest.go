// Package manifest models the top-level extension manifest and the per-unit
// task manifests it packages, and reads and writes both as JSON documents.
//
// Both document kinds keep the raw decoded object next to their typed view:
// edits go through Set, which updates the raw object and re-derives the typed
// fields, so keys this package does not know about survive a read/write cycle.
package manifest

import (
	"sort"
	"strings"
)

const (
	// UnitManifestName is the file name of a unit manifest inside its folder.
	UnitManifestName = "task.json"
	// UnitContributionType marks a contribution that describes a unit.
	UnitContributionType = "ms.vss-distributed-task.task"
	// BinaryContentType is the content type given to extensionless binaries.
	BinaryContentType = "application/octet-stream"
)

// Top-level manifest keys.
const (
	KeyPublisher     = "publisher"
	KeyID            = "id"
	KeyVersion       = "version"
	KeyName          = "name"
	KeyDescription   = "description"
	KeyPublic        = "public"
	KeyGalleryFlags  = "galleryFlags"
	KeyContributions = "contributions"
	KeyFiles         = "files"
)

// Manifest is the top-level package manifest.
type Manifest struct {
	Publisher     string         `json:"publisher"`
	ID            string         `json:"id"`
	Version       string         `json:"version"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Public        *bool          `json:"public,omitempty"`
	GalleryFlags  []string       `json:"galleryFlags,omitempty"`
	Contributions []Contribution `json:"contributions,omitempty"`
	Files         []FileEntry    `json:"files,omitempty"`

	raw map[string]interface{}
}

// Contribution is one entry of the manifest's contributions array.
type Contribution struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Targets    []string               `json:"targets,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// UnitName returns properties.name, the logical path of the unit a task
// contribution points at.
func (c Contribution) UnitName() string {
	name, _ := c.Properties["name"].(string)
	return name
}

// IsUnit reports whether the contribution describes a unit.
func (c Contribution) IsUnit() bool {
	return c.Type == UnitContributionType
}

// FileEntry describes where a physical path is placed inside the package.
type FileEntry struct {
	Path        string `json:"path"`
	PackagePath string `json:"packagePath,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Addressable bool   `json:"addressable,omitempty"`
}

// Parse decodes a top-level manifest. name identifies the document in errors.
func Parse(name string, data []byte) (*Manifest, error) {
	raw, err := decodeObject(data)
	if err != nil {
		return nil, NewError(KindManifestParse, name, err)
	}
	m := &Manifest{raw: raw}
	if err := m.sync(); err != nil {
		return nil, NewError(KindManifestParse, name, err)
	}
	return m, nil
}

func (m *Manifest) sync() error {
	var view Manifest
	if err := project(m.raw, &view); err != nil {
		return err
	}
	view.raw = m.raw
	*m = view
	return nil
}

// Set overrides a top-level key. value must be JSON-marshalable.
func (m *Manifest) Set(key string, value interface{}) error {
	v, err := normalizeValue(value)
	if err != nil {
		return NewError(KindManifestParse, key, err)
	}
	if m.raw == nil {
		m.raw = make(map[string]interface{})
	}
	m.raw[key] = v
	if err := m.sync(); err != nil {
		return NewError(KindManifestParse, key, err)
	}
	return nil
}

// Get returns the raw value stored under key.
func (m *Manifest) Get(key string) (interface{}, bool) {
	v, ok := m.raw[key]
	return v, ok
}

// Apply sets every key of fields, in key order.
func (m *Manifest) Apply(fields map[string]interface{}) error {
	for _, key := range sortedKeys(fields) {
		if err := m.Set(key, fields[key]); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceFiles keeps the raw file entries for which keep returns true and
// appends add. Unknown keys on kept entries are preserved.
func (m *Manifest) ReplaceFiles(keep func(FileEntry) bool, add []FileEntry) error {
	rawFiles, _ := m.raw[KeyFiles].([]interface{})
	next := make([]interface{}, 0, len(rawFiles)+len(add))
	for i, entry := range rawFiles {
		if i < len(m.Files) && !keep(m.Files[i]) {
			continue
		}
		next = append(next, entry)
	}
	for _, f := range add {
		next = append(next, f)
	}
	return m.Set(KeyFiles, next)
}

// Marshal renders the manifest as indented JSON with a trailing newline.
func (m *Manifest) Marshal() ([]byte, error) {
	return encodeDocument(m.raw)
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	data, err := m.Marshal()
	if err != nil {
		return &Manifest{raw: map[string]interface{}{}}
	}
	c, err := Parse("clone", data)
	if err != nil {
		return &Manifest{raw: map[string]interface{}{}}
	}
	return c
}

// UnitPaths returns the logical paths named by unit contributions, in order
// and without duplicates.
func (m *Manifest) UnitPaths() []string {
	var paths []string
	seen := make(map[string]bool)
	for _, c := range m.Contributions {
		name := c.UnitName()
		if !c.IsUnit() || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		paths = append(paths, name)
	}
	return paths
}

// HasFlag reports whether galleryFlags contains flag, ignoring case.
func (m *Manifest) HasFlag(flag string) bool {
	for _, f := range m.GalleryFlags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
