package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/nightconcept/extmanifest/internal/core/hasher"
	"github.com/nightconcept/extmanifest/internal/core/manifest"
	"github.com/nightconcept/extmanifest/internal/core/pathsafe"
)

// FileEdit is a pending change to a raw package file.
type FileEdit struct {
	Remove bool   `json:"remove,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

// Edits is the pending-edit state an Editor hands to its Writer.
type Edits struct {
	// Manifest holds top-level key overrides.
	Manifest map[string]interface{} `json:"manifest,omitempty"`
	// Units holds key overrides per unit, keyed by logical path or, for units
	// addressed by name, by the name declared in the unit manifest.
	Units map[string]map[string]interface{} `json:"units,omitempty"`
	// Files holds raw file changes keyed by package-relative path.
	Files map[string]FileEdit `json:"files,omitempty"`
	// SyncBinaries runs the binary-entry sweep on directory commits.
	SyncBinaries bool `json:"syncBinaries,omitempty"`
}

// Empty reports whether nothing is pending.
func (e *Edits) Empty() bool {
	return len(e.Manifest) == 0 && len(e.Units) == 0 && len(e.Files) == 0 && !e.SyncBinaries
}

// Clone returns a deep copy.
func (e *Edits) Clone() Edits {
	out := Edits{SyncBinaries: e.SyncBinaries}
	if e.Manifest != nil {
		out.Manifest = cloneFields(e.Manifest)
	}
	if e.Units != nil {
		out.Units = make(map[string]map[string]interface{}, len(e.Units))
		for name, fields := range e.Units {
			out.Units[name] = cloneFields(fields)
		}
	}
	if e.Files != nil {
		out.Files = make(map[string]FileEdit, len(e.Files))
		for p, fe := range e.Files {
			out.Files[p] = FileEdit{Remove: fe.Remove, Data: append([]byte(nil), fe.Data...)}
		}
	}
	return out
}

func cloneFields(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		c := make([]interface{}, len(t))
		for i, x := range t {
			c[i] = cloneValue(x)
		}
		return c
	case map[string]interface{}:
		return cloneFields(t)
	}
	return v
}

// Editor collects edits against the manifests of one Reader.
type Editor struct {
	reader Reader
	edits  *Edits
	log    logrus.FieldLogger
}

// NewEditor wraps r.
func NewEditor(r Reader) *Editor {
	return &Editor{
		reader: r,
		edits:  &Edits{},
		log:    envOf(r).Log,
	}
}

// Reader returns the wrapped reader.
func (e *Editor) Reader() Reader {
	return e.reader
}

// Edits returns a deep copy of the pending edits.
func (e *Editor) Edits() Edits {
	return e.edits.Clone()
}

func (e *Editor) setManifest(key string, value interface{}) {
	if e.edits.Manifest == nil {
		e.edits.Manifest = make(map[string]interface{})
	}
	e.edits.Manifest[key] = value
}

func (e *Editor) setUnit(unit, key string, value interface{}) {
	if e.edits.Units == nil {
		e.edits.Units = make(map[string]map[string]interface{})
	}
	fields := e.edits.Units[unit]
	if fields == nil {
		fields = make(map[string]interface{})
		e.edits.Units[unit] = fields
	}
	fields[key] = value
}

// SetPublisher overrides the publisher.
func (e *Editor) SetPublisher(publisher string) *Editor {
	e.setManifest(manifest.KeyPublisher, publisher)
	return e
}

// SetExtensionID overrides the extension id.
func (e *Editor) SetExtensionID(id string) *Editor {
	e.setManifest(manifest.KeyID, id)
	return e
}

// SetVersion overrides the package version.
func (e *Editor) SetVersion(version string) *Editor {
	e.setManifest(manifest.KeyVersion, version)
	return e
}

// SetName overrides the display name.
func (e *Editor) SetName(name string) *Editor {
	e.setManifest(manifest.KeyName, name)
	return e
}

// SetDescription overrides the description.
func (e *Editor) SetDescription(description string) *Editor {
	e.setManifest(manifest.KeyDescription, description)
	return e
}

// galleryFlags returns the pending flags, or the manifest's when none are
// pending.
func (e *Editor) galleryFlags() ([]string, error) {
	if v, ok := e.edits.Manifest[manifest.KeyGalleryFlags]; ok {
		if flags, ok := v.([]string); ok {
			return append([]string(nil), flags...), nil
		}
	}
	m, err := e.reader.ReadTopLevelManifest()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), m.GalleryFlags...), nil
}

// replaceFlags drops every flag in exclusive, ignoring case, then appends add.
func replaceFlags(flags, exclusive, add []string) []string {
	out := make([]string, 0, len(flags)+len(add))
	for _, f := range flags {
		drop := false
		for _, x := range exclusive {
			if strings.EqualFold(f, x) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, f)
		}
	}
	return append(out, add...)
}

// SetVisibility replaces the visibility gallery flags and the public field.
func (e *Editor) SetVisibility(v Visibility) error {
	v, err := ParseVisibility(string(v))
	if err != nil {
		return err
	}
	flags, err := e.galleryFlags()
	if err != nil {
		return err
	}
	add, public := v.Flags()
	e.setManifest(manifest.KeyGalleryFlags, replaceFlags(flags, visibilityFlags, add))
	e.setManifest(manifest.KeyPublic, public)
	return nil
}

// SetPricing replaces the pricing gallery flag.
func (e *Editor) SetPricing(p Pricing) error {
	p, err := ParsePricing(string(p))
	if err != nil {
		return err
	}
	flags, err := e.galleryFlags()
	if err != nil {
		return err
	}
	e.setManifest(manifest.KeyGalleryFlags, replaceFlags(flags, pricingFlags, []string{p.Flag()}))
	return nil
}

// SetUnitField overrides key in the manifest of unit. unit is a logical path
// or a declared unit name; a name applies to every unit that declares it.
func (e *Editor) SetUnitField(unit, key string, value interface{}) *Editor {
	e.setUnit(unit, key, value)
	return e
}

// SetUnitVersion overrides the version of unit.
func (e *Editor) SetUnitVersion(unit string, v manifest.UnitVersion) *Editor {
	e.setUnit(unit, manifest.UnitKeyVersion, v.Fields())
	return e
}

// SetUnitID overrides the id of unit.
func (e *Editor) SetUnitID(unit, id string) *Editor {
	e.setUnit(unit, manifest.UnitKeyID, id)
	return e
}

// AddFile stages data at the package-relative path p.
func (e *Editor) AddFile(p string, data []byte) error {
	name, err := pathsafe.Clean(p)
	if err != nil {
		return err
	}
	if e.edits.Files == nil {
		e.edits.Files = make(map[string]FileEdit)
	}
	e.edits.Files[name] = FileEdit{Data: append([]byte(nil), data...)}
	return nil
}

// RemoveFile marks the package-relative path p for removal.
func (e *Editor) RemoveFile(p string) error {
	name, err := pathsafe.Clean(p)
	if err != nil {
		return err
	}
	if e.edits.Files == nil {
		e.edits.Files = make(map[string]FileEdit)
	}
	e.edits.Files[name] = FileEdit{Remove: true}
	return nil
}

// SetSynchronizeBinaries toggles the binary-entry sweep for directory commits.
func (e *Editor) SetSynchronizeBinaries(on bool) *Editor {
	e.edits.SyncBinaries = on
	return e
}

// UpdateAllUnitVersions sets every unit's version from version. Components at
// and below g come from version; components above g keep the unit's current
// value.
func (e *Editor) UpdateAllUnitVersions(version string, g Granularity) error {
	g, err := ParseGranularity(string(g))
	if err != nil {
		return err
	}
	target, err := parseUnitVersion(version)
	if err != nil {
		return fmt.Errorf("failed to parse version %q: %w", version, err)
	}
	units, err := ReadAllUnitManifests(e.reader)
	if err != nil {
		return err
	}
	for _, u := range units {
		next := u.Manifest.Version
		switch g {
		case GranularityMajor:
			next = target
		case GranularityMinor:
			next.Minor = target.Minor
			next.Patch = target.Patch
		case GranularityPatch:
			next.Patch = target.Patch
		}
		e.log.WithFields(logrus.Fields{
			"unit": u.LogicalPath,
			"from": u.Manifest.Version.String(),
			"to":   next.String(),
		}).Debug("Updating unit version")
		e.SetUnitVersion(u.LogicalPath, next)
	}
	return nil
}

// parseUnitVersion reads the first three numeric components of version. A
// fourth component, as in 1.2.3.4, is ignored.
func parseUnitVersion(version string) (manifest.UnitVersion, error) {
	if v, err := semver.NewVersion(version); err == nil {
		return manifest.UnitVersion{Major: int(v.Major()), Minor: int(v.Minor()), Patch: int(v.Patch())}, nil
	}

	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(version), "v"), ".")
	if len(parts) < 3 || len(parts) > 4 {
		return manifest.UnitVersion{}, fmt.Errorf("want major.minor.patch")
	}
	var nums [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return manifest.UnitVersion{}, fmt.Errorf("component %q is not a number", parts[i])
		}
		nums[i] = n
	}
	return manifest.UnitVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// effective returns the pending string value of key, or the manifest's.
func (e *Editor) effective(key string, current string) string {
	if v, ok := e.edits.Manifest[key].(string); ok {
		return v
	}
	return current
}

// UpdateAllUnitIDs derives a new id for every unit from the effective
// publisher, extension id and unit name.
func (e *Editor) UpdateAllUnitIDs() error {
	m, err := e.reader.ReadTopLevelManifest()
	if err != nil {
		return err
	}
	publisher := e.effective(manifest.KeyPublisher, m.Publisher)
	extensionID := e.effective(manifest.KeyID, m.ID)

	units, err := ReadAllUnitManifests(e.reader)
	if err != nil {
		return err
	}
	for _, u := range units {
		id := hasher.UnitID(publisher, extensionID, u.Manifest.Name)
		e.log.WithField("unit", u.LogicalPath).WithField("id", id).Debug("Updating unit id")
		e.SetUnitID(u.LogicalPath, id)
	}
	return nil
}

// ApplyOptions calls the setter for every field set in o.
func (e *Editor) ApplyOptions(o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.PublisherID != nil {
		e.SetPublisher(*o.PublisherID)
	}
	if o.ExtensionID != nil {
		e.SetExtensionID(*o.ExtensionID)
	}
	if o.ExtensionVersion != nil {
		e.SetVersion(*o.ExtensionVersion)
	}
	if o.ExtensionName != nil {
		e.SetName(*o.ExtensionName)
	}
	if o.ExtensionDescription != nil {
		e.SetDescription(*o.ExtensionDescription)
	}
	if o.ExtensionVisibility != nil {
		if err := e.SetVisibility(*o.ExtensionVisibility); err != nil {
			return err
		}
	}
	if o.ExtensionPricing != nil {
		if err := e.SetPricing(*o.ExtensionPricing); err != nil {
			return err
		}
	}
	if o.UpdateUnitsVersion != nil && *o.UpdateUnitsVersion {
		m, err := e.reader.ReadTopLevelManifest()
		if err != nil {
			return err
		}
		g := GranularityMajor
		if o.UpdateUnitsVersionType != nil {
			g = *o.UpdateUnitsVersionType
		}
		if err := e.UpdateAllUnitVersions(e.effective(manifest.KeyVersion, m.Version), g); err != nil {
			return err
		}
	}
	if o.UpdateUnitsID != nil && *o.UpdateUnitsID {
		if err := e.UpdateAllUnitIDs(); err != nil {
			return err
		}
	}
	if o.SynchronizeBinaryFileEntries != nil {
		e.SetSynchronizeBinaries(*o.SynchronizeBinaryFileEntries)
	}
	return nil
}

// ToWriter returns the Writer matching the wrapped Reader's backend. The
// writer shares this editor's pending edits.
func (e *Editor) ToWriter() (Writer, error) {
	switch r := e.reader.(type) {
	case *ArchiveReader:
		return newArchiveWriter(r, e.edits), nil
	case *DirectoryReader:
		return newDirectoryWriter(r, e.edits), nil
	}
	return nil, manifest.Errorf(manifest.KindUnsupportedReaderKind, "",
		"no writer for reader %T", e.reader)
}
