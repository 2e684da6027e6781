package store

import (
	"bytes"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/nightconcept/extmanifest/internal/core/hasher"
	"github.com/nightconcept/extmanifest/internal/core/manifest"
	"github.com/nightconcept/extmanifest/internal/core/pathsafe"
)

// ArchiveWriter renders a new archive from an ArchiveReader and pending edits.
// Members without edits are copied without recompression.
type ArchiveWriter struct {
	reader *ArchiveReader
	edits  *Edits
	env    Env
	output string
}

func newArchiveWriter(r *ArchiveReader, edits *Edits) *ArchiveWriter {
	return &ArchiveWriter{reader: r, edits: edits, env: r.env}
}

// WithOutput makes Commit write the archive to p on the reader's filesystem.
func (w *ArchiveWriter) WithOutput(p string) *ArchiveWriter {
	w.output = p
	return w
}

// Commit renders the archive, and writes it to the output path when one is
// set.
func (w *ArchiveWriter) Commit() (*Result, error) {
	data, changed, err := w.render()
	if err != nil {
		return nil, err
	}
	digest, err := hasher.CalculateSHA256(data)
	if err != nil {
		return nil, err
	}
	res := &Result{Bytes: data, Digest: digest, Changed: changed}

	if w.output != "" {
		if err := replaceFile(w.env.Fs, w.output, data); err != nil {
			return nil, err
		}
		res.OutputPath = w.output
		w.env.Log.WithField("path", w.output).WithField("bytes", len(data)).Info("Wrote archive")
	}
	return res, nil
}

// WriteTo renders the archive into dst.
func (w *ArchiveWriter) WriteTo(dst io.Writer) (int64, error) {
	data, _, err := w.render()
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(data)
	if err != nil {
		return int64(n), manifest.NewError(manifest.KindWriteIO, w.reader.source, err)
	}
	return int64(n), nil
}

// stage collects the replacement bytes for edited members and the set of
// removed members.
func (w *ArchiveWriter) stage() (staged map[string][]byte, removed map[string]bool, err error) {
	r := w.reader
	staged = make(map[string][]byte)
	removed = make(map[string]bool)

	units, unmatched, err := stageUnits(r, w.edits)
	if err != nil {
		return nil, nil, err
	}
	for _, su := range units {
		member, err := r.UnitMember(su.logicalPath)
		if err != nil {
			return nil, nil, err
		}
		data, err := su.unit.Marshal()
		if err != nil {
			return nil, nil, manifest.NewError(manifest.KindWriteIO, member, err)
		}
		staged[member] = data
	}
	for _, name := range unmatched {
		member, u, err := w.findUnitByName(name)
		if err != nil {
			return nil, nil, err
		}
		u, err = applyUnitEdits(u, w.edits.Units[name])
		if err != nil {
			return nil, nil, err
		}
		data, err := u.Marshal()
		if err != nil {
			return nil, nil, manifest.NewError(manifest.KindWriteIO, member, err)
		}
		staged[member] = data
	}

	if len(w.edits.Manifest) > 0 || len(w.edits.Units) > 0 {
		name, err := r.ManifestName()
		if err != nil {
			return nil, nil, err
		}
		m, err := r.ReadTopLevelManifest()
		if err != nil {
			return nil, nil, err
		}
		c := m.Clone()
		if err := c.Apply(w.edits.Manifest); err != nil {
			return nil, nil, err
		}
		data, err := c.Marshal()
		if err != nil {
			return nil, nil, manifest.NewError(manifest.KindWriteIO, name, err)
		}
		staged[name] = data
	}

	for p, fe := range w.edits.Files {
		name, err := pathsafe.Clean(p)
		if err != nil {
			return nil, nil, err
		}
		if fe.Remove {
			delete(staged, name)
			removed[name] = true
			continue
		}
		staged[name] = fe.Data
	}
	return staged, removed, nil
}

// findUnitByName searches every unit manifest member for one declaring name.
func (w *ArchiveWriter) findUnitByName(name string) (string, *manifest.Unit, error) {
	entries, err := w.reader.Entries()
	if err != nil {
		return "", nil, err
	}
	for _, member := range entries {
		if path.Base(member) != manifest.UnitManifestName {
			continue
		}
		data, err := w.reader.ReadFile(member)
		if err != nil {
			continue
		}
		u, err := manifest.ParseUnit(member, data)
		if err != nil || u.Name != name {
			continue
		}
		w.env.Log.WithField("unit", name).WithField("member", member).Debug("Found unit manifest by search")
		return member, u, nil
	}
	return "", nil, manifest.Errorf(manifest.KindUnitManifestNotFound, name,
		"no unit manifest named %q in archive", name)
}

func (w *ArchiveWriter) render() ([]byte, []string, error) {
	r := w.reader
	if err := r.checkOpen(); err != nil {
		return nil, nil, err
	}
	staged, removed, err := w.stage()
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	written := make(map[string]bool)
	var changed []string

	for _, f := range r.zr.File {
		name := f.Name
		if written[name] {
			continue
		}
		written[name] = true

		if removed[name] {
			changed = append(changed, name)
			continue
		}
		if data, ok := staged[name]; ok {
			hdr := &zip.FileHeader{Name: name, Method: f.Method, Modified: f.Modified}
			if err := writeMember(zw, hdr, data); err != nil {
				return nil, nil, err
			}
			changed = append(changed, name)
			continue
		}
		if !strings.HasSuffix(name, "/") {
			if err := pathsafe.Validate(name); err != nil {
				w.env.Log.WithError(err).WithField("member", name).Warn("Skipping unsafe archive member")
				continue
			}
		}
		if err := zw.Copy(f); err != nil {
			w.env.Log.WithError(err).WithField("member", name).Warn("Failed to copy archive member; skipping")
		}
	}

	var added []string
	for name := range staged {
		if !written[name] {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	for _, name := range added {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: w.env.Now()}
		if err := writeMember(zw, hdr, staged[name]); err != nil {
			return nil, nil, err
		}
		changed = append(changed, name)
	}

	if err := zw.Close(); err != nil {
		return nil, nil, manifest.NewError(manifest.KindWriteIO, r.source, err)
	}
	sort.Strings(changed)
	return buf.Bytes(), changed, nil
}

func writeMember(zw *zip.Writer, hdr *zip.FileHeader, data []byte) error {
	if err := pathsafe.Validate(hdr.Name); err != nil {
		return err
	}
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return manifest.NewError(manifest.KindWriteIO, hdr.Name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return manifest.NewError(manifest.KindWriteIO, hdr.Name, err)
	}
	return nil
}
