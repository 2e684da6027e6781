package store

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
	"github.com/nightconcept/extmanifest/internal/core/pathsafe"
	"github.com/nightconcept/extmanifest/internal/core/pkgpath"
)

// TopLevelManifestMembers are the archive members checked for the package
// manifest, in priority order.
var TopLevelManifestMembers = []string{"extension.vsomanifest", "vss-extension.json"}

// DefaultCloseTimeout bounds how long Close waits for the archive handle.
const DefaultCloseTimeout = 200 * time.Millisecond

// ArchiveReader reads manifests from a zip package archive.
type ArchiveReader struct {
	env    Env
	source string
	zr     *zip.Reader
	handle io.Closer

	closeTimeout time.Duration

	// Populated on first use, cleared by Close.
	files        map[string]*zip.File
	entries      []string
	contents     map[string][]byte
	manifest     *manifest.Manifest
	manifestName string
	index        *pkgpath.Index

	closed bool
}

// OpenArchive opens the archive at archivePath on env.Fs and reads its
// central directory.
func OpenArchive(archivePath string, env Env) (*ArchiveReader, error) {
	env = env.withDefaults()

	f, err := env.Fs.Open(archivePath)
	if err != nil {
		return nil, manifest.NewError(manifest.KindArchiveIO, archivePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, manifest.NewError(manifest.KindArchiveIO, archivePath, err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, manifest.NewError(manifest.KindArchiveIO, archivePath, err)
	}

	env.Log.WithField("archive", archivePath).WithField("members", len(zr.File)).Debug("Opened archive")
	return newArchiveReader(archivePath, zr, f, env), nil
}

// OpenArchiveBytes reads an archive held in memory.
func OpenArchiveBytes(name string, data []byte, env Env) (*ArchiveReader, error) {
	env = env.withDefaults()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, manifest.NewError(manifest.KindArchiveIO, name, err)
	}
	return newArchiveReader(name, zr, nil, env), nil
}

func newArchiveReader(source string, zr *zip.Reader, handle io.Closer, env Env) *ArchiveReader {
	return &ArchiveReader{
		env:          env,
		source:       source,
		zr:           zr,
		handle:       handle,
		closeTimeout: DefaultCloseTimeout,
	}
}

// Kind reports KindArchive.
func (r *ArchiveReader) Kind() Kind {
	return KindArchive
}

// Source returns the path or name the archive was opened from.
func (r *ArchiveReader) Source() string {
	return r.source
}

// Entries lists every member name in central directory order.
func (r *ArchiveReader) Entries() ([]string, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	r.loadEntries()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

func (r *ArchiveReader) loadEntries() {
	if r.files != nil {
		return
	}
	r.files = make(map[string]*zip.File, len(r.zr.File))
	r.entries = make([]string, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		if _, dup := r.files[f.Name]; dup {
			continue
		}
		r.files[f.Name] = f
		r.entries = append(r.entries, f.Name)
	}
}

// HasFile reports whether member exists in the archive.
func (r *ArchiveReader) HasFile(member string) bool {
	if r.closed {
		return false
	}
	name, err := pathsafe.Clean(member)
	if err != nil {
		return false
	}
	r.loadEntries()
	_, ok := r.files[name]
	return ok
}

// ReadFile returns the decompressed bytes of member. Results are cached
// until Close.
func (r *ArchiveReader) ReadFile(member string) ([]byte, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	name, err := pathsafe.Clean(member)
	if err != nil {
		return nil, err
	}
	if data, ok := r.contents[name]; ok {
		return data, nil
	}

	r.loadEntries()
	f, ok := r.files[name]
	if !ok {
		return nil, manifest.NewError(manifest.KindArchiveIO, name, fs.ErrNotExist)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, manifest.NewError(manifest.KindArchiveIO, name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, manifest.NewError(manifest.KindArchiveIO, name, err)
	}
	if r.contents == nil {
		r.contents = make(map[string][]byte)
	}
	r.contents[name] = data
	return data, nil
}

// ManifestName returns the member the top-level manifest is read from.
func (r *ArchiveReader) ManifestName() (string, error) {
	if err := r.checkOpen(); err != nil {
		return "", err
	}
	if r.manifestName != "" {
		return r.manifestName, nil
	}
	for _, name := range TopLevelManifestMembers {
		if r.HasFile(name) {
			r.manifestName = name
			return name, nil
		}
	}
	return "", manifest.Errorf(manifest.KindManifestNotFound, r.source,
		"none of %s found in archive", strings.Join(TopLevelManifestMembers, ", "))
}

// ReadTopLevelManifest implements Reader.
func (r *ArchiveReader) ReadTopLevelManifest() (*manifest.Manifest, error) {
	if r.manifest != nil {
		return r.manifest, nil
	}
	name, err := r.ManifestName()
	if err != nil {
		return nil, err
	}
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(name, data)
	if err != nil {
		return nil, err
	}
	r.manifest = m
	return m, nil
}

// packageIndex builds the package-path index from the manifest's files. An
// archive without a manifest resolves every path to itself.
func (r *ArchiveReader) packageIndex() (*pkgpath.Index, error) {
	if r.index != nil {
		return r.index, nil
	}
	m, err := r.ReadTopLevelManifest()
	switch {
	case err == nil:
		r.index = pkgpath.BuildIndex(m.Files)
	case isNotFound(err):
		r.index = &pkgpath.Index{}
	default:
		return nil, err
	}
	return r.index, nil
}

// UnitMember returns the archive member holding the unit manifest for
// logicalPath.
func (r *ArchiveReader) UnitMember(logicalPath string) (string, error) {
	idx, err := r.packageIndex()
	if err != nil {
		return "", err
	}
	physical := idx.Resolve(logicalPath)
	return pathsafe.Clean(path.Join(pkgpath.Normalize(physical), manifest.UnitManifestName))
}

// FindUnitPaths implements Reader.
func (r *ArchiveReader) FindUnitPaths() ([]string, error) {
	m, err := r.ReadTopLevelManifest()
	if err != nil {
		return nil, err
	}
	return findUnitPaths(m, func(logical string) bool {
		member, err := r.UnitMember(logical)
		return err == nil && r.HasFile(member)
	}), nil
}

// ReadUnitManifest implements Reader.
func (r *ArchiveReader) ReadUnitManifest(logicalPath string) (*manifest.Unit, error) {
	member, err := r.UnitMember(logicalPath)
	if err != nil {
		return nil, err
	}
	if !r.HasFile(member) {
		return nil, manifest.Errorf(manifest.KindUnitManifestNotFound, member,
			"no unit manifest for %q in archive", logicalPath)
	}
	data, err := r.ReadFile(member)
	if err != nil {
		return nil, err
	}
	r.env.Log.WithField("unit", logicalPath).WithField("member", member).Debug("Read unit manifest")
	return manifest.ParseUnit(member, data)
}

// Close drops the caches and closes the archive handle, waiting at most the
// close timeout for it to finish.
func (r *ArchiveReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.files = nil
	r.entries = nil
	r.contents = nil
	r.manifest = nil
	r.manifestName = ""
	r.index = nil

	if r.handle == nil {
		return nil
	}
	handle := r.handle
	r.handle = nil
	if err := closeWithTimeout(handle, r.closeTimeout); err != nil {
		if err == errCloseTimeout {
			r.env.Log.WithField("archive", r.source).Warn("Archive handle did not close in time; abandoning it")
			return nil
		}
		return manifest.NewError(manifest.KindArchiveIO, r.source, err)
	}
	return nil
}

func (r *ArchiveReader) checkOpen() error {
	if r.closed {
		return manifest.NewError(manifest.KindArchiveIO, r.source, fs.ErrClosed)
	}
	return nil
}

var errCloseTimeout = errors.New("close timed out")

// closeWithTimeout runs c.Close and returns its result, or errCloseTimeout
// once timeout elapses. done is buffered so a late Close never blocks.
func closeWithTimeout(c io.Closer, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- c.Close() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return errCloseTimeout
	}
}
