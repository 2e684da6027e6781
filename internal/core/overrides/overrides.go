package overrides

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

// Keys lists the top-level fields an overrides file may carry.
var Keys = []string{
	manifest.KeyPublisher,
	manifest.KeyID,
	manifest.KeyVersion,
	manifest.KeyName,
	manifest.KeyDescription,
	manifest.KeyGalleryFlags,
}

// File holds the top-level fields overridden during one run.
// Example:
//
//	{
//	  "publisher": "contoso",
//	  "version": "1.4.0",
//	  "galleryFlags": ["Public", "Paid"]
//	}
type File map[string]interface{}

// New keeps only the fields of edits listed in Keys.
func New(edits map[string]interface{}) File {
	f := make(File)
	for _, key := range Keys {
		if v, ok := edits[key]; ok {
			f[key] = v
		}
	}
	return f
}

// Has reports whether key was overridden.
func (f File) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// FileName returns the name an overrides file written at now gets.
func FileName(now time.Time) string {
	return fmt.Sprintf("overrides-%d.json", now.UnixMilli())
}

// Save writes the file under dir and returns its path.
func Save(fs afero.Fs, dir string, now time.Time, f File) (string, error) {
	if f == nil {
		f = make(File)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode overrides: %w", err)
	}
	data = append(data, '\n')

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", manifest.NewError(manifest.KindWriteIO, dir, err)
	}
	path := filepath.Join(dir, FileName(now))
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return "", manifest.NewError(manifest.KindWriteIO, path, err)
	}
	return path, nil
}

// Load reads an overrides file.
func Load(fs afero.Fs, path string) (File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file %s: %w", path, err)
	}
	f := make(File)
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, manifest.NewError(manifest.KindManifestParse, path, err)
	}
	return f, nil
}
