// Package target turns a command's package argument into a path the store
// can open, downloading remote packages first.
package target

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nightconcept/extmanifest/internal/core/downloader"
	"github.com/nightconcept/extmanifest/internal/core/source"
)

// Fetch returns a local path for loc and a cleanup func that removes any
// downloaded copy. Local locations are returned unchanged.
func Fetch(loc *source.Location, log logrus.FieldLogger) (string, func(), error) {
	if !loc.Remote() {
		return loc.LocalPath, func() {}, nil
	}
	p, err := downloader.DownloadToTemp(afero.NewOsFs(), os.TempDir(), loc.DownloadURL)
	if err != nil {
		return "", func() {}, fmt.Errorf("downloading %s: %w", loc.Input, err)
	}
	log.WithField("url", loc.DownloadURL).WithField("path", p).Debug("Downloaded package")
	return p, func() { _ = os.Remove(p) }, nil
}
