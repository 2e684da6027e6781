// Package downloader fetches remote package archives so they can be inspected
// like local ones.
package downloader

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// DownloadFile fetches the content from the given URL.
// It returns the content as a byte slice or an error if the download fails
// or if the HTTP status code is not 200 OK.
func DownloadFile(rawURL string) ([]byte, error) {
	resp, err := http.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to perform GET request to %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download from %s: received status code %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", rawURL, err)
	}

	return body, nil
}

// DownloadToTemp fetches rawURL into a new file under dir on fs and returns
// its path. The file keeps the extension of the URL's last path segment.
func DownloadToTemp(fs afero.Fs, dir, rawURL string) (string, error) {
	body, err := DownloadFile(rawURL)
	if err != nil {
		return "", err
	}

	pattern := "extm-*" + archiveExt(rawURL)
	f, err := afero.TempFile(fs, dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", rawURL, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(body); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// archiveExt returns the extension of the URL path, defaulting to .vsix.
func archiveExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".vsix"
	}
	ext := path.Ext(u.Path)
	if ext == "" || strings.ContainsAny(ext, `/\*`) {
		return ".vsix"
	}
	return ext
}
