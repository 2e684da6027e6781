// Package source resolves where a package comes from: a local path, a plain
// http(s) URL, or a file in a GitHub repository.
package source

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// RawContentBaseURL serves GitHub file content. Tests point it at a local
// server.
var RawContentBaseURL = "https://raw.githubusercontent.com"

// Location is a resolved package source.
type Location struct {
	// Input is the string the user gave.
	Input string
	// LocalPath is set for local archives and directories.
	LocalPath string
	// DownloadURL is set for remote archives.
	DownloadURL string
	// Canonical is github:owner/repo/path@ref for GitHub files, otherwise
	// the input.
	Canonical string
	Provider  string
	Owner     string
	Repo      string
	Ref       string
	// PathInRepo is the slash-separated file path inside the repository.
	PathInRepo string
	// Filename is the last path element of the remote file.
	Filename string
}

// Remote reports whether the package must be downloaded first.
func (l *Location) Remote() bool {
	return l.DownloadURL != ""
}

// Resolve classifies input. Anything that is not a URL or a github:
// shorthand is treated as a local path.
func Resolve(input string) (*Location, error) {
	if strings.HasPrefix(input, "github:") {
		return parseShorthand(input)
	}

	lower := strings.ToLower(input)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return &Location{Input: input, LocalPath: input, Canonical: input}, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source URL '%s': %w", input, err)
	}
	switch strings.ToLower(u.Hostname()) {
	case "github.com":
		return parseGitHubURL(input, u)
	case "raw.githubusercontent.com":
		return parseRawURL(input, u)
	}
	return &Location{
		Input:       input,
		DownloadURL: u.String(),
		Canonical:   input,
		Filename:    path.Base(u.Path),
	}, nil
}

// parseShorthand handles github:owner/repo/path/to/file@ref.
func parseShorthand(input string) (*Location, error) {
	content := strings.TrimPrefix(input, "github:")

	lastAt := strings.LastIndex(content, "@")
	if lastAt == -1 {
		return nil, fmt.Errorf("invalid github shorthand source '%s': missing @ref (e.g., @main or @v1.2.0)", input)
	}
	if lastAt == len(content)-1 {
		return nil, fmt.Errorf("invalid github shorthand source '%s': ref part is empty after @", input)
	}

	parts := strings.Split(content[:lastAt], "/")
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid github shorthand source '%s': expected format owner/repo/path/to/file", input)
	}
	return githubLocation(input, parts[0], parts[1], content[lastAt+1:], strings.Join(parts[2:], "/"))
}

// parseGitHubURL handles /owner/repo/blob/ref/path and /owner/repo/raw/ref/path.
func parseGitHubURL(input string, u *url.URL) (*Location, error) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 5 {
		return nil, fmt.Errorf("incomplete GitHub URL path: %s. Expected /<owner>/<repo>/blob/<ref>/<path_to_file>", u.Path)
	}
	switch parts[2] {
	case "blob", "raw":
	case "tree":
		return nil, fmt.Errorf("links to GitHub trees are not packages: %s", input)
	default:
		return nil, fmt.Errorf("unsupported GitHub URL: %s. Use a /blob/ or /raw/ link or the github:owner/repo/path@ref form", input)
	}
	return githubLocation(input, parts[0], parts[1], parts[3], strings.Join(parts[4:], "/"))
}

// parseRawURL handles raw.githubusercontent.com/owner/repo/ref/path.
func parseRawURL(input string, u *url.URL) (*Location, error) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid GitHub raw content URL path: %s. Expected format: /<owner>/<repo>/<ref>/<path_to_file>", u.Path)
	}
	loc, err := githubLocation(input, parts[0], parts[1], parts[2], strings.Join(parts[3:], "/"))
	if err != nil {
		return nil, err
	}
	loc.DownloadURL = u.String()
	return loc, nil
}

func githubLocation(input, owner, repo, ref, pathInRepo string) (*Location, error) {
	filename := path.Base(pathInRepo)
	if owner == "" || repo == "" || ref == "" || pathInRepo == "" || filename == "." || filename == "/" {
		return nil, fmt.Errorf("invalid github source '%s': owner, repo, ref and file path are required", input)
	}
	return &Location{
		Input:       input,
		DownloadURL: fmt.Sprintf("%s/%s/%s/%s/%s", strings.TrimRight(RawContentBaseURL, "/"), owner, repo, ref, pathInRepo),
		Canonical:   fmt.Sprintf("github:%s/%s/%s@%s", owner, repo, pathInRepo, ref),
		Provider:    "github",
		Owner:       owner,
		Repo:        repo,
		Ref:         ref,
		PathInRepo:  pathInRepo,
		Filename:    filename,
	}, nil
}
