// Package pathsafe rejects archive member paths that could escape the
// destination they are written to.
package pathsafe

import (
	"path/filepath"
	"strings"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

// disallowedChars are invalid in Windows file names.
const disallowedChars = `<>:"|?*`

// Validate returns a manifest.Error of kind KindSecurityViolation when p is
// empty, absolute, contains a ".." segment, a null byte, a control character
// or a character Windows does not allow in file names.
func Validate(p string) error {
	if p == "" {
		return violation(p, "empty path")
	}
	if strings.ContainsRune(p, 0) {
		return violation(p, "null byte in path")
	}

	normalized := strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(p) || hasDriveLetter(normalized) {
		return violation(p, "absolute path")
	}

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return violation(p, "parent directory segment")
		}
	}

	for _, r := range normalized {
		if r < 0x20 {
			return violation(p, "control character in path")
		}
		if strings.ContainsRune(disallowedChars, r) {
			return violation(p, "disallowed character "+string(r))
		}
	}
	return nil
}

// Clean validates p and returns it in forward-slash form without a leading "./".
func Clean(p string) (string, error) {
	if err := Validate(p); err != nil {
		return "", err
	}
	normalized := strings.ReplaceAll(p, `\`, "/")
	for strings.HasPrefix(normalized, "./") {
		normalized = strings.TrimPrefix(normalized, "./")
	}
	if normalized == "" || normalized == "." {
		return "", violation(p, "path names the archive root")
	}
	return normalized, nil
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func violation(p, reason string) error {
	return manifest.Errorf(manifest.KindSecurityViolation, p, "%s", reason)
}
