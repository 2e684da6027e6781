package store

import (
	"github.com/spf13/afero"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

// Open returns a DirectoryReader when p is a directory and an ArchiveReader
// otherwise. patterns only apply to directories.
func Open(p string, patterns []string, env Env) (Reader, error) {
	env = env.withDefaults()
	exists, err := afero.Exists(env.Fs, p)
	if err != nil || !exists {
		return nil, manifest.Errorf(manifest.KindManifestNotFound, p, "no such file or directory")
	}
	if isDir, _ := afero.IsDir(env.Fs, p); isDir {
		return OpenDirectory(p, patterns, env)
	}
	return OpenArchive(p, env)
}
