package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightconcept/extmanifest/internal/core/hasher"
	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

func commitArchive(t *testing.T, e *Editor) *Result {
	t.Helper()
	w, err := e.ToWriter()
	require.NoError(t, err)
	res, err := w.Commit()
	require.NoError(t, err)
	return res
}

func reopen(t *testing.T, data []byte) *ArchiveReader {
	t.Helper()
	r, err := OpenArchiveBytes("out.vsix", data, Env{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestArchiveWriter_RoundTripWithoutEdits(t *testing.T) {
	t.Parallel()
	src, _ := openFixtureArchive(t, fixtureMembers())
	res := commitArchive(t, NewEditor(src))
	assert.Empty(t, res.Changed)
	assert.Empty(t, res.OutputPath)

	out := reopen(t, res.Bytes)

	srcEntries, err := src.Entries()
	require.NoError(t, err)
	outEntries, err := out.Entries()
	require.NoError(t, err)
	assert.Equal(t, srcEntries, outEntries)

	for _, name := range srcEntries {
		want, err := src.ReadFile(name)
		require.NoError(t, err)
		got, err := out.ReadFile(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, "member %s", name)
	}

	before, err := src.ReadTopLevelManifest()
	require.NoError(t, err)
	after, err := out.ReadTopLevelManifest()
	require.NoError(t, err)
	assert.Equal(t, before.Publisher, after.Publisher)
	assert.Equal(t, before.Files, after.Files)
	assert.Equal(t, before.Contributions, after.Contributions)
}

func TestArchiveWriter_AppliesEdits(t *testing.T) {
	t.Parallel()
	src, _ := openFixtureArchive(t, fixtureMembers())

	e := NewEditor(src)
	e.SetVersion("2.0.0")
	require.NoError(t, e.SetVisibility(VisibilityPublic))
	require.NoError(t, e.UpdateAllUnitVersions("2.0.0", GranularityMinor))
	require.NoError(t, e.AddFile("docs/readme.md", []byte("# Build Tools\n")))
	require.NoError(t, e.RemoveFile("images/logo.png"))

	res := commitArchive(t, e)
	assert.Equal(t, []string{
		"TaskTwo/task.json",
		"compiled/task1/task.json",
		"docs/readme.md",
		"extension.vsomanifest",
		"images/logo.png",
	}, res.Changed)

	out := reopen(t, res.Bytes)
	entries, err := out.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"extension.vsomanifest",
		"compiled/task1/task.json",
		"compiled/task1/run.js",
		"TaskTwo/task.json",
		"docs/readme.md",
	}, entries, "source order is kept and new members are appended")

	m, err := out.ReadTopLevelManifest()
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", m.Version)
	assert.Equal(t, []string{"free", "Public"}, m.GalleryFlags)
	custom, ok := m.Get("customKey")
	require.True(t, ok, "unknown keys survive a rewrite")
	assert.Equal(t, map[string]interface{}{"keep": true}, custom)

	u, err := out.ReadUnitManifest("TaskOne")
	require.NoError(t, err)
	assert.Equal(t, manifest.UnitVersion{Major: 1, Minor: 0, Patch: 0}, u.Version)
	raw, err := out.ReadFile("compiled/task1/task.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"execution"`)

	u, err = out.ReadUnitManifest("TaskTwo")
	require.NoError(t, err)
	assert.Equal(t, manifest.UnitVersion{Major: 2, Minor: 0, Patch: 0}, u.Version)

	data, err := out.ReadFile("docs/readme.md")
	require.NoError(t, err)
	assert.Equal(t, "# Build Tools\n", string(data))
	assert.False(t, out.HasFile("images/logo.png"))

	run, err := out.ReadFile("compiled/task1/run.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log('one');\n", string(run))
}

func TestArchiveWriter_CommitToFile(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	env, _ := testEnv(t)
	env.Fs = fs
	src, err := OpenArchiveBytes("fixture.vsix", buildZip(t, fixtureMembers()), env)
	require.NoError(t, err)

	e := NewEditor(src)
	e.SetPublisher("fabrikam")
	w, err := e.ToWriter()
	require.NoError(t, err)
	res, err := w.(*ArchiveWriter).WithOutput("/out/fabrikam.vsix").Commit()
	require.NoError(t, err)
	assert.Equal(t, "/out/fabrikam.vsix", res.OutputPath)

	digest, err := hasher.CalculateSHA256(res.Bytes)
	require.NoError(t, err)
	assert.Equal(t, digest, res.Digest)

	out, err := OpenArchive("/out/fabrikam.vsix", env)
	require.NoError(t, err)
	defer func() { _ = out.Close() }()
	m, err := out.ReadTopLevelManifest()
	require.NoError(t, err)
	assert.Equal(t, "fabrikam", m.Publisher)
}

func TestArchiveWriter_WriteTo(t *testing.T) {
	t.Parallel()
	src, _ := openFixtureArchive(t, fixtureMembers())
	e := NewEditor(src)
	e.SetName("Renamed")
	w, err := e.ToWriter()
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := w.(*ArchiveWriter).WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	m, err := reopen(t, buf.Bytes()).ReadTopLevelManifest()
	require.NoError(t, err)
	assert.Equal(t, "Renamed", m.Name)
}

func TestArchiveWriter_FindsUnitByName(t *testing.T) {
	t.Parallel()
	members := append(fixtureMembers(), member{
		name: "legacy/hidden/task.json",
		data: `{"id": "h", "name": "Hidden", "version": {"Major": 0, "Minor": 1, "Patch": 0}}`,
	})
	src, _ := openFixtureArchive(t, members)

	e := NewEditor(src)
	e.SetUnitField("Hidden", manifest.UnitKeyFriendlyName, "Hidden Task")
	res := commitArchive(t, e)
	assert.Contains(t, res.Changed, "legacy/hidden/task.json")

	raw, err := reopen(t, res.Bytes).ReadFile("legacy/hidden/task.json")
	require.NoError(t, err)
	u, err := manifest.ParseUnit("hidden", raw)
	require.NoError(t, err)
	assert.Equal(t, "Hidden Task", u.FriendlyName)
}

func TestArchiveWriter_UnknownUnitFails(t *testing.T) {
	t.Parallel()
	src, _ := openFixtureArchive(t, fixtureMembers())

	e := NewEditor(src)
	e.SetUnitID("Nobody", "x")
	w, err := e.ToWriter()
	require.NoError(t, err)
	_, err = w.Commit()
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrUnitManifestNotFound))
}

const versionedManifest = `{
  "publisher": "contoso",
  "id": "installers",
  "version": "9.9.9",
  "name": "Installers",
  "contributions": [
    {"id": "installer-v2", "type": "ms.vss-distributed-task.task", "properties": {"name": "Tasks/installer/v2"}},
    {"id": "installer-v3", "type": "ms.vss-distributed-task.task", "properties": {"name": "Tasks/installer/v3"}}
  ]
}`

func versionedMembers() []member {
	return []member{
		{name: "extension.vsomanifest", data: versionedManifest},
		{name: "Tasks/installer/v2/task.json", data: `{"id": "a", "name": "installer", "version": {"Major": 2, "Minor": 1, "Patch": 0}}`},
		{name: "Tasks/installer/v3/task.json", data: `{"id": "b", "name": "installer", "version": {"Major": 3, "Minor": 4, "Patch": 0}}`},
	}
}

func TestArchiveWriter_SameNamedUnitsKeepTheirOwnVersions(t *testing.T) {
	t.Parallel()
	src, _ := openFixtureArchive(t, versionedMembers())

	e := NewEditor(src)
	require.NoError(t, e.UpdateAllUnitVersions("9.9.9", GranularityPatch))
	require.NoError(t, e.UpdateAllUnitIDs())
	res := commitArchive(t, e)

	out := reopen(t, res.Bytes)
	v2, err := out.ReadUnitManifest("Tasks/installer/v2")
	require.NoError(t, err)
	v3, err := out.ReadUnitManifest("Tasks/installer/v3")
	require.NoError(t, err)

	assert.Equal(t, manifest.UnitVersion{Major: 2, Minor: 1, Patch: 9}, v2.Version)
	assert.Equal(t, manifest.UnitVersion{Major: 3, Minor: 4, Patch: 9}, v3.Version)
	want := hasher.UnitID("contoso", "installers", "installer")
	assert.Equal(t, want, v2.ID)
	assert.Equal(t, want, v3.ID, "ids derive from the declared name")
}

func TestArchiveWriter_NameKeyEditsEveryUnitDeclaringIt(t *testing.T) {
	t.Parallel()
	src, _ := openFixtureArchive(t, versionedMembers())

	e := NewEditor(src)
	e.SetUnitField("installer", manifest.UnitKeyFriendlyName, "Installer")
	e.SetUnitField("Tasks/installer/v3", manifest.UnitKeyFriendlyName, "Installer (v3)")
	res := commitArchive(t, e)

	out := reopen(t, res.Bytes)
	v2, err := out.ReadUnitManifest("Tasks/installer/v2")
	require.NoError(t, err)
	v3, err := out.ReadUnitManifest("Tasks/installer/v3")
	require.NoError(t, err)
	assert.Equal(t, "Installer", v2.FriendlyName)
	assert.Equal(t, "Installer (v3)", v3.FriendlyName, "path keys win over name keys")
}

func TestArchiveWriter_CommitReplacesExistingOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target := filepath.Join(dir, "build-tools.vsix")
	require.NoError(t, os.WriteFile(target, buildZip(t, fixtureMembers()), 0o644))

	env, _ := testEnv(t)
	src, err := OpenArchive(target, env)
	require.NoError(t, err)
	e := NewEditor(src)
	e.SetPublisher("fabrikam")
	w, err := e.ToWriter()
	require.NoError(t, err)
	res, err := w.(*ArchiveWriter).WithOutput(target).Commit()
	require.NoError(t, err)
	require.NoError(t, src.Close())

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, data)
	m, err := reopen(t, data).ReadTopLevelManifest()
	require.NoError(t, err)
	assert.Equal(t, "fabrikam", m.Publisher)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file is left behind")
	assert.Equal(t, "build-tools.vsix", entries[0].Name())
}

// failingRenameFs refuses every rename.
type failingRenameFs struct{ afero.Fs }

func (failingRenameFs) Rename(_, _ string) error { return errors.New("rename refused") }

func TestArchiveWriter_FailedCommitKeepsExistingOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target := filepath.Join(dir, "build-tools.vsix")
	original := buildZip(t, fixtureMembers())
	require.NoError(t, os.WriteFile(target, original, 0o644))

	env, _ := testEnv(t)
	env.Fs = failingRenameFs{afero.NewOsFs()}
	src, err := OpenArchiveBytes("fixture.vsix", original, env)
	require.NoError(t, err)
	e := NewEditor(src)
	e.SetPublisher("fabrikam")
	w, err := e.ToWriter()
	require.NoError(t, err)

	_, err = w.(*ArchiveWriter).WithOutput(target).Commit()
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrWriteIO))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, data, "the existing archive is untouched")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the temp file is removed")
}
