package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePackage_ArchiveClean(t *testing.T) {
	t.Parallel()
	r, _ := openFixtureArchive(t, fixtureMembers())

	findings, err := ValidatePackage(r)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestValidatePackage_ArchiveUnitProblems(t *testing.T) {
	t.Parallel()
	members := fixtureMembers()
	for i := range members {
		switch members[i].name {
		case "compiled/task1/task.json":
			members[i].data = strings.Replace(fixtureTaskOne, "6c731c3c-3c68-459a-a5c9-bde6e6595b5b", "task-one", 1)
		case "TaskTwo/task.json":
			members[i].data = "{not json"
		}
	}
	r, _ := openFixtureArchive(t, members)

	findings, err := ValidatePackage(r)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	byDoc := map[string]Finding{}
	for _, f := range findings {
		byDoc[f.Document] = f
	}
	assert.Equal(t, "/id", byDoc["TaskOne/task.json"].Location)
	assert.NotEmpty(t, byDoc["TaskTwo/task.json"].Message, "unreadable units are reported")
}

func TestValidatePackage_Directory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"vss-extension.json":       strings.Replace(fixtureManifest, `"version": "1.2.0"`, `"version": "1.2"`, 1),
		"compiled/task1/task.json": fixtureTaskOne,
		"TaskTwo/task.json":        fixtureTaskTwo,
	})
	env, _ := testEnv(t)
	r, err := OpenDirectory(root, nil, env)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	findings, err := ValidatePackage(r)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "vss-extension.json", findings[0].Document)
	assert.Equal(t, "/version", findings[0].Location)
}

func TestValidatePackage_MissingManifest(t *testing.T) {
	t.Parallel()
	env, _ := testEnv(t)
	r, err := OpenDirectory(t.TempDir(), nil, env)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = ValidatePackage(r)
	assert.Error(t, err)
}
