// Package manifest_test contains tests for the manifest package.
package manifest_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

const sampleManifest = `{
  "manifestVersion": 1,
  "publisher": "contoso",
  "id": "build-tools",
  "version": "1.2.3",
  "name": "Build Tools",
  "description": "Tasks for <builds> & releases",
  "public": false,
  "galleryFlags": ["Preview"],
  "contributions": [
    {"id": "t1", "type": "ms.vss-distributed-task.task", "targets": ["ms.vss-distributed-task.tasks"], "properties": {"name": "TaskOne"}},
    {"id": "hub", "type": "ms.vss-web.hub", "properties": {"name": "NotAUnit"}},
    {"id": "t1-dup", "type": "ms.vss-distributed-task.task", "properties": {"name": "TaskOne"}}
  ],
  "files": [
    {"path": "tasks/one/.dist", "packagePath": "TaskOne", "auto": true},
    {"path": "images", "addressable": true}
  ]
}
`

func TestParse_TypedView(t *testing.T) {
	t.Parallel()
	m, err := manifest.Parse("vss-extension.json", []byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "contoso", m.Publisher)
	assert.Equal(t, "build-tools", m.ID)
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, "Build Tools", m.Name)
	require.NotNil(t, m.Public)
	assert.False(t, *m.Public)
	assert.True(t, m.HasFlag("preview"))
	require.Len(t, m.Files, 2)
	assert.Equal(t, "TaskOne", m.Files[0].PackagePath)
	assert.True(t, m.Files[1].Addressable)
	assert.Equal(t, []string{"TaskOne"}, m.UnitPaths())
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	_, err := manifest.Parse("broken.json", []byte(`{"publisher": `))
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrManifestParse))
	assert.Contains(t, err.Error(), "broken.json")

	_, err = manifest.Parse("array.json", []byte(`[1, 2]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrManifestParse))
}

func TestMarshal_RoundTripPreservesUnknownKeys(t *testing.T) {
	t.Parallel()
	m, err := manifest.Parse("vss-extension.json", []byte(sampleManifest))
	require.NoError(t, err)

	out, err := m.Marshal()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "}\n"), "output should end with a newline")
	assert.Contains(t, string(out), "<builds> & releases", "HTML characters should not be escaped")

	var before, after map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(sampleManifest), &before))
	require.NoError(t, json.Unmarshal(out, &after))
	assert.Equal(t, before, after)
}

func TestSet_UpdatesRawAndTypedView(t *testing.T) {
	t.Parallel()
	m, err := manifest.Parse("vss-extension.json", []byte(sampleManifest))
	require.NoError(t, err)

	require.NoError(t, m.Set(manifest.KeyVersion, "2.0.0"))
	require.NoError(t, m.Set(manifest.KeyGalleryFlags, []string{"Public", "Paid"}))
	assert.Equal(t, "2.0.0", m.Version)
	assert.Equal(t, []string{"Public", "Paid"}, m.GalleryFlags)

	again, err := m.Marshal()
	require.NoError(t, err)
	reparsed, err := manifest.Parse("again", again)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", reparsed.Version)
	v, ok := reparsed.Get("manifestVersion")
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), v)
}

func TestApply_SameFieldTwiceKeepsLastValue(t *testing.T) {
	t.Parallel()
	m, err := manifest.Parse("vss-extension.json", []byte(sampleManifest))
	require.NoError(t, err)

	require.NoError(t, m.Apply(map[string]interface{}{manifest.KeyName: "First"}))
	require.NoError(t, m.Apply(map[string]interface{}{manifest.KeyName: "Second"}))
	assert.Equal(t, "Second", m.Name)
}

func TestReplaceFiles_KeepsUnknownKeys(t *testing.T) {
	t.Parallel()
	m, err := manifest.Parse("vss-extension.json", []byte(sampleManifest))
	require.NoError(t, err)

	err = m.ReplaceFiles(func(f manifest.FileEntry) bool { return f.Path != "images" }, []manifest.FileEntry{
		{Path: "bin/tool", ContentType: manifest.BinaryContentType},
	})
	require.NoError(t, err)
	require.Len(t, m.Files, 2)
	assert.Equal(t, "tasks/one/.dist", m.Files[0].Path)
	assert.Equal(t, "bin/tool", m.Files[1].Path)

	out, err := m.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"auto": true`)
	assert.NotContains(t, string(out), `"images"`)
}

func TestClone_IsIndependent(t *testing.T) {
	t.Parallel()
	m, err := manifest.Parse("vss-extension.json", []byte(sampleManifest))
	require.NoError(t, err)

	c := m.Clone()
	require.NoError(t, c.Set(manifest.KeyPublisher, "fabrikam"))
	assert.Equal(t, "contoso", m.Publisher)
	assert.Equal(t, "fabrikam", c.Publisher)
}

func TestParseUnit_VersionForms(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		doc     string
		want    manifest.UnitVersion
		wantErr bool
	}{
		{
			name: "integers",
			doc:  `{"id": "a", "name": "T", "version": {"Major": 2, "Minor": 5, "Patch": 1}}`,
			want: manifest.UnitVersion{Major: 2, Minor: 5, Patch: 1},
		},
		{
			name: "numeric strings",
			doc:  `{"id": "a", "name": "T", "version": {"Major": "3", "Minor": "0", "Patch": "12"}}`,
			want: manifest.UnitVersion{Major: 3, Minor: 0, Patch: 12},
		},
		{
			name: "lower case keys",
			doc:  `{"id": "a", "name": "T", "version": {"major": 1, "minor": 2, "patch": 3}}`,
			want: manifest.UnitVersion{Major: 1, Minor: 2, Patch: 3},
		},
		{
			name:    "not a number",
			doc:     `{"id": "a", "name": "T", "version": {"Major": "one"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u, err := manifest.ParseUnit("task.json", []byte(tt.doc))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, manifest.ErrManifestParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Version)
		})
	}
}

func TestUnit_SetVersionAndID(t *testing.T) {
	t.Parallel()
	u, err := manifest.ParseUnit("task.json", []byte(`{
  "id": "old",
  "name": "TaskOne",
  "friendlyName": "Task One",
  "version": {"Major": 1, "Minor": 0, "Patch": 0},
  "execution": {"Node16": {"target": "index.js"}}
}`))
	require.NoError(t, err)

	require.NoError(t, u.Apply(map[string]interface{}{
		manifest.UnitKeyID:      "new",
		manifest.UnitKeyVersion: manifest.UnitVersion{Major: 1, Minor: 4, Patch: 2}.Fields(),
	}))
	assert.Equal(t, "new", u.ID)
	assert.Equal(t, "1.4.2", u.Version.String())

	out, err := u.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Node16"`)
	assert.Contains(t, string(out), `"Minor": 4`)
}

func TestError_Format(t *testing.T) {
	t.Parallel()
	err := manifest.Errorf(manifest.KindUnitManifestNotFound, "tasks/t/task.json", "no unit manifest")
	assert.Equal(t, "unit_manifest_not_found: tasks/t/task.json: no unit manifest", err.Error())
	assert.True(t, errors.Is(err, manifest.ErrUnitManifestNotFound))
	assert.False(t, errors.Is(err, manifest.ErrManifestNotFound))

	cause := errors.New("disk full")
	wrapped := manifest.NewError(manifest.KindWriteIO, "out.vsix", cause)
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "write_io: out.vsix: disk full", wrapped.Error())
}
