package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const fixtureManifest = `{
  "manifestVersion": 1,
  "publisher": "contoso",
  "id": "build-tools",
  "version": "1.2.0",
  "name": "Build Tools",
  "galleryFlags": ["Private", "free"],
  "customKey": {"keep": true},
  "contributions": [
    {"id": "task-one", "type": "ms.vss-distributed-task.task", "targets": ["ms.vss-distributed-task.tasks"], "properties": {"name": "TaskOne"}},
    {"id": "task-two", "type": "ms.vss-distributed-task.task", "targets": ["ms.vss-distributed-task.tasks"], "properties": {"name": "TaskTwo"}},
    {"id": "hub", "type": "ms.vss-web.hub", "properties": {"name": "Hub"}}
  ],
  "files": [
    {"path": "compiled/task1", "packagePath": "TaskOne"},
    {"path": "TaskTwo"},
    {"path": "images", "addressable": true}
  ]
}
`

const fixtureTaskOne = `{
  "id": "6c731c3c-3c68-459a-a5c9-bde6e6595b5b",
  "name": "TaskOne",
  "friendlyName": "Task One",
  "version": {"Major": 1, "Minor": 4, "Patch": 2},
  "execution": {"Node16": {"target": "run.js"}}
}
`

const fixtureTaskTwo = `{
  "id": "1b0a7e2c-52e1-4c1f-9f2e-0c3b7c5e9d11",
  "name": "TaskTwo",
  "friendlyName": "Task Two",
  "version": {"Major": "2", "Minor": "5", "Patch": "1"}
}
`

type member struct {
	name string
	data string
}

// fixtureMembers is the archive layout most tests start from.
func fixtureMembers() []member {
	return []member{
		{name: "extension.vsomanifest", data: fixtureManifest},
		{name: "compiled/task1/task.json", data: fixtureTaskOne},
		{name: "compiled/task1/run.js", data: "console.log('one');\n"},
		{name: "TaskTwo/task.json", data: fixtureTaskTwo},
		{name: "images/logo.png", data: "\x89PNG fake"},
	}
}

// buildZip renders members into an in-memory archive, in order.
func buildZip(t *testing.T, members []member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     m.name,
			Method:   zip.Deflate,
			Modified: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err, "Failed to create zip member %s", m.name)
		_, err = fw.Write([]byte(m.data))
		require.NoError(t, err, "Failed to write zip member %s", m.name)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// writeTree creates files under root from a map of slash-separated relative
// paths to contents.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755), "Failed to create parent directory for %s", rel)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644), "Failed to write %s", rel)
	}
}

// testEnv returns an Env with a captured logger.
func testEnv(t *testing.T) (Env, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return Env{Log: logger}, hook
}

func openFixtureArchive(t *testing.T, members []member) (*ArchiveReader, *test.Hook) {
	t.Helper()
	env, hook := testEnv(t)
	r, err := OpenArchiveBytes("fixture.vsix", buildZip(t, members), env)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, hook
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
