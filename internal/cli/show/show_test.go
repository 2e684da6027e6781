package show

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/nightconcept/extmanifest/internal/core/source"
)

const testManifest = `{
  "manifestVersion": 1,
  "publisher": "contoso",
  "id": "build-tools",
  "version": "1.2.0",
  "name": "Build Tools",
  "description": "Tasks for the build pipeline",
  "contributions": [
    {"id": "task-one", "type": "ms.vss-distributed-task.task", "properties": {"name": "TaskOne"}}
  ],
  "files": [
    {"path": "compiled/task1", "packagePath": "TaskOne"}
  ]
}
`

const testTask = `{
  "id": "6c731c3c-3c68-459a-a5c9-bde6e6595b5b",
  "name": "TaskOne",
  "friendlyName": "Task One",
  "version": {"Major": 1, "Minor": 4, "Patch": 2}
}
`

// setupShowDirectory writes a minimal extension directory and returns its root.
func setupShowDirectory(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"vss-extension.json":       testManifest,
		"compiled/task1/task.json": testTask,
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func buildArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"extension.vsomanifest":    testManifest,
		"compiled/task1/task.json": testTask,
	} {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// runShowCommand runs `extm show` with args and returns what it printed.
func runShowCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	var out bytes.Buffer
	app := &cli.App{
		Name:      "extm",
		Writer:    &out,
		ErrWriter: io.Discard,
		Commands:  []*cli.Command{ShowCmd},
		ExitErrHandler: func(_ *cli.Context, _ error) {
			// Keep urfave/cli from calling os.Exit during tests.
		},
	}
	err := app.Run(append([]string{"extm", "show"}, args...))
	return out.String(), err
}

func TestShowCommand_Directory(t *testing.T) {
	root := setupShowDirectory(t)

	output, err := runShowCommand(t, root)
	require.NoError(t, err)
	assert.Contains(t, output, "contoso.build-tools@1.2.0")
	assert.Contains(t, output, root)
	assert.Contains(t, output, "name: Build Tools")
	assert.Contains(t, output, "description: Tasks for the build pipeline")
	assert.Contains(t, output, "kind: directory")
	assert.NotContains(t, output, "units:")
}

func TestShowCommand_Units(t *testing.T) {
	root := setupShowDirectory(t)

	output, err := runShowCommand(t, "--units", root)
	require.NoError(t, err)
	assert.Contains(t, output, "units:")
	assert.Contains(t, output, "TaskOne 1.4.2 TaskOne")
}

func TestShowCommand_JSONArchive(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "build-tools.vsix")
	require.NoError(t, os.WriteFile(archivePath, buildArchive(t), 0o644))

	output, err := runShowCommand(t, "--json", "--units", archivePath)
	require.NoError(t, err)

	var got report
	require.NoError(t, json.Unmarshal([]byte(output), &got), "output should be JSON: %s", output)
	assert.Equal(t, "archive", string(got.Kind))
	assert.Equal(t, "contoso", got.Package.Publisher)
	assert.Equal(t, "build-tools", got.Package.ID)
	require.Len(t, got.Units, 1)
	assert.Equal(t, "TaskOne", got.Units[0].Name)
	assert.Equal(t, "Task One", got.Units[0].FriendlyName)
}

func TestShowCommand_URL(t *testing.T) {
	data := buildArchive(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer server.Close()

	output, err := runShowCommand(t, server.URL+"/packages/build-tools.vsix")
	require.NoError(t, err)
	assert.Contains(t, output, "contoso.build-tools@1.2.0")
	assert.Contains(t, output, "kind: archive")
}

func TestShowCommand_GitHubShorthand(t *testing.T) {
	data := buildArchive(t)
	var requested string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(data)
	}))
	defer server.Close()

	original := source.RawContentBaseURL
	source.RawContentBaseURL = server.URL
	defer func() { source.RawContentBaseURL = original }()

	output, err := runShowCommand(t, "--json", "github:contoso/build-tools/dist/build-tools.vsix@v1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "/contoso/build-tools/v1.2.0/dist/build-tools.vsix", requested)

	var got report
	require.NoError(t, json.Unmarshal([]byte(output), &got))
	assert.Equal(t, "github:contoso/build-tools/dist/build-tools.vsix@v1.2.0", got.Source)
	assert.Equal(t, "1.2.0", got.Package.Version)
}

func TestShowCommand_Errors(t *testing.T) {
	t.Run("missing argument", func(t *testing.T) {
		_, err := runShowCommand(t)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required")
	})

	t.Run("path does not exist", func(t *testing.T) {
		_, err := runShowCommand(t, filepath.Join(t.TempDir(), "missing.vsix"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Error opening")
	})

	t.Run("bad github shorthand", func(t *testing.T) {
		_, err := runShowCommand(t, "github:contoso/build-tools/pkg.vsix")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing @ref")
	})

	t.Run("directory without manifest", func(t *testing.T) {
		_, err := runShowCommand(t, t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Error")
	})
}
