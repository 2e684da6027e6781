package pathsafe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightconcept/extmanifest/internal/core/manifest"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "plain member", path: "extension.vsomanifest"},
		{name: "nested member", path: "TaskOne/v2/task.json"},
		{name: "directory member", path: "TaskOne/"},
		{name: "dot segment", path: "./TaskOne/task.json"},
		{name: "dots inside a name", path: "tasks/t/.dist/file..bak"},
		{name: "parent traversal", path: "../etc/passwd", wantErr: true},
		{name: "inner traversal", path: "TaskOne/../../secret", wantErr: true},
		{name: "backslash traversal", path: `TaskOne\..\..\secret`, wantErr: true},
		{name: "unix absolute", path: "/etc/passwd", wantErr: true},
		{name: "windows absolute", path: `C:\Windows\system32`, wantErr: true},
		{name: "windows absolute forward slash", path: "c:/temp/x", wantErr: true},
		{name: "null byte", path: "task\x00.json", wantErr: true},
		{name: "control character", path: "task\n.json", wantErr: true},
		{name: "reserved character", path: "task?.json", wantErr: true},
		{name: "pipe", path: "a|b", wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, manifest.ErrSecurityViolation), "unexpected error kind: %v", err)
		})
	}
}

func TestClean(t *testing.T) {
	t.Parallel()
	got, err := Clean(`./TaskOne\task.json`)
	require.NoError(t, err)
	assert.Equal(t, "TaskOne/task.json", got)

	_, err = Clean("./")
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrSecurityViolation))

	_, err = Clean("../x")
	assert.Error(t, err)
}
