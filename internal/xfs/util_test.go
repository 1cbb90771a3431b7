package xfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "bare tilde", path: "~", want: home},
		{name: "tilde slash", path: "~/models/krishna", want: filepath.Join(home, "models/krishna")},
		{name: "absolute path", path: "/opt/models", want: "/opt/models"},
		{name: "relative path", path: "models/krishna.gguf", want: "models/krishna.gguf"},
		{name: "other user untouched", path: "~alice/models", want: "~alice/models"},
		{name: "empty", path: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandTilde(tt.path))
		})
	}
}
