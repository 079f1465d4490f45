package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileSystemManager_ExpandHome verifies tilde expansion.
func TestFileSystemManager_ExpandHome(t *testing.T) {
	fm := NewFileSystemManagerWithHome("/home/regia")

	assert.Equal(t, "/home/regia/.regia/backend", fm.ExpandHome("~/.regia/backend"))
	assert.Equal(t, "/home/regia", fm.ExpandHome("~"))
	assert.Equal(t, "/opt/regia/backend", fm.ExpandHome("/opt/regia/backend"))
	assert.Equal(t, "relative/path", fm.ExpandHome("relative/path"))
}

// TestFileSystemManager_ExistsAndDelete verifies existence checks honor the
// configured home.
func TestFileSystemManager_ExistsAndDelete(t *testing.T) {
	home := t.TempDir()
	fm := NewFileSystemManagerWithHome(home)

	require.NoError(t, os.MkdirAll(filepath.Join(home, "data"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "data", "f"), []byte("x"), 0644))

	assert.True(t, fm.Exists("~/data/f"))
	require.NoError(t, fm.Delete("~/data"))
	assert.False(t, fm.Exists("~/data/f"))

	// Deleting a missing path is not an error.
	assert.NoError(t, fm.Delete("~/data"))
}
