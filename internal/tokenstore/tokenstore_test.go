package tokenstore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := Path(t.TempDir())

	require.NoError(t, Save(path, "tok123"))

	tok, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok123", tok)
}

func TestLoad_AbsentFileReturnsEmpty(t *testing.T) {
	tok, err := Load(Path(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := Path(t.TempDir())
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestSave_CreatesMissingDirectory(t *testing.T) {
	path := Path(filepath.Join(t.TempDir(), "nested", "data"))

	require.NoError(t, Save(path, "tok"))

	tok, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestSave_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}

	path := Path(t.TempDir())
	require.NoError(t, Save(path, "tok"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSave_OverwritesExisting(t *testing.T) {
	path := Path(t.TempDir())

	require.NoError(t, Save(path, "old"))
	require.NoError(t, Save(path, "new"))

	tok, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "new", tok)
}

func TestClear(t *testing.T) {
	path := Path(t.TempDir())
	require.NoError(t, Save(path, "tok"))

	require.NoError(t, Clear(path))

	tok, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, tok)

	// Clearing again is not an error.
	require.NoError(t, Clear(path))
}
