package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Storage.BaseDir = "archive"
	s.Storage.IndexFlushEvery = 25
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "camf.db"
	s.Retry.MaxAttempts = 5
	return s
}

func TestValidateSettings(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))

	s := validSettings()
	s.Storage.BaseDir = ""
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Output.SQLite.Path = ""
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Output.SQLite.Enabled = false
	s.Output.SQLite.Path = ""
	assert.NoError(t, ValidateSettings(s), "path only required when sqlite is enabled")

	s = validSettings()
	s.Retry.MaxAttempts = 0
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Storage.IndexFlushEvery = 0
	assert.Error(t, ValidateSettings(s))
}

func TestGetBasePathAbsolute(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "base")
	got := GetBasePath(dir)
	assert.Equal(t, dir, got)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetBasePathResolvesRelative(t *testing.T) {
	got := GetBasePath("some-relative-dir")
	assert.True(t, filepath.IsAbs(got))
	t.Cleanup(func() { _ = os.RemoveAll(got) })
}

func TestGetDefaultConfigPathsStartsWithWorkingDir(t *testing.T) {
	paths, err := GetDefaultConfigPaths()
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
}
