package hierarchy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camf-project/camf-go/internal/safeops"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "archive"), safeops.RetryPolicy{MaxAttempts: 3, Delay: 0})
	require.NoError(t, err)
	return m
}

func TestNewManagerCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "archive")
	m, err := NewManager(base, safeops.RetryPolicy{MaxAttempts: 1})
	require.NoError(t, err)
	assert.Equal(t, base, m.BaseDir())

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateDirWritesSidecar(t *testing.T) {
	m := newTestManager(t)

	path, ok := m.CreateDir(m.BaseDir(), EntityProject, 1, "Pilot")
	require.True(t, ok)
	assert.Equal(t, "Pilot_1", filepath.Base(path))

	meta, ok := m.ReadMetadata(path)
	require.True(t, ok)
	assert.Equal(t, DirMetadata{ID: 1, Name: "Pilot", Type: EntityProject}, meta)
}

func TestCreateDirCollisionGetsCounterSuffix(t *testing.T) {
	m := newTestManager(t)

	// A stale directory already occupies the canonical name.
	require.NoError(t, os.MkdirAll(filepath.Join(m.BaseDir(), "Pilot_1"), 0o755))

	path, ok := m.CreateDir(m.BaseDir(), EntityProject, 1, "Pilot")
	require.True(t, ok)
	assert.Equal(t, "Pilot_1_1", filepath.Base(path))

	meta, ok := m.ReadMetadata(path)
	require.True(t, ok)
	assert.Equal(t, uint(1), meta.ID)
}

func TestFindDirBySuffix(t *testing.T) {
	m := newTestManager(t)

	created, ok := m.CreateDir(m.BaseDir(), EntityProject, 7, "Pilot")
	require.True(t, ok)

	found, ok := m.FindDir(m.BaseDir(), EntityProject, 7)
	require.True(t, ok)
	assert.Equal(t, created, found)

	_, ok = m.FindDir(m.BaseDir(), EntityProject, 8)
	assert.False(t, ok)
}

func TestFindDirFallsBackToSidecar(t *testing.T) {
	m := newTestManager(t)

	created, ok := m.CreateDir(m.BaseDir(), EntityProject, 7, "Pilot")
	require.True(t, ok)

	// A manual rename outside the engine breaks the id suffix; the sidecar
	// still identifies the directory.
	moved := filepath.Join(m.BaseDir(), "renamed-by-hand")
	require.NoError(t, os.Rename(created, moved))

	found, ok := m.FindDir(m.BaseDir(), EntityProject, 7)
	require.True(t, ok)
	assert.Equal(t, moved, found)
}

func TestRenameDirMovesAndRewritesSidecar(t *testing.T) {
	m := newTestManager(t)

	created, ok := m.CreateDir(m.BaseDir(), EntityProject, 1, "Pilot")
	require.True(t, ok)

	require.True(t, m.RenameDir(m.BaseDir(), EntityProject, 1, "Pilot Episode"))

	_, err := os.Stat(created)
	assert.True(t, os.IsNotExist(err), "old directory must be gone")

	newPath := filepath.Join(m.BaseDir(), "Pilot_Episode_1")
	meta, ok := m.ReadMetadata(newPath)
	require.True(t, ok)
	assert.Equal(t, "Pilot Episode", meta.Name)
}

func TestRenameDirSamePathIsMetadataOnly(t *testing.T) {
	m := newTestManager(t)

	created, ok := m.CreateDir(m.BaseDir(), EntityProject, 1, "Pilot?")
	require.True(t, ok)

	// "Pilot!" sanitizes to the same directory name as "Pilot?".
	require.True(t, m.RenameDir(m.BaseDir(), EntityProject, 1, "Pilot!"))

	_, err := os.Stat(created)
	require.NoError(t, err, "directory stays in place")

	meta, ok := m.ReadMetadata(created)
	require.True(t, ok)
	assert.Equal(t, "Pilot!", meta.Name, "sidecar carries the exact new name")
}

func TestRenameDirCollisionNeverOverwritesSibling(t *testing.T) {
	m := newTestManager(t)

	_, ok := m.CreateDir(m.BaseDir(), EntityProject, 1, "Alpha")
	require.True(t, ok)

	// A sibling already occupies the rename target.
	occupied := filepath.Join(m.BaseDir(), "Beta_1")
	require.NoError(t, os.MkdirAll(occupied, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(occupied, "keep.txt"), []byte("x"), 0o644))

	require.True(t, m.RenameDir(m.BaseDir(), EntityProject, 1, "Beta"))

	// The sibling and its contents are untouched.
	_, err := os.Stat(filepath.Join(occupied, "keep.txt"))
	require.NoError(t, err)

	meta, ok := m.ReadMetadata(filepath.Join(m.BaseDir(), "Beta_1_1"))
	require.True(t, ok)
	assert.Equal(t, uint(1), meta.ID)
	assert.Equal(t, "Beta", meta.Name)
}

func TestRenameDirMissingEntity(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.RenameDir(m.BaseDir(), EntityProject, 42, "Ghost"))
}

func TestDeleteDirIdempotent(t *testing.T) {
	m := newTestManager(t)

	created, ok := m.CreateDir(m.BaseDir(), EntityProject, 1, "Pilot")
	require.True(t, ok)
	require.NoError(t, os.WriteFile(filepath.Join(created, "leftover.txt"), []byte("x"), 0o644))

	require.True(t, m.DeleteDir(m.BaseDir(), EntityProject, 1))
	_, err := os.Stat(created)
	assert.True(t, os.IsNotExist(err))

	// Already gone: still reported as success.
	assert.True(t, m.DeleteDir(m.BaseDir(), EntityProject, 1))
}

func TestDeleteDirRefusedDuringUpload(t *testing.T) {
	m := newTestManager(t)

	created, ok := m.CreateDir(m.BaseDir(), EntityTake, 5, "Take 1")
	require.True(t, ok)

	m.Uploads().Register(5)
	assert.False(t, m.DeleteDir(m.BaseDir(), EntityTake, 5), "delete is refused, not retried")
	_, err := os.Stat(created)
	require.NoError(t, err)

	m.Uploads().Release(5)
	assert.True(t, m.DeleteDir(m.BaseDir(), EntityTake, 5))
}

func TestNestedHierarchyPaths(t *testing.T) {
	m := newTestManager(t)

	projectDir, ok := m.CreateDir(m.BaseDir(), EntityProject, 1, "Pilot")
	require.True(t, ok)
	sceneDir, ok := m.CreateDir(projectDir, EntityScene, 2, "Opening")
	require.True(t, ok)
	angleDir, ok := m.CreateDir(sceneDir, EntityAngle, 3, "Wide")
	require.True(t, ok)
	takeDir, ok := m.CreateDir(angleDir, EntityTake, 4, "Take 1")
	require.True(t, ok)

	want := filepath.Join(m.BaseDir(), "Pilot_1", "Opening_2", "Wide_3", "Take_1_4")
	assert.Equal(t, want, takeDir)

	found, ok := m.FindDir(angleDir, EntityTake, 4)
	require.True(t, ok)
	assert.Equal(t, takeDir, found)
}

func TestUploadGuardCountsNestedRegistrations(t *testing.T) {
	g := NewUploadGuard()

	assert.False(t, g.Active(1))
	g.Register(1)
	g.Register(1)
	g.Release(1)
	assert.True(t, g.Active(1), "still one registration outstanding")
	g.Release(1)
	assert.False(t, g.Active(1))

	// Release without register is harmless.
	g.Release(2)
	assert.False(t, g.Active(2))
}
