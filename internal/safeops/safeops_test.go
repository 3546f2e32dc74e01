package safeops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camf-project/camf-go/internal/errors"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(nil, "test_op", RetryPolicy{MaxAttempts: 5, Delay: 0}, func() error {
		calls++
		if calls < 3 {
			return os.ErrPermission
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryNonTransientFailsImmediately(t *testing.T) {
	calls := 0
	err := Retry(nil, "test_op", RetryPolicy{MaxAttempts: 5, Delay: 0}, func() error {
		calls++
		return os.ErrNotExist
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "not-exist is not transient, no retry")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRetryExhaustionWrapsError(t *testing.T) {
	calls := 0
	err := Retry(nil, "test_op", RetryPolicy{MaxAttempts: 3, Delay: 0}, func() error {
		calls++
		return os.ErrPermission
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var enhanced *errors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.Equal(t, errors.CategoryRetry, enhanced.Category)
	assert.Equal(t, 3, enhanced.GetContext()["attempts"])
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Retry(nil, "test_op", RetryPolicy{}, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(os.ErrNotExist))
	assert.True(t, IsTransient(os.ErrPermission))
	assert.True(t, IsTransient(os.ErrDeadlineExceeded))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdateJSONCreatesAndMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")

	require.NoError(t, UpdateJSON(path, func(m map[string]any) {
		m["id"] = 1
		m["name"] = "Pilot"
	}))
	require.NoError(t, UpdateJSON(path, func(m map[string]any) {
		m["name"] = "Pilot Episode"
	}))

	var out map[string]any
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, "Pilot Episode", out["name"])
	assert.Equal(t, float64(1), out["id"], "untouched keys survive the merge")
}

func TestUpdateJSONToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	require.NoError(t, UpdateJSON(path, func(m map[string]any) {
		m["recovered"] = true
	}))

	var out map[string]any
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, true, out["recovered"])
	assert.Len(t, out, 1, "corrupt contents are discarded, not merged")
}

func TestReadJSONDistinguishesAbsence(t *testing.T) {
	var out map[string]any
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	assert.True(t, os.IsNotExist(err))
}

func TestRenameDirRetriesAndMoves(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "old")
	dst := filepath.Join(base, "new")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0o644))

	require.NoError(t, RenameDir(nil, src, dst, RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}))

	_, err := os.Stat(filepath.Join(dst, "f.txt"))
	require.NoError(t, err)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveTreeIdempotent(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "nested"), 0o755))

	require.NoError(t, RemoveTree(nil, target, RetryPolicy{MaxAttempts: 2}))
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	// RemoveAll on a missing path is a no-op.
	require.NoError(t, RemoveTree(nil, target, RetryPolicy{MaxAttempts: 2}))
}
