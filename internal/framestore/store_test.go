package framestore

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camf-project/camf-go/internal/safeops"
)

// staticResolver maps take ids to fixed directories, standing in for the
// engine's hierarchy walk.
type staticResolver struct {
	dirs map[uint]string
}

func (r *staticResolver) ResolveTakeDir(takeID uint) (string, bool) {
	dir, ok := r.dirs[takeID]
	return dir, ok
}

func newTestStore(t *testing.T, flushEvery int, takeIDs ...uint) (*Store, *staticResolver) {
	t.Helper()
	resolver := &staticResolver{dirs: map[uint]string{}}
	for _, id := range takeIDs {
		dir := filepath.Join(t.TempDir(), "take")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		resolver.dirs[id] = dir
	}
	return NewStore(resolver, flushEvery, safeops.RetryPolicy{MaxAttempts: 3, Delay: 0}, nil), resolver
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 7 % 256),
				G: uint8(y * 13 % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func samePixels(t *testing.T, want, got image.Image) {
	t.Helper()
	require.Equal(t, want.Bounds(), got.Bounds())
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			wr, wg, wb, wa := want.At(x, y).RGBA()
			gr, gg, gb, ga := got.At(x, y).RGBA()
			if wr != gr || wg != gg || wb != gb || wa != ga {
				t.Fatalf("pixel mismatch at (%d,%d): want %v got %v", x, y, want.At(x, y), got.At(x, y))
			}
		}
	}
}

func TestStoreAndGetFrameRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, 25, 1)

	src := testImage(64, 48)
	require.True(t, store.StoreFrame(1, 42, src, 1.75, map[string]any{"exposure": "auto"}))

	got, ok := store.GetFrame(1, 42)
	require.True(t, ok)
	samePixels(t, src, got)
}

func TestGetFrameAbsent(t *testing.T) {
	store, _ := newTestStore(t, 25, 1)

	_, ok := store.GetFrame(1, 7)
	assert.False(t, ok)

	// Unknown take resolves to nothing at all.
	_, ok = store.GetFrame(99, 0)
	assert.False(t, ok)
}

func TestStoreFrameUnresolvedTake(t *testing.T) {
	store, _ := newTestStore(t, 25)
	assert.False(t, store.StoreFrame(5, 0, testImage(4, 4), 0, nil))
}

func TestFrameInfoAndListing(t *testing.T) {
	store, _ := newTestStore(t, 25, 1)

	for _, n := range []int{3, 1, 2} {
		require.True(t, store.StoreFrame(1, n, testImage(8, 8), float64(n)/24.0, nil))
	}

	frames := store.GetTakeFrames(1)
	require.Len(t, frames, 3)
	assert.Equal(t, 1, frames[0].FrameNumber)
	assert.Equal(t, 2, frames[1].FrameNumber)
	assert.Equal(t, 3, frames[2].FrameNumber)
	assert.Equal(t, 3, store.GetFrameCount(1))

	info, ok := store.GetFrameInfo(1, 2)
	require.True(t, ok)
	assert.Equal(t, uint(1), info.TakeID)
	assert.InDelta(t, 2.0/24.0, info.Timestamp, 1e-9)
	assert.Positive(t, info.SizeBytes)
}

func TestIndexFlushEveryNth(t *testing.T) {
	store, resolver := newTestStore(t, 2, 1)
	indexPath := filepath.Join(resolver.dirs[1], framesDirName, frameIndexFileName)

	require.True(t, store.StoreFrame(1, 1, testImage(4, 4), 0, nil))
	_, err := os.Stat(indexPath)
	assert.True(t, os.IsNotExist(err), "no flush before the Nth write")

	require.True(t, store.StoreFrame(1, 2, testImage(4, 4), 0.04, nil))
	_, err = os.Stat(indexPath)
	require.NoError(t, err, "second write triggers the flush")
}

func TestFinalizeTakeFlushesIndex(t *testing.T) {
	store, resolver := newTestStore(t, 100, 1)

	require.True(t, store.StoreFrame(1, 1, testImage(4, 4), 0, nil))
	require.True(t, store.FinalizeTake(1))

	indexPath := filepath.Join(resolver.dirs[1], framesDirName, frameIndexFileName)
	var idx indexFile
	require.NoError(t, safeops.ReadJSON(indexPath, &idx))
	assert.Equal(t, uint(1), idx.TakeID)
	assert.Equal(t, 1, idx.FrameCount)
}

func TestReconstructFromDiskAfterRestart(t *testing.T) {
	store, resolver := newTestStore(t, 25, 1)
	for n := range 3 {
		require.True(t, store.StoreFrame(1, n, testImage(4, 4), float64(n), nil))
	}

	// A fresh store with a cold index must rediscover the assets.
	fresh := NewStore(resolver, 25, safeops.RetryPolicy{MaxAttempts: 3}, nil)
	frames := fresh.GetTakeFrames(1)
	require.Len(t, frames, 3)
	assert.Equal(t, 0, frames[0].FrameNumber)
	assert.InDelta(t, 2.0, frames[2].Timestamp, 1e-9, "sidecar metadata survives the restart")
}

func TestReconstructSkipsMalformedFilenames(t *testing.T) {
	store, resolver := newTestStore(t, 25, 1)
	require.True(t, store.StoreFrame(1, 1, testImage(4, 4), 0, nil))

	framesDir := filepath.Join(resolver.dirs[1], framesDirName)
	require.NoError(t, os.WriteFile(filepath.Join(framesDir, "frame_abc.png"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(framesDir, "frame_.png"), []byte("junk"), 0o644))

	fresh := NewStore(resolver, 25, safeops.RetryPolicy{MaxAttempts: 3}, nil)
	frames := fresh.GetTakeFrames(1)
	require.Len(t, frames, 1, "externally created junk files are skipped")
	assert.Equal(t, 1, frames[0].FrameNumber)
}

func TestDeleteTakeRemovesAssets(t *testing.T) {
	store, resolver := newTestStore(t, 25, 1)
	require.True(t, store.StoreFrame(1, 1, testImage(4, 4), 0, nil))

	require.True(t, store.DeleteTake(1))

	_, ok := store.GetFrame(1, 1)
	assert.False(t, ok)
	assert.Zero(t, store.GetFrameCount(1))
	_, err := os.Stat(filepath.Join(resolver.dirs[1], framesDirName))
	assert.True(t, os.IsNotExist(err))

	// Idempotent when the directory is already gone.
	assert.True(t, store.DeleteTake(1))
}

func TestConcurrentStoreFrames(t *testing.T) {
	store, _ := newTestStore(t, 10, 1)

	const frames = 32
	var wg sync.WaitGroup
	for n := range frames {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, store.StoreFrame(1, n, testImage(8, 8), float64(n)/24.0, nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, frames, store.GetFrameCount(1))
	for n := range frames {
		_, ok := store.GetFrame(1, n)
		assert.True(t, ok, "frame %d missing", n)
	}
}

func TestFlattenAlphaCompositesOverBlack(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 128})

	flat := flattenAlpha(img)
	r, g, b, a := flat.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	// Half-transparent white over black lands at roughly half intensity.
	assert.InDelta(t, 0x8080, int(r), 260)
	assert.InDelta(t, 0x8080, int(g), 260)
	assert.InDelta(t, 0x8080, int(b), 260)
}

func TestParseFrameNumber(t *testing.T) {
	cases := []struct {
		name string
		want int
		ok   bool
	}{
		{"frame_000042.png", 42, true},
		{"frame_7.png", 7, true},
		{"frame_.png", 0, false},
		{"frame_abc.png", 0, false},
		{"snapshot_1.png", 0, false},
		{"frame_-1.png", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseFrameNumber(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.name)
		}
	}
}
