// Package framestore persists per-take binary frame assets with lossless
// fidelity and maintains an in-memory plus on-disk index of stored frames.
package framestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/camf-project/camf-go/internal/logging"
	"github.com/camf-project/camf-go/internal/observability/metrics"
	"github.com/camf-project/camf-go/internal/safeops"
)

const (
	framesDirName      = "frames"
	frameIndexFileName = "frame_index.json"
)

// TakeDirResolver resolves a take id to its current directory in the
// hierarchy tree. The engine implements this by walking the entity chain.
type TakeDirResolver interface {
	ResolveTakeDir(takeID uint) (string, bool)
}

// Store persists frame assets. A single process-wide write lock
// serializes asset writes so the image write, sidecar write and index
// update appear atomic to concurrent index readers; reads are lock-free
// against an atomically swapped index snapshot.
type Store struct {
	resolver   TakeDirResolver
	flushEvery int
	policy     safeops.RetryPolicy
	logger     *slog.Logger
	metrics    *metrics.StorageMetrics

	mu               sync.Mutex
	idx              atomic.Pointer[indexSnapshot]
	writesSinceFlush map[uint]int
}

// NewStore creates a frame store. flushEvery controls how many frame
// writes for a take elapse between consolidated index file flushes;
// metrics may be nil.
func NewStore(resolver TakeDirResolver, flushEvery int, policy safeops.RetryPolicy, m *metrics.StorageMetrics) *Store {
	if flushEvery < 1 {
		flushEvery = 25
	}
	s := &Store{
		resolver:         resolver,
		flushEvery:       flushEvery,
		policy:           policy,
		logger:           logging.ForService("framestore"),
		metrics:          m,
		writesSinceFlush: make(map[uint]int),
	}
	s.idx.Store(emptySnapshot())
	return s
}

// StoreFrame writes the image losslessly under the take's current
// directory, writes the sidecar metadata file, updates the in-memory
// index, and every Nth frame flushes the consolidated per-take index
// file. Returns false when the take directory cannot be resolved or any
// write fails.
func (s *Store) StoreFrame(takeID uint, frameNumber int, img image.Image, timestamp float64, metadata map[string]any) bool {
	start := time.Now()

	dir, ok := s.resolver.ResolveTakeDir(takeID)
	if !ok {
		s.logger.Warn("store frame: take directory unresolved", "take_id", takeID, "frame", frameNumber)
		s.recordWriteError()
		return false
	}
	framesDir := filepath.Join(dir, framesDirName)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		s.logger.Error("store frame: cannot create frames directory",
			"take_id", takeID, "path", framesDir, "error", err)
		s.recordWriteError()
		return false
	}

	// Default compression balances speed against size; the format stays
	// lossless either way.
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		s.logger.Error("store frame: png encode failed",
			"take_id", takeID, "frame", frameNumber, "error", err)
		s.recordWriteError()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	assetPath := filepath.Join(framesDir, assetFileName(frameNumber))
	if err := safeops.WriteFileAtomic(assetPath, buf.Bytes(), 0o644); err != nil {
		s.logger.Error("store frame: asset write failed",
			"take_id", takeID, "frame", frameNumber, "error", err)
		s.recordWriteError()
		return false
	}

	info := FrameInfo{
		TakeID:      takeID,
		FrameNumber: frameNumber,
		Path:        assetPath,
		SizeBytes:   int64(buf.Len()),
		Timestamp:   timestamp,
		CreatedAt:   time.Now().UTC(),
	}

	sidecarPath := filepath.Join(framesDir, sidecarFileName(frameNumber))
	err := safeops.UpdateJSON(sidecarPath, func(m map[string]any) {
		m["frame_number"] = frameNumber
		m["timestamp"] = timestamp
		m["size_bytes"] = info.SizeBytes
		m["created_at"] = info.CreatedAt.Format(time.RFC3339Nano)
		for k, v := range metadata {
			m[k] = v
		}
	})
	if err != nil {
		s.logger.Error("store frame: sidecar write failed",
			"take_id", takeID, "frame", frameNumber, "error", err)
		s.recordWriteError()
		return false
	}

	s.idx.Store(s.idx.Load().with(info))

	s.writesSinceFlush[takeID]++
	if s.writesSinceFlush[takeID] >= s.flushEvery {
		s.flushIndexLocked(takeID, framesDir)
	}

	if s.metrics != nil {
		s.metrics.FrameWrites.Inc()
		s.metrics.FrameWriteDuration.Observe(time.Since(start).Seconds())
	}
	return true
}

// GetFrame reads and decodes a stored frame. An image that unexpectedly
// carries an alpha channel is flattened before return. The boolean is
// false when the take or frame is absent.
func (s *Store) GetFrame(takeID uint, frameNumber int) (image.Image, bool) {
	dir, ok := s.resolver.ResolveTakeDir(takeID)
	if !ok {
		return nil, false
	}
	assetPath := filepath.Join(dir, framesDirName, assetFileName(frameNumber))
	f, err := os.Open(assetPath)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		s.logger.Error("get frame: decode failed", "path", assetPath, "error", err)
		return nil, false
	}
	if s.metrics != nil {
		s.metrics.FrameReads.Inc()
	}
	return flattenAlpha(img), true
}

// GetFrameInfo returns the index entry for one frame, falling back to the
// sidecar file and finally to the asset itself when the index is cold.
func (s *Store) GetFrameInfo(takeID uint, frameNumber int) (FrameInfo, bool) {
	if info, ok := s.idx.Load().frames[frameKey{takeID, frameNumber}]; ok {
		return info, true
	}

	dir, ok := s.resolver.ResolveTakeDir(takeID)
	if !ok {
		return FrameInfo{}, false
	}
	framesDir := filepath.Join(dir, framesDirName)

	if info, ok := readSidecar(takeID, framesDir, frameNumber); ok {
		return info, true
	}

	assetPath := filepath.Join(framesDir, assetFileName(frameNumber))
	stat, err := os.Stat(assetPath)
	if err != nil {
		return FrameInfo{}, false
	}
	return FrameInfo{
		TakeID:      takeID,
		FrameNumber: frameNumber,
		Path:        assetPath,
		SizeBytes:   stat.Size(),
		CreatedAt:   stat.ModTime().UTC(),
	}, true
}

// GetTakeFrames lists all known frames for a take, sorted by frame
// number. Served from the in-memory index when populated, otherwise
// reconstructed from disk; malformed asset filenames are skipped rather
// than failing the whole listing.
func (s *Store) GetTakeFrames(takeID uint) []FrameInfo {
	frames := s.idx.Load().takeFrames(takeID)
	if len(frames) == 0 {
		frames = s.reconstructFromDisk(takeID)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].FrameNumber < frames[j].FrameNumber })
	return frames
}

// GetFrameCount returns the number of known frames for a take.
func (s *Store) GetFrameCount(takeID uint) int {
	return len(s.GetTakeFrames(takeID))
}

// FinalizeTake forces an index flush for a take whose capture session has
// ended.
func (s *Store) FinalizeTake(takeID uint) bool {
	dir, ok := s.resolver.ResolveTakeDir(takeID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushIndexLocked(takeID, filepath.Join(dir, framesDirName))
}

// DeleteTake removes the take's asset directory and drops its in-memory
// index entries. Safe to call when the directory is already gone.
func (s *Store) DeleteTake(takeID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir, ok := s.resolver.ResolveTakeDir(takeID); ok {
		framesDir := filepath.Join(dir, framesDirName)
		if err := safeops.RemoveTree(s.logger, framesDir, s.policy); err != nil {
			s.logger.Error("delete take: asset removal failed",
				"take_id", takeID, "path", framesDir, "error", err)
			return false
		}
	}

	s.idx.Store(s.idx.Load().withoutTake(takeID))
	delete(s.writesSinceFlush, takeID)
	return true
}

// FlushAll flushes the index file for every take with writes since its
// last flush. Called during engine shutdown, before the metadata store
// closes (directory resolution needs it).
func (s *Store) FlushAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for takeID, pending := range s.writesSinceFlush {
		if pending == 0 {
			continue
		}
		if dir, ok := s.resolver.ResolveTakeDir(takeID); ok {
			s.flushIndexLocked(takeID, filepath.Join(dir, framesDirName))
		}
	}
}

// DropTakeIndex drops in-memory state for a take whose directory was
// removed by the hierarchy manager as part of a subtree delete.
func (s *Store) DropTakeIndex(takeID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx.Store(s.idx.Load().withoutTake(takeID))
	delete(s.writesSinceFlush, takeID)
}

// flushIndexLocked rewrites the consolidated per-take index file. Caller
// holds the write lock.
func (s *Store) flushIndexLocked(takeID uint, framesDir string) bool {
	frames := s.idx.Load().takeFrames(takeID)
	sort.Slice(frames, func(i, j int) bool { return frames[i].FrameNumber < frames[j].FrameNumber })

	out := indexFile{
		TakeID:     takeID,
		FlushedAt:  time.Now().UTC(),
		FrameCount: len(frames),
		Frames:     frames,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		s.logger.Error("index flush: marshal failed", "take_id", takeID, "error", err)
		return false
	}
	if err := safeops.WriteFileAtomic(filepath.Join(framesDir, frameIndexFileName), data, 0o644); err != nil {
		s.logger.Error("index flush: write failed", "take_id", takeID, "error", err)
		return false
	}
	s.writesSinceFlush[takeID] = 0
	return true
}

// reconstructFromDisk rebuilds a take's frame listing by reading sidecar
// files and globbing asset filenames, parsing the embedded frame number.
func (s *Store) reconstructFromDisk(takeID uint) []FrameInfo {
	dir, ok := s.resolver.ResolveTakeDir(takeID)
	if !ok {
		return nil
	}
	framesDir := filepath.Join(dir, framesDirName)

	matches, err := filepath.Glob(filepath.Join(framesDir, "frame_*.png"))
	if err != nil {
		return nil
	}

	var frames []FrameInfo
	for _, assetPath := range matches {
		number, ok := parseFrameNumber(filepath.Base(assetPath))
		if !ok {
			// Tolerate externally created files with unexpected names.
			continue
		}
		if info, ok := readSidecar(takeID, framesDir, number); ok {
			info.Path = assetPath
			frames = append(frames, info)
			continue
		}
		stat, err := os.Stat(assetPath)
		if err != nil {
			continue
		}
		frames = append(frames, FrameInfo{
			TakeID:      takeID,
			FrameNumber: number,
			Path:        assetPath,
			SizeBytes:   stat.Size(),
			CreatedAt:   stat.ModTime().UTC(),
		})
	}
	return frames
}

func readSidecar(takeID uint, framesDir string, frameNumber int) (FrameInfo, bool) {
	var raw struct {
		FrameNumber int     `json:"frame_number"`
		Timestamp   float64 `json:"timestamp"`
		SizeBytes   int64   `json:"size_bytes"`
		CreatedAt   string  `json:"created_at"`
	}
	path := filepath.Join(framesDir, sidecarFileName(frameNumber))
	if err := safeops.ReadJSON(path, &raw); err != nil {
		return FrameInfo{}, false
	}
	info := FrameInfo{
		TakeID:      takeID,
		FrameNumber: frameNumber,
		Path:        filepath.Join(framesDir, assetFileName(frameNumber)),
		SizeBytes:   raw.SizeBytes,
		Timestamp:   raw.Timestamp,
	}
	if t, err := time.Parse(time.RFC3339Nano, raw.CreatedAt); err == nil {
		info.CreatedAt = t
	}
	return info, true
}

func assetFileName(frameNumber int) string {
	return fmt.Sprintf("frame_%06d.png", frameNumber)
}

func sidecarFileName(frameNumber int) string {
	return fmt.Sprintf("frame_%d.json", frameNumber)
}

// parseFrameNumber extracts the frame number from an asset filename like
// frame_000042.png.
func parseFrameNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, ".png")
	numPart, found := strings.CutPrefix(base, "frame_")
	if !found || numPart == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numPart)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Store) recordWriteError() {
	if s.metrics != nil {
		s.metrics.FrameWriteErrors.Inc()
	}
}
