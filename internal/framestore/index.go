package framestore

import (
	"maps"
	"time"
)

// FrameInfo describes one stored frame asset.
type FrameInfo struct {
	TakeID      uint      `json:"take_id"`
	FrameNumber int       `json:"frame_number"`
	Path        string    `json:"path"`
	SizeBytes   int64     `json:"size_bytes"`
	Timestamp   float64   `json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`
}

type frameKey struct {
	takeID      uint
	frameNumber int
}

// indexSnapshot is an immutable view of the in-memory frame index.
// Writers build a new snapshot under the write lock and swap it in
// atomically; readers never lock and may observe a slightly stale
// snapshot, never a corrupt one.
type indexSnapshot struct {
	frames map[frameKey]FrameInfo
}

func emptySnapshot() *indexSnapshot {
	return &indexSnapshot{frames: map[frameKey]FrameInfo{}}
}

func (s *indexSnapshot) with(info FrameInfo) *indexSnapshot {
	next := make(map[frameKey]FrameInfo, len(s.frames)+1)
	maps.Copy(next, s.frames)
	next[frameKey{info.TakeID, info.FrameNumber}] = info
	return &indexSnapshot{frames: next}
}

func (s *indexSnapshot) withoutTake(takeID uint) *indexSnapshot {
	next := make(map[frameKey]FrameInfo, len(s.frames))
	for k, v := range s.frames {
		if k.takeID != takeID {
			next[k] = v
		}
	}
	return &indexSnapshot{frames: next}
}

func (s *indexSnapshot) takeFrames(takeID uint) []FrameInfo {
	var out []FrameInfo
	for k, v := range s.frames {
		if k.takeID == takeID {
			out = append(out, v)
		}
	}
	return out
}

// indexFile is the on-disk shape of the per-take frame_index.json.
type indexFile struct {
	TakeID     uint        `json:"take_id"`
	FlushedAt  time.Time   `json:"flushed_at"`
	FrameCount int         `json:"frame_count"`
	Frames     []FrameInfo `json:"frames"`
}
