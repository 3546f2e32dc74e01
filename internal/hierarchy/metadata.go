package hierarchy

import (
	"path/filepath"

	"github.com/camf-project/camf-go/internal/safeops"
)

// MetadataFileName is the hidden per-directory sidecar recording the
// authoritative id, name and type for that directory. It is the sole
// durable link from a filesystem path back to the relational id when
// name-derived lookup fails.
const MetadataFileName = ".camf_metadata.json"

// EntityType identifies a hierarchy level.
type EntityType string

const (
	EntityProject EntityType = "project"
	EntityScene   EntityType = "scene"
	EntityAngle   EntityType = "angle"
	EntityTake    EntityType = "take"
)

// DirMetadata is the sidecar file contents.
type DirMetadata struct {
	ID   uint       `json:"id"`
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// writeDirMetadata rewrites the sidecar atomically, preserving any
// unknown keys a future version may have added.
func writeDirMetadata(dirPath string, meta DirMetadata) error {
	return safeops.UpdateJSON(filepath.Join(dirPath, MetadataFileName), func(m map[string]any) {
		m["id"] = meta.ID
		m["name"] = meta.Name
		m["type"] = string(meta.Type)
	})
}

// readDirMetadata loads the sidecar; ok is false when the file is absent
// or unreadable (users can delete sidecars out from under us).
func readDirMetadata(dirPath string) (DirMetadata, bool) {
	var meta DirMetadata
	if err := safeops.ReadJSON(filepath.Join(dirPath, MetadataFileName), &meta); err != nil {
		return DirMetadata{}, false
	}
	return meta, true
}
