// Package hierarchy maintains the name-legible directory tree mirroring
// the Project -> Scene -> Angle -> Take structure. The tree is a derived,
// best-effort projection of the metadata store: lookups return an absence
// signal, mutations return a boolean success signal and log the cause, so
// callers decide whether a filesystem failure is fatal or advisory.
package hierarchy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/camf-project/camf-go/internal/logging"
	"github.com/camf-project/camf-go/internal/safeops"
)

// Manager creates, finds, renames and deletes the name-suffixed entity
// directories under a fixed base directory.
type Manager struct {
	baseDir string
	policy  safeops.RetryPolicy
	logger  *slog.Logger
	uploads *UploadGuard
}

// NewManager creates a hierarchy manager rooted at baseDir, creating the
// directory if needed. Failure to create the base directory is the one
// unrecoverable condition and aborts startup.
func NewManager(baseDir string, policy safeops.RetryPolicy) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create base storage directory %s: %w", baseDir, err)
	}
	return &Manager{
		baseDir: baseDir,
		policy:  policy,
		logger:  logging.ForService("hierarchy"),
		uploads: NewUploadGuard(),
	}, nil
}

// BaseDir returns the root of the managed tree.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Uploads returns the guard used to refuse deletes during asset uploads.
func (m *Manager) Uploads() *UploadGuard {
	return m.uploads
}

// CreateDir creates the directory for an entity under parentPath, named
// `<sanitized-name>_<id>` with an incrementing counter appended on
// collision, and writes the hidden metadata sidecar. Returns the created
// path and whether creation succeeded.
func (m *Manager) CreateDir(parentPath string, typ EntityType, id uint, name string) (string, bool) {
	dirName, ok := m.uniqueDirName(parentPath, dirBaseName(name, id))
	if !ok {
		return "", false
	}
	path := filepath.Join(parentPath, dirName)

	if err := os.MkdirAll(path, 0o755); err != nil {
		m.logger.Error("failed to create entity directory",
			"type", typ, "id", id, "path", path, "error", err)
		return "", false
	}
	if err := writeDirMetadata(path, DirMetadata{ID: id, Name: name, Type: typ}); err != nil {
		m.logger.Error("failed to write directory metadata",
			"type", typ, "id", id, "path", path, "error", err)
		return "", false
	}
	return path, true
}

// FindDir locates the directory for an entity under parentPath by id.
// Two resolver strategies are tried in order: the trailing `_<id>` suffix
// of each child name, then each child's hidden metadata file. Either can
// independently fail (manual renames break the suffix, users can delete
// sidecars), so both are kept.
func (m *Manager) FindDir(parentPath string, typ EntityType, id uint) (string, bool) {
	entries, err := os.ReadDir(parentPath)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if suffixID, ok := parseIDSuffix(entry.Name()); ok && suffixID == id {
			return filepath.Join(parentPath, entry.Name()), true
		}
	}

	// Suffix scan missed; fall back to the sidecar files.
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(parentPath, entry.Name())
		if meta, ok := readDirMetadata(path); ok && meta.ID == id && meta.Type == typ {
			return path, true
		}
	}
	return "", false
}

// ReadMetadata returns the authoritative sidecar for an entity directory.
// Display paths read this, never the directory name, because the two may
// transiently disagree after a failed physical rename.
func (m *Manager) ReadMetadata(dirPath string) (DirMetadata, bool) {
	return readDirMetadata(dirPath)
}

// RenameDir renames an entity directory to match newName. When the target
// resolves to the current path only the sidecar is rewritten (still
// atomically). When the physical rename fails the directory is left
// untouched but the sidecar is rewritten in place with the new name, the
// divergence is logged with both identifiers, and false is returned; the
// metadata store remains authoritative and callers tolerate the drift
// until a later rename succeeds.
func (m *Manager) RenameDir(parentPath string, typ EntityType, id uint, newName string) bool {
	current, found := m.FindDir(parentPath, typ, id)
	if !found {
		m.logger.Warn("rename: entity directory not found", "type", typ, "id", id)
		return false
	}

	target := dirBaseName(newName, id)
	if filepath.Base(current) == target {
		// Same path: metadata-only update.
		if err := writeDirMetadata(current, DirMetadata{ID: id, Name: newName, Type: typ}); err != nil {
			m.logger.Error("rename: metadata rewrite failed",
				"type", typ, "id", id, "path", current, "error", err)
			return false
		}
		return true
	}

	targetName, ok := m.uniqueDirName(parentPath, target)
	if !ok {
		return false
	}
	targetPath := filepath.Join(parentPath, targetName)

	if err := safeops.RenameDir(m.logger, current, targetPath, m.policy); err != nil {
		// Physical rename failed: record the intended name in the old
		// location so reads stay correct, and report failure.
		m.logger.Error("rename: physical rename failed, directory name and recorded name diverge",
			"type", typ, "id", id,
			"old_path", current, "new_name", newName, "error", err)
		if metaErr := writeDirMetadata(current, DirMetadata{ID: id, Name: newName, Type: typ}); metaErr != nil {
			m.logger.Error("rename: metadata fallback also failed",
				"type", typ, "id", id, "path", current, "error", metaErr)
		}
		return false
	}

	if err := writeDirMetadata(targetPath, DirMetadata{ID: id, Name: newName, Type: typ}); err != nil {
		m.logger.Error("rename: metadata rewrite failed after move",
			"type", typ, "id", id, "path", targetPath, "error", err)
		return false
	}
	return true
}

// DeleteDir removes an entity directory subtree with retry on transient
// errors. Deletion is refused outright while an asset upload is
// registered against the take.
func (m *Manager) DeleteDir(parentPath string, typ EntityType, id uint) bool {
	if typ == EntityTake && m.uploads.Active(id) {
		m.logger.Warn("delete refused: upload in progress", "type", typ, "id", id)
		return false
	}

	path, found := m.FindDir(parentPath, typ, id)
	if !found {
		// Already gone; deletion is idempotent.
		return true
	}

	if err := safeops.RemoveTree(m.logger, path, m.policy); err != nil {
		m.logger.Error("failed to delete entity directory",
			"type", typ, "id", id, "path", path, "error", err)
		return false
	}
	return true
}

// dirBaseName builds the canonical `<sanitized-name>_<id>` directory name.
func dirBaseName(name string, id uint) string {
	return fmt.Sprintf("%s_%d", SanitizeName(name), id)
}

// uniqueDirName appends an incrementing counter to base until no sibling
// under parentPath carries that name. A prior rename can leave a stale
// directory, and two entities can sanitize to the same base; neither may
// be overwritten.
func (m *Manager) uniqueDirName(parentPath, base string) (string, bool) {
	candidate := base
	for counter := 1; ; counter++ {
		if _, err := os.Stat(filepath.Join(parentPath, candidate)); os.IsNotExist(err) {
			return candidate, true
		}
		if counter > 10000 {
			m.logger.Error("could not find unique directory name", "base", base, "parent", parentPath)
			return "", false
		}
		candidate = fmt.Sprintf("%s_%d", base, counter)
	}
}

// parseIDSuffix extracts the trailing `_<digits>` id from a directory
// name.
func parseIDSuffix(dirName string) (uint, bool) {
	idx := strings.LastIndexByte(dirName, '_')
	if idx < 0 || idx == len(dirName)-1 {
		return 0, false
	}
	id, err := strconv.ParseUint(dirName[idx+1:], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
