package safeops

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// WriteFileAtomic writes data to path via a uniquely named temp file in
// the same directory followed by a rename, so concurrent readers never
// observe a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString()[:8])
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file for %s: %w", path, err)
	}
	if err := replaceFile(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// UpdateJSON performs a read-merge-write cycle on a small JSON metadata
// file. The merge function mutates the current contents in place; a
// missing or unparseable file starts from an empty object. The write is
// atomic per WriteFileAtomic.
func UpdateJSON(path string, merge func(map[string]any)) error {
	current := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &current); jsonErr != nil {
			// Corrupt sidecar: start over rather than failing the update.
			current = map[string]any{}
		}
	case os.IsNotExist(err):
		// First write.
	default:
		return fmt.Errorf("reading %s: %w", path, err)
	}

	merge(current)

	out, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	return WriteFileAtomic(path, out, 0o644)
}

// ReadJSON loads a JSON file into out, distinguishing absence from
// malformed contents.
func ReadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
