package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// loadJSON reads a persisted document. A missing file is not an error:
// fresh deployments start empty.
func loadJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// saveJSON rewrites the document wholesale. The registry is small and
// single-writer, so a full rewrite per mutation keeps recovery trivial.
func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
