package cart

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore persists the cart item list to a JSON file. It implements
// Subscriber so persistence reacts to mutations instead of living inside
// them. Only the item list is written; nothing else survives a restart.
type FileStore struct {
	path   string
	logger *zap.Logger
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// CartChanged implements Subscriber. Write failures are logged, never
// surfaced; the in-memory cart stays authoritative.
func (f *FileStore) CartChanged(items []Item) {
	data, err := json.Marshal(items)
	if err != nil {
		f.logger.Error("Failed to encode cart", zap.Error(err))
		return
	}

	// Write-then-rename so a crash never leaves a torn file
	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		f.logger.Error("Failed to create cart directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		f.logger.Error("Failed to write cart file", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, f.path); err != nil {
		f.logger.Error("Failed to replace cart file", zap.Error(err))
	}
}

// Load reads the persisted item list. A missing file means an empty
// cart, not an error.
func (f *FileStore) Load() ([]Item, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
