package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SnapshotKey is the store key under which scan results are persisted.
const SnapshotKey = "harvest.snapshot"

// DataStore is the save/load contract the pipeline's consumers use to
// persist processed results. The pipeline treats the wire format as a
// black box.
type DataStore interface {
	SaveData(key string, value interface{}) error
	GetData(key string, out interface{}) error
	RemoveData(key string) error
}

// FileStore is a file-backed DataStore: one JSON payload per key plus
// a YAML index of what is stored.
type FileStore struct {
	dir string
}

// storeIndex is the YAML index of stored keys.
type storeIndex struct {
	Version string            `yaml:"version"`
	Entries []storeIndexEntry `yaml:"entries"`
}

type storeIndexEntry struct {
	Key       string    `yaml:"key"`
	File      string    `yaml:"file"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// DefaultStoreDir returns the per-user location of the snapshot store.
func DefaultStoreDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".cursor-harvest"), nil
}

// SaveData writes value under key and updates the index.
func (s *FileStore) SaveData(key string, value interface{}) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	file := keyFileName(key)
	if err := os.WriteFile(filepath.Join(s.dir, file), data, 0644); err != nil {
		return err
	}

	index := s.loadIndex()
	updated := false
	for i := range index.Entries {
		if index.Entries[i].Key == key {
			index.Entries[i].File = file
			index.Entries[i].UpdatedAt = time.Now()
			updated = true
			break
		}
	}
	if !updated {
		index.Entries = append(index.Entries, storeIndexEntry{
			Key:       key,
			File:      file,
			UpdatedAt: time.Now(),
		})
	}
	return s.saveIndex(index)
}

// GetData reads the value stored under key into out. A missing key
// leaves out untouched and returns os.ErrNotExist.
func (s *FileStore) GetData(key string, out interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, keyFileName(key)))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// RemoveData deletes a stored key. Removing an absent key is a no-op.
func (s *FileStore) RemoveData(key string) error {
	if err := os.Remove(filepath.Join(s.dir, keyFileName(key))); err != nil && !os.IsNotExist(err) {
		return err
	}
	index := s.loadIndex()
	kept := index.Entries[:0]
	for _, entry := range index.Entries {
		if entry.Key != key {
			kept = append(kept, entry)
		}
	}
	index.Entries = kept
	return s.saveIndex(index)
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.dir, "index.yaml")
}

func (s *FileStore) loadIndex() *storeIndex {
	index := &storeIndex{Version: "1.0"}
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return index
	}
	if err := yaml.Unmarshal(data, index); err != nil {
		LogWarn("Failed to parse store index, starting fresh: %v", err)
		return &storeIndex{Version: "1.0"}
	}
	return index
}

func (s *FileStore) saveIndex(index *storeIndex) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return os.WriteFile(s.indexPath(), data, 0644)
}

// keyFileName maps a store key to a filesystem-safe payload file name.
func keyFileName(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
	return safe + ".json"
}
