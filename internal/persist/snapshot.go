// Package persist writes the registry's state to disk and reads it
// back at startup. Snapshots are best effort: a failed write is logged
// and surfaced, never fatal to the in-memory operation that caused it.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"roomdesk/internal/domain"

	"github.com/rs/zerolog/log"
)

const snapshotVersion = 1

type snapshot struct {
	Version int           `json:"version"`
	SavedAt time.Time     `json:"saved_at"`
	Rooms   []domain.Room `json:"rooms"`
}

// FileStore keeps the snapshot in a single JSON file, replaced
// atomically via rename so a crash mid-write never leaves a torn file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Save(rooms []domain.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now(),
		Rooms:   rooms,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", domain.ErrSnapshot, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrSnapshot, tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: rename: %v", domain.ErrSnapshot, err)
	}
	log.Debug().Str("module", "persist").Int("rooms", len(rooms)).Str("path", f.path).Msg("snapshot written")
	return nil
}

// Load reads the snapshot, if one exists. A missing file is a normal
// first start and returns no rooms; a corrupt file returns an error so
// the caller can fail closed to an empty registry with a loud log.
func (f *FileStore) Load() ([]domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrSnapshot, f.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: corrupt snapshot %s: %v", domain.ErrSnapshot, f.path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", domain.ErrSnapshot, snap.Version)
	}
	return snap.Rooms, nil
}

// Path reports where the snapshot lives, for logging.
func (f *FileStore) Path() string { return filepath.Clean(f.path) }
