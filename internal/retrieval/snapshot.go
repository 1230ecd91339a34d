package retrieval

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoSnapshot is returned when no index snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no index snapshot")

// SnapshotStore persists the serialized index blob.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, blob []byte) error
	LoadSnapshot(ctx context.Context) ([]byte, error)
}

// FileSnapshotStore keeps the snapshot in a single file.
type FileSnapshotStore struct {
	Path string
}

func (s FileSnapshotStore) SaveSnapshot(_ context.Context, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

func (s FileSnapshotStore) LoadSnapshot(_ context.Context) ([]byte, error) {
	blob, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	return blob, err
}
