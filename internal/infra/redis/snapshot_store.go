package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"quiz-pipeline-service/internal/retrieval"
)

// SnapshotStore keeps the similarity index snapshot as a single blob so
// instances sharing Redis can skip re-ingestion at startup.
type SnapshotStore struct {
	client *redis.Client
	key    string
}

func NewSnapshotStore(client *redis.Client, key string) *SnapshotStore {
	if key == "" {
		key = "retrieval:index"
	}
	return &SnapshotStore{client: client, key: key}
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, blob []byte) error {
	return s.client.Set(ctx, s.key, blob, 0).Err()
}

func (s *SnapshotStore) LoadSnapshot(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, retrieval.ErrNoSnapshot
	}
	return blob, err
}
