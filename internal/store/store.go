package store

import (
	"context"
	"errors"
	"fmt"

	"racebot/internal/config"
)

const (
	NamespaceRaces  = "races"
	NamespaceBoards = "boards"
)

var ErrNotFound = errors.New("key not found")

// Store is a key to blob hash. Implementations are safe for concurrent use.
type Store interface {
	Save(ctx context.Context, id string, blob []byte) error
	// Load returns ErrNotFound for a missing id.
	Load(ctx context.Context, id string) ([]byte, error)
	// Delete of a missing id is not an error.
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) (map[string][]byte, error)
}

// Backend is an opened persistence backend handing out one Store per
// namespace.
type Backend interface {
	Store(namespace string) (Store, error)
	Close() error
}

func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.StoreBackend {
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL, map[string]string{
			NamespaceRaces:  cfg.RedisRacesKey,
			NamespaceBoards: cfg.RedisBoardsKey,
		})
	case "bolt":
		return OpenBolt(cfg.BoltPath)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
