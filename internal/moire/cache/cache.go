// Package cache stores encoded renders keyed by their normalized parameters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/yungbote/moire/internal/moire/config"
	"github.com/yungbote/moire/internal/platform/logger"
)

// Cache is a byte store for rendered images. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Backend() string
	Close() error
}

// Key hashes the canonical JSON form of parts. Callers pass already-normalized
// values so that equivalent requests share an entry.
func Key(parts ...any) (string, error) {
	raw, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// New builds the backend selected in cfg. cfg is expected to be validated.
func New(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) (Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return Noop{}, nil
	case "memory":
		return NewMemory(cfg.MemoryEntries, cfg.TTL.Duration)
	case "redis":
		return NewRedis(ctx, cfg.Redis, cfg.TTL.Duration, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error         { return nil }
func (Noop) Backend() string                                   { return "none" }
func (Noop) Close() error                                      { return nil }
