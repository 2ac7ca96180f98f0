package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/sixc/internal/model"
	"go.uber.org/zap"
)

// New builds the cache selected by cfg.Backend
// A disabled cache is a short-lived memory cache so one run still dedupes its own calls.
func New(ctx context.Context, cfg model.CacheConfig, logger *zap.Logger) (Cache, error) {
	memory := NewMemoryCache(cfg.TTL, 10*time.Minute)
	if !cfg.Enabled {
		return memory, nil
	}

	switch cfg.Backend {
	case "", "memory":
		return memory, nil
	case "disk":
		return NewDiskCache(ExpandHome(cfg.Dir), cfg.TTL), nil
	case "layered":
		return NewLayered(memory, NewDiskCache(ExpandHome(cfg.Dir), cfg.TTL)), nil
	case "sqlite":
		path := ExpandHome(cfg.SQLite)
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		store, err := NewSQLiteCache(path, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return NewLayered(memory, store), nil
	case "redis":
		store, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache %s: %w", cfg.RedisAddr, err)
		}
		return NewLayered(memory, store), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s (supported: memory, disk, layered, sqlite, redis)", cfg.Backend)
	}
}

// Close releases c if its store holds resources
func Close(c Cache) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ExpandHome resolves a leading ~/ against the user's home directory
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
