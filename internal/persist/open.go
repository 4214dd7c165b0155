package persist

import (
	"context"
	"path/filepath"

	"github.com/phobologic/docreflect/internal/config"
	"github.com/phobologic/docreflect/internal/model"
)

// Backend is a persisted metadata cache.
type Backend interface {
	Load(ctx context.Context, className string) (*model.ClassMetadata, bool, error)
	Save(ctx context.Context, meta *model.ClassMetadata) error
	Clear(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by cfg.Cache, or nil when caching is
// disabled. A relative SQLite path is taken relative to cfg.Root.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	c := cfg.Cache
	switch c.Backend {
	case "", config.CacheNone:
		return nil, nil
	case config.CacheSQLite:
		path := c.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Root, path)
		}
		s, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CachePostgres:
		if c.DSN == "" {
			return nil, config.Errorf("cache.dsn", "required for the postgres backend")
		}
		s, err := OpenPostgres(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CacheRedis:
		r, err := DialRedis(ctx, c.RedisAddr, c.RedisDB, c.KeyPrefix, c.TTL)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, config.Errorf("cache.backend", "unknown backend %q", c.Backend)
}
