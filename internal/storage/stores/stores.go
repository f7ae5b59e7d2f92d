// Package stores opens the cache store selected in the config.
package stores

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kgellert/trimer-client/internal/config"
	"github.com/kgellert/trimer-client/internal/storage"
	"github.com/kgellert/trimer-client/internal/storage/memory"
	"github.com/kgellert/trimer-client/internal/storage/pebblestore"
	"github.com/kgellert/trimer-client/internal/storage/postgres"
	"github.com/kgellert/trimer-client/internal/storage/s3store"
	"github.com/kgellert/trimer-client/internal/storage/sqlite"
)

const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Pebble   = "pebble"
	S3       = "s3"
)

var (
	ErrUnknownStore = errors.New("unknown cache store")
	ErrMissingDSN   = errors.New("cache dsn is required")
	ErrMissingPath  = errors.New("cache path is required")
	ErrMissingS3    = errors.New("s3 bucket is required")
)

func Open(ctx context.Context, cache config.CacheConfig, s3cfg config.S3Config) (storage.Store, error) {
	const op = "storage.stores.Open"

	switch cache.Store {
	case Memory, "":
		return memory.New(), nil

	case SQLite:
		path := cache.DSN
		if path == "" {
			path = cache.Path
		}
		if path == "" {
			return nil, fmt.Errorf("%s: %w", op, ErrMissingPath)
		}
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		s, err := sqlite.New(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil

	case Postgres:
		if cache.DSN == "" {
			return nil, fmt.Errorf("%s: %w", op, ErrMissingDSN)
		}
		s, err := postgres.New(ctx, cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil

	case Pebble:
		if cache.Path == "" {
			return nil, fmt.Errorf("%s: %w", op, ErrMissingPath)
		}
		s, err := pebblestore.New(cache.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil

	case S3:
		if s3cfg.Bucket == "" {
			return nil, fmt.Errorf("%s: %w", op, ErrMissingS3)
		}
		client, err := s3store.NewClient(ctx, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s3store.New(client, s3cfg.Bucket, s3cfg.Prefix), nil
	}

	return nil, fmt.Errorf("%s: %q: %w", op, cache.Store, ErrUnknownStore)
}
