package pebblestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/kgellert/trimer-client/internal/storage"
)

const (
	keyPrefix = "cache:"
	sep       = 0x00
)

// Storage keeps cached responses in a pebble database, one key per
// cache name and URL.
type Storage struct {
	db *pebble.DB
}

func New(path string) (*Storage, error) {
	const op = "storage.pebblestore.New"

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{db: db}, nil
}

func cachePrefix(cache string) []byte {
	return append([]byte(keyPrefix+cache), sep)
}

func entryKey(cache, url string) []byte {
	return append(cachePrefix(cache), url...)
}

func (s *Storage) Put(_ context.Context, cache string, e storage.Entry) error {
	const op = "storage.pebblestore.Put"

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := s.db.Set(entryKey(cache, e.URL), data, pebble.Sync); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Match(_ context.Context, cache, url string) (storage.Entry, error) {
	const op = "storage.pebblestore.Match"

	v, closer, err := s.db.Get(entryKey(cache, url))
	if errors.Is(err, pebble.ErrNotFound) {
		return storage.Entry{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	defer closer.Close()

	var e storage.Entry
	if err := json.Unmarshal(v, &e); err != nil {
		return storage.Entry{}, fmt.Errorf("%s: decode: %w", op, err)
	}
	return e, nil
}

func (s *Storage) Keys(context.Context) ([]string, error) {
	const op = "storage.pebblestore.Keys"

	prefix := []byte(keyPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer iter.Close()

	var names []string
	for iter.First(); iter.Valid(); {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		rest := key[len(prefix):]
		i := bytes.IndexByte(rest, sep)
		if i < 0 {
			iter.Next()
			continue
		}
		name := string(rest[:i])
		names = append(names, name)

		// skip the remaining entries of this cache
		next := append([]byte(keyPrefix+name), sep+1)
		iter.SeekGE(next)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return names, nil
}

func (s *Storage) Delete(_ context.Context, caches ...string) error {
	const op = "storage.pebblestore.Delete"

	if len(caches) == 0 {
		return nil
	}

	b := s.db.NewBatch()
	defer b.Close()

	for _, name := range caches {
		start := cachePrefix(name)
		end := append([]byte(keyPrefix+name), sep+1)
		if err := b.DeleteRange(start, end, nil); err != nil {
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
