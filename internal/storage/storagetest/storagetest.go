// Package storagetest checks a storage.Store implementation against the
// behavior the cache manager relies on.
package storagetest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/kgellert/trimer-client/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(url, body string) storage.Entry {
	return storage.Entry{
		URL:      url,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"text/css"}},
		Body:     []byte(body),
		StoredAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

// Run exercises store, which must start empty.
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, err := store.Match(ctx, "v1", "http://x/missing.css")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("put and match", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "v1", entry("http://x/a.css", "a")))

		got, err := store.Match(ctx, "v1", "http://x/a.css")
		require.NoError(t, err)
		assert.Equal(t, "http://x/a.css", got.URL)
		assert.Equal(t, http.StatusOK, got.Status)
		assert.Equal(t, "text/css", got.Header.Get("Content-Type"))
		assert.Equal(t, []byte("a"), got.Body)
		assert.True(t, got.StoredAt.Equal(entry("", "").StoredAt))

		_, err = store.Match(ctx, "v2", "http://x/a.css")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("put replaces", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "v1", entry("http://x/a.css", "a2")))

		got, err := store.Match(ctx, "v1", "http://x/a.css")
		require.NoError(t, err)
		assert.Equal(t, []byte("a2"), got.Body)
	})

	t.Run("keys and delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "v0", entry("http://x/old.css", "old")))
		require.NoError(t, store.Put(ctx, "other", entry("http://x/o.css", "o")))

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"v0", "v1", "other"}, keys)

		require.NoError(t, store.Delete(ctx, "v0", "other", "never-existed"))

		keys, err = store.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, keys)

		_, err = store.Match(ctx, "v0", "http://x/old.css")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.Match(ctx, "v1", "http://x/a.css")
		assert.NoError(t, err)

		require.NoError(t, store.Delete(ctx))
	})
}
