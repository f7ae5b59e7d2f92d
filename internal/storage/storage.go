// Package storage defines the response store behind the cache manager.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

var ErrNotFound = errors.New("entry not found")

// Entry is one cached response, keyed by cache name and request URL.
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

type Store interface {
	// Put stores e under cache, replacing an entry with the same URL.
	Put(ctx context.Context, cache string, e Entry) error
	// Match returns ErrNotFound when cache holds nothing for url.
	Match(ctx context.Context, cache, url string) (Entry, error)
	// Keys lists the names of caches holding at least one entry.
	Keys(ctx context.Context) ([]string, error)
	// Delete drops every entry of the named caches.
	Delete(ctx context.Context, caches ...string) error
	Close() error
}

// EncodeHeader serializes h for backends that store headers as text.
func EncodeHeader(h http.Header) (string, error) {
	if h == nil {
		h = http.Header{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeHeader(s string) (http.Header, error) {
	h := http.Header{}
	if s == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, err
	}
	return h, nil
}
