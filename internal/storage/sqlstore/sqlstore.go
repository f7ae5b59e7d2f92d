// Package sqlstore implements storage.Store over database/sql through sqlx.
// The postgres and sqlite packages open the database and apply the schema.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kgellert/trimer-client/internal/storage"
	"github.com/lib/pq"
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

type Storage struct {
	db      *sqlx.DB
	dialect Dialect
}

type entryRow struct {
	CacheName string `db:"cache_name"`
	URL       string `db:"url"`
	Status    int    `db:"status"`
	Header    string `db:"header"`
	Body      []byte `db:"body"`
	StoredAt  int64  `db:"stored_at"`
}

// New wraps an open database whose schema is already in place.
func New(db *sqlx.DB, dialect Dialect) *Storage {
	return &Storage{db: db, dialect: dialect}
}

func (s *Storage) DB() *sqlx.DB { return s.db }

func (s *Storage) Put(ctx context.Context, cache string, e storage.Entry) error {
	const op = "storage.sql.Put"

	header, err := storage.EncodeHeader(e.Header)
	if err != nil {
		return fmt.Errorf("%s: encode header: %w", op, err)
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}

	_, err = s.db.NamedExecContext(
		ctx,
		`INSERT INTO cache_entries (cache_name, url, status, header, body, stored_at)
		VALUES (:cache_name, :url, :status, :header, :body, :stored_at)
		ON CONFLICT (cache_name, url) DO UPDATE SET
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		entryRow{
			CacheName: cache,
			URL:       e.URL,
			Status:    e.Status,
			Header:    header,
			Body:      body,
			StoredAt:  e.StoredAt.UnixNano(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: upsert entry: %w", op, err)
	}

	return nil
}

func (s *Storage) Match(ctx context.Context, cache, url string) (storage.Entry, error) {
	const op = "storage.sql.Match"

	var row entryRow
	err := s.db.GetContext(
		ctx,
		&row,
		s.db.Rebind(`SELECT cache_name, url, status, header, body, stored_at
		FROM cache_entries WHERE cache_name = ? AND url = ?`),
		cache, url,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Entry{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Entry{}, fmt.Errorf("%s: select entry: %w", op, err)
	}

	header, err := storage.DecodeHeader(row.Header)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("%s: decode header: %w", op, err)
	}

	return storage.Entry{
		URL:      row.URL,
		Status:   row.Status,
		Header:   header,
		Body:     row.Body,
		StoredAt: time.Unix(0, row.StoredAt).UTC(),
	}, nil
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	const op = "storage.sql.Keys"

	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT DISTINCT cache_name FROM cache_entries ORDER BY cache_name`); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return names, nil
}

func (s *Storage) Delete(ctx context.Context, caches ...string) error {
	const op = "storage.sql.Delete"

	if len(caches) == 0 {
		return nil
	}

	var (
		query string
		args  []any
		err   error
	)
	switch s.dialect {
	case Postgres:
		query = `DELETE FROM cache_entries WHERE cache_name = ANY($1)`
		args = []any{pq.Array(caches)}
	default:
		query, args, err = sqlx.In(`DELETE FROM cache_entries WHERE cache_name IN (?)`, caches)
		if err != nil {
			return fmt.Errorf("%s: build query: %w", op, err)
		}
		query = s.db.Rebind(query)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
