package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kgellert/trimer-client/internal/storage/sqlstore"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_name TEXT NOT NULL,
	url        TEXT NOT NULL,
	status     INTEGER NOT NULL,
	header     TEXT NOT NULL,
	body       BLOB NOT NULL,
	stored_at  INTEGER NOT NULL,
	PRIMARY KEY (cache_name, url)
)`

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// New opens the database at storagePath. ":memory:" gives a private
// in-memory database.
func New(ctx context.Context, storagePath string) (*sqlstore.Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sqlx.Open("sqlite", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// SQLite serializes writers; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: apply schema: %w", op, err)
	}

	return sqlstore.New(db, sqlstore.SQLite), nil
}
