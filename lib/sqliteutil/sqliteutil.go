package sqliteutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

func isRemote(path string) bool {
	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "libsql", "wss", "ws", "https", "http":
		return true
	}
	return false
}

// OpenDB opens the sqlite database at `path` and applies `schema` to it.
// `path` may be a local file path, `:memory:`, or a remote libsql url
// (libsql://, wss://, https://).
func OpenDB(schema, path string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if isRemote(path) {
		db, err = sql.Open("libsql", path)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	} else {
		if path != ":memory:" {
			os.MkdirAll(filepath.Dir(path), 0777)
		}
		db, err = sql.Open("sqlite", path)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
		// see this stackoverflow post for information on why the following
		// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
		db.SetMaxOpenConns(1)
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return nil, wrapOpenDB(err)
	}

	return db, nil
}
