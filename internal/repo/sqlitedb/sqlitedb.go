// Package sqlitedb owns the shared SQLite handle for all repositories.
// Every table lives in one database file so that loans can join against
// books, users and categories, and so that foreign keys are enforced.
package sqlitedb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/bookcase/internal/infra/logging"
)

// Config holds configuration for the SQLite database.
type Config struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/librarysvc.db"`
}

// DB wraps the sqlx handle with a write lock shared by all repositories.
type DB struct {
	*sqlx.DB

	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

// Open connects to the SQLite database at the configured path, applies the
// pragmas the repositories rely on and creates the schema if needed.
func Open(cfg Config) (*DB, error) {
	log := logging.GetLogger("repo.sqlitedb").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	return &DB{
		DB:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sqlx.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT    NOT NULL,
			email         TEXT    UNIQUE NOT NULL,
			password_hash BLOB    NOT NULL,
			role          TEXT    NOT NULL,
			created_at    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS categories (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT    UNIQUE NOT NULL,
			description TEXT    NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS books (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT    NOT NULL,
			author      TEXT    NOT NULL,
			isbn        TEXT    UNIQUE NOT NULL,
			publisher   TEXT    NOT NULL DEFAULT '',
			category_id INTEGER NOT NULL REFERENCES categories (id)
		);

		CREATE TABLE IF NOT EXISTS loans (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			book_id     INTEGER NOT NULL REFERENCES books (id),
			user_id     INTEGER NOT NULL REFERENCES users (id),
			loaned_at   INTEGER NOT NULL,
			returned_at INTEGER
		);

		-- One active loan per book, enforced at commit as a backstop to the
		-- conditional insert in the loan repository.
		CREATE UNIQUE INDEX IF NOT EXISTS loans_active_book
			ON loans (book_id) WHERE returned_at IS NULL;

		CREATE INDEX IF NOT EXISTS loans_by_user
			ON loans (user_id, loaned_at);
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Write serializes a mutating statement against the database.
// The returned unlock function must be called in a deferred statement.
func (db *DB) Write() (unlock func()) {
	db.writeLock.Lock()

	return db.writeLock.Unlock
}

// ConstraintErr joins sentinel onto err when err is a SQLite uniqueness
// violation, so that repositories surface domain conflicts instead of
// driver errors. Any other error is returned unchanged.
func ConstraintErr(err error, sentinel error) error {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return errors.Join(sentinel, err)
		default:
			return err
		}
	}

	return err
}

// Close closes the underlying database handle.
func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
