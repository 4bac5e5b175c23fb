// Package sqlite opens the gateway's SQLite database (users and knowledge
// bookkeeping) and applies its embedded migrations.
// Uses modernc.org/sqlite, a pure-Go driver, so the binary builds without CGO.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Register the modernc sqlite driver under the name "sqlite"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database (tests).
const MemoryPath = ":memory:"

// Options tunes the connection. Zero fields take the DefaultOptions value.
type Options struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
	// CreateDir creates the parent directory of a file path when missing.
	CreateDir bool
}

// DefaultOptions returns the settings used by NewDB.
func DefaultOptions() Options {
	return Options{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}
}

// NewDB opens (or creates) the database at path with DefaultOptions.
// The parent directory must already exist.
func NewDB(path string) (*sql.DB, error) {
	return Open(path, DefaultOptions())
}

// Open opens (or creates) the database at path:
//   - WAL journal mode, so streaming requests can read while an upload records
//   - foreign keys enforced
//   - busy timeout instead of immediate SQLITE_BUSY
//   - synchronous=NORMAL, which is safe under WAL
//
// An in-memory path is pinned to one connection; every extra connection would
// otherwise see its own empty database.
func Open(path string, opts Options) (*sql.DB, error) {
	opts = withDefaults(opts)

	memory := path == MemoryPath
	if !memory {
		if err := ensureDir(filepath.Dir(path), opts.CreateDir); err != nil {
			return nil, fmt.Errorf("sqlite.Open: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: open %q: %w", path, err)
	}

	if memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: ping %q: %w", path, err)
	}
	return db, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = def.BusyTimeout
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = def.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = def.MaxIdleConns
	}
	return opts
}

func ensureDir(dir string, create bool) error {
	_, err := os.Stat(dir)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat %q: %w", dir, err)
	}
	if !create {
		return fmt.Errorf("parent directory %q does not exist", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %q: %w", dir, err)
	}
	return nil
}

// dsn encodes the PRAGMAs as _pragma query params, applied on every new connection.
func dsn(path string, opts Options) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"foreign_keys(ON)",
		fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()),
		"synchronous(NORMAL)",
		"temp_store(MEMORY)",
	}
	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteString("?")
		} else {
			b.WriteString("&")
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}
