package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"

	"iptv-check/work/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps the sql.DB holding stored playlist links and run history.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the SQLite database at file and applies
// pending migrations.
func Open(file string) (*DB, error) {
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + file + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}

	// single connection: run history writes come from one goroutine at a time
	conn.SetMaxOpenConns(1)

	db := &DB{DB: conn, path: file}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Debug("{database - Open} opened %s", file)
	return db, nil
}

// migrate applies the embedded migrations newer than the ones recorded in
// schema_migrations, in file name order.
func (db *DB) migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := db.appliedVersions()
	if err != nil {
		return err
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		name := path.Base(file)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			return fmt.Errorf("migration %s has no version prefix", name)
		}
		if applied[version] {
			continue
		}
		if err := db.apply(file, version); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		logger.Debug("{database - migrate} applied %s", name)
	}
	return nil
}

func (db *DB) appliedVersions() (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (db *DB) apply(file string, version int) error {
	script, err := migrations.ReadFile(file)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(script)); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", version, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// Path is the database file location.
func (db *DB) Path() string { return db.path }

func (db *DB) Close() error {
	logger.Debug("{database - Close} closing %s", db.path)
	return db.DB.Close()
}

// Vacuum compacts the database file after old offline rows are purged.
func (db *DB) Vacuum() error {
	_, err := db.Exec("VACUUM")
	return err
}

// GetStats returns row counts per table.
func (db *DB) GetStats() (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range []string{"links", "runs", "offline_streams"} {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table+"_count"] = count
	}
	return stats, nil
}
