package cache

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"webdav-client/internal/fs"
)

type cacheDB struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewCacheDB opens (or creates) the mirror state database at dbPath.
func NewCacheDB(dbPath string) (Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = memory;
	PRAGMA case_sensitive_like = ON;
	`
	if _, err := db.Exec(pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		path TEXT NOT NULL PRIMARY KEY,
		size INTEGER NOT NULL,
		last_modified INTEGER NOT NULL,
		is_dir INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &cacheDB{db: db}, nil
}

func (c *cacheDB) Close() error {
	return c.db.Close()
}

func (c *cacheDB) Insert(entries ...fs.EntryInfo) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO entries (path, size, last_modified, is_dir, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO UPDATE SET
			size = excluded.size,
			last_modified = excluded.last_modified,
			is_dir = excluded.is_dir,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, e := range entries {
		if _, err := stmt.Exec(e.Path, e.Size, e.LastModified, e.IsDir, now); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

func (c *cacheDB) Stat(path string) (fs.EntryInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var e fs.EntryInfo
	err := c.db.QueryRow(`
		SELECT path, size, last_modified, is_dir FROM entries WHERE path = ?
	`, path).Scan(&e.Path, &e.Size, &e.LastModified, &e.IsDir)
	if err != nil {
		return fs.EntryInfo{}, err
	}
	return e, nil
}

func (c *cacheDB) List(prefix string) ([]fs.EntryInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Match only at a path-segment boundary: the prefix itself plus
	// entries below it. "/backup" must not pick up "/backup2/...".
	dir := strings.TrimSuffix(prefix, "/")
	rows, err := c.db.Query(`
		SELECT path, size, last_modified, is_dir FROM entries
		WHERE path = ? OR path LIKE ? ESCAPE '\'
		ORDER BY path
	`, dir, escapeLike(dir)+"/%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []fs.EntryInfo
	for rows.Next() {
		var e fs.EntryInfo
		if err := rows.Scan(&e.Path, &e.Size, &e.LastModified, &e.IsDir); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c *cacheDB) Delete(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`DELETE FROM entries WHERE path = ?`, path)
	return err
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
