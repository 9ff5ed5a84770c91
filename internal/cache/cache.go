// Package cache persists the state of the last mirror run so unchanged
// files are not uploaded again.
package cache

import "webdav-client/internal/fs"

type Cache interface {
	Close() error

	// Insert upserts entries in a single transaction.
	Insert(entries ...fs.EntryInfo) error

	// Stat returns the cached entry for path, or an error when absent.
	Stat(path string) (fs.EntryInfo, error)

	// List returns the entry cached at prefix itself, if any, plus every
	// entry below it at a path-segment boundary, ordered by path.
	List(prefix string) ([]fs.EntryInfo, error)

	Delete(path string) error
}
