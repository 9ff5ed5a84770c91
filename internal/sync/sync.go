// Package sync mirrors a local directory tree onto a WebDAV share,
// skipping files the state cache knows to be unchanged.
package sync

import (
	"fmt"
	"path"
	"strings"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"webdav-client/internal/cache"
	"webdav-client/internal/fs"
)

type Mirror struct {
	local   fs.Fs
	remote  fs.Fs
	db      cache.Cache
	log     zerolog.Logger
	workers int
	prune   bool
}

type Option func(*Mirror)

// WithWorkers sets the number of parallel uploads.
func WithWorkers(n int) Option {
	return func(m *Mirror) { m.workers = n }
}

// WithPrune removes remote entries that no longer exist locally.
func WithPrune(enabled bool) Option {
	return func(m *Mirror) { m.prune = enabled }
}

func WithLogger(log zerolog.Logger) Option {
	return func(m *Mirror) { m.log = log }
}

func New(local, remote fs.Fs, db cache.Cache, opts ...Option) *Mirror {
	m := &Mirror{
		local:   local,
		remote:  remote,
		db:      db,
		log:     zerolog.Nop(),
		workers: 2,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run mirrors the local root into the remote collection at prefix.
// Directories are created level by level before any upload starts; file
// uploads then run on the worker pool. Returns the first upload error
// after the pool drains.
func (m *Mirror) Run(prefix string) error {
	start := time.Now()
	prefix = "/" + strings.Trim(prefix, "/")

	entries, err := m.local.Tree("/")
	if err != nil {
		return fmt.Errorf("failed to walk local tree: %w", err)
	}

	if err := m.ensureDir(prefix); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		target := path.Join(prefix, e.Path)
		if cached, err := m.db.Stat(target); err == nil && cached.IsDir {
			continue
		}
		if err := m.remote.Mkdir(target); err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", target, err)
		}
		if err := m.db.Insert(fs.EntryInfo{Path: target, IsDir: true, LastModified: e.LastModified}); err != nil {
			return err
		}
	}

	jobs := make(chan fs.EntryInfo)
	var wg gosync.WaitGroup
	var mu gosync.Mutex
	var firstErr error
	uploaded, skipped := 0, 0

	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				changed, err := m.syncFile(prefix, e)
				mu.Lock()
				switch {
				case err != nil:
					m.log.Error().Str("path", e.Path).Err(err).Msg("upload failed")
					if firstErr == nil {
						firstErr = err
					}
				case changed:
					uploaded++
				default:
					skipped++
				}
				mu.Unlock()
			}
		}()
	}

	for _, e := range entries {
		if !e.IsDir {
			jobs <- e
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	if m.prune {
		if err := m.pruneExtraneous(prefix, entries); err != nil {
			return err
		}
	}

	m.log.Info().
		Int("uploaded", uploaded).
		Int("skipped", skipped).
		Dur("duration", time.Since(start)).
		Msg("mirror completed")
	return nil
}

// ensureDir creates the target collection one level at a time; a child
// MKCOL fails while its parent is still missing.
func (m *Mirror) ensureDir(p string) error {
	if p == "/" {
		return nil
	}
	walked := ""
	for _, segment := range strings.Split(strings.Trim(p, "/"), "/") {
		walked += "/" + segment
		if err := m.remote.Mkdir(walked); err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", walked, err)
		}
	}
	return nil
}

func (m *Mirror) syncFile(prefix string, e fs.EntryInfo) (bool, error) {
	target := path.Join(prefix, e.Path)

	if cached, err := m.db.Stat(target); err == nil && !cached.IsDir &&
		cached.Size == e.Size && cached.LastModified == e.LastModified {
		return false, nil
	}

	stream, err := m.local.ReadStream(e.Path)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	if err := m.remote.WriteStream(target, stream, e.Size); err != nil {
		return false, err
	}

	m.log.Debug().Str("path", target).Int64("size", e.Size).Msg("uploaded")
	return true, m.db.Insert(fs.EntryInfo{
		Path:         target,
		Size:         e.Size,
		LastModified: e.LastModified,
	})
}

// pruneExtraneous removes cached remote entries that vanished locally,
// children before parents.
func (m *Mirror) pruneExtraneous(prefix string, entries []fs.EntryInfo) error {
	current := map[string]bool{prefix: true}
	for _, e := range entries {
		current[path.Join(prefix, e.Path)] = true
	}

	cached, err := m.db.List(prefix)
	if err != nil {
		return err
	}

	for i := len(cached) - 1; i >= 0; i-- {
		c := cached[i]
		if current[c.Path] {
			continue
		}
		if err := m.remote.Remove(c.Path); err != nil && !fs.IsNotFound(err) {
			return fmt.Errorf("failed to remove remote %s: %w", c.Path, err)
		}
		if err := m.db.Delete(c.Path); err != nil {
			return err
		}
		m.log.Debug().Str("path", c.Path).Msg("pruned")
	}
	return nil
}
