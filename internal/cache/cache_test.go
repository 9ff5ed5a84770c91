package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webdav-client/internal/fs"
)

func newTestCache(t *testing.T) Cache {
	t.Helper()
	c, err := NewCacheDB(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInsertAndStat(t *testing.T) {
	c := newTestCache(t)

	entry := fs.EntryInfo{Path: "/backup/a.txt", Size: 42, LastModified: 1700000000}
	require.NoError(t, c.Insert(entry))

	got, err := c.Stat("/backup/a.txt")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = c.Stat("/backup/missing.txt")
	assert.Error(t, err)
}

func TestInsertUpserts(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Insert(fs.EntryInfo{Path: "/f", Size: 1, LastModified: 10}))
	require.NoError(t, c.Insert(fs.EntryInfo{Path: "/f", Size: 2, LastModified: 20}))

	got, err := c.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Size)
	assert.Equal(t, int64(20), got.LastModified)
}

func TestInsertBatch(t *testing.T) {
	c := newTestCache(t)

	entries := []fs.EntryInfo{
		{Path: "/a", Size: 1},
		{Path: "/b", Size: 2},
		{Path: "/c", IsDir: true},
	}
	require.NoError(t, c.Insert(entries...))
	require.NoError(t, c.Insert())

	got, err := c.List("/")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestListPrefixOrdered(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Insert(
		fs.EntryInfo{Path: "/backup/b.txt"},
		fs.EntryInfo{Path: "/backup/a.txt"},
		fs.EntryInfo{Path: "/other/c.txt"},
	))

	got, err := c.List("/backup/")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/backup/a.txt", got[0].Path)
	assert.Equal(t, "/backup/b.txt", got[1].Path)
}

func TestListStopsAtSegmentBoundary(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Insert(
		fs.EntryInfo{Path: "/backup", IsDir: true},
		fs.EntryInfo{Path: "/backup/a.txt"},
		fs.EntryInfo{Path: "/backup2/other.txt"},
	))

	got, err := c.List("/backup")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/backup", got[0].Path)
	assert.Equal(t, "/backup/a.txt", got[1].Path)
}

func TestListEscapesLikeMetacharacters(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Insert(
		fs.EntryInfo{Path: "/100%_done/report.txt"},
		fs.EntryInfo{Path: "/100xydone/other.txt"},
	))

	got, err := c.List("/100%_done/")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/100%_done/report.txt", got[0].Path)
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Insert(fs.EntryInfo{Path: "/gone"}))
	require.NoError(t, c.Delete("/gone"))
	require.NoError(t, c.Delete("/never-existed"))

	_, err := c.Stat("/gone")
	assert.Error(t, err)
}

func TestSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	c, err := NewCacheDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, c.Insert(fs.EntryInfo{Path: "/persist", Size: 7}))
	require.NoError(t, c.Close())

	c, err = NewCacheDB(dbPath)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Stat("/persist")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Size)
}
