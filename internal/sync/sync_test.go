package sync

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webdav-client/internal/cache"
	"webdav-client/internal/fs"
	"webdav-client/internal/tests"
	"webdav-client/internal/webdav"
)

type mirrorFixture struct {
	srv    *tests.Server
	local  fs.Fs
	remote fs.Fs
	db     cache.Cache
	dir    string
}

func newMirrorFixture(t *testing.T) *mirrorFixture {
	t.Helper()

	srv := tests.NewServer()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	local, err := fs.NewLocalFs(dir)
	require.NoError(t, err)

	remote, err := fs.NewWebDAVFs(webdav.Config{BaseURL: srv.URL()})
	require.NoError(t, err)

	db, err := cache.NewCacheDB(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &mirrorFixture{srv: srv, local: local, remote: remote, db: db, dir: dir}
}

func (f *mirrorFixture) writeLocal(t *testing.T, rel string, content []byte) {
	t.Helper()
	full := filepath.Join(f.dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, content, 0644))
}

func TestMirrorUploadsTree(t *testing.T) {
	f := newMirrorFixture(t)
	f.writeLocal(t, "sub/file.txt", []byte("hello"))
	f.writeLocal(t, "top.txt", []byte("top"))

	m := New(f.local, f.remote, f.db)
	require.NoError(t, m.Run("/backup"))

	assert.True(t, f.srv.Has("/backup"))
	assert.True(t, f.srv.Has("/backup/sub"))
	assert.Equal(t, []byte("hello"), f.srv.Content("/backup/sub/file.txt"))
	assert.Equal(t, []byte("top"), f.srv.Content("/backup/top.txt"))
}

func TestMirrorSkipsUnchangedFiles(t *testing.T) {
	f := newMirrorFixture(t)
	f.writeLocal(t, "a.txt", []byte("aaa"))
	f.writeLocal(t, "b.txt", []byte("bbb"))

	m := New(f.local, f.remote, f.db)
	require.NoError(t, m.Run("/backup"))

	f.srv.ResetRequests()
	require.NoError(t, m.Run("/backup"))
	assert.Equal(t, 0, f.srv.CountMethod(http.MethodPut))
}

func TestMirrorReuploadsChangedFile(t *testing.T) {
	f := newMirrorFixture(t)
	f.writeLocal(t, "a.txt", []byte("old"))

	m := New(f.local, f.remote, f.db)
	require.NoError(t, m.Run("/backup"))

	f.writeLocal(t, "a.txt", []byte("newer"))
	// Push the mtime forward; coarse filesystem timestamps could
	// otherwise make the rewrite invisible.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(f.dir, "a.txt"), future, future))

	f.srv.ResetRequests()
	require.NoError(t, m.Run("/backup"))
	assert.Equal(t, 1, f.srv.CountMethod(http.MethodPut))
	assert.Equal(t, []byte("newer"), f.srv.Content("/backup/a.txt"))
}

func TestMirrorPrunesDeletedFiles(t *testing.T) {
	f := newMirrorFixture(t)
	f.writeLocal(t, "keep.txt", []byte("k"))
	f.writeLocal(t, "drop.txt", []byte("d"))

	m := New(f.local, f.remote, f.db, WithPrune(true))
	require.NoError(t, m.Run("/backup"))
	require.True(t, f.srv.Has("/backup/drop.txt"))

	require.NoError(t, os.Remove(filepath.Join(f.dir, "drop.txt")))
	require.NoError(t, m.Run("/backup"))

	assert.True(t, f.srv.Has("/backup/keep.txt"))
	assert.False(t, f.srv.Has("/backup/drop.txt"))
}

func TestMirrorPruneLeavesSiblingPrefixAlone(t *testing.T) {
	// Two mirror targets sharing one state database. Pruning "/backup"
	// must not touch anything under "/backup2".
	f := newMirrorFixture(t)
	f.writeLocal(t, "other.txt", []byte("o"))

	m := New(f.local, f.remote, f.db, WithPrune(true))
	require.NoError(t, m.Run("/backup2"))
	require.True(t, f.srv.Has("/backup2/other.txt"))

	require.NoError(t, m.Run("/backup"))

	assert.True(t, f.srv.Has("/backup2/other.txt"))
	assert.True(t, f.srv.Has("/backup/other.txt"))
}

func TestMirrorWithoutPruneKeepsRemoteExtras(t *testing.T) {
	f := newMirrorFixture(t)
	f.writeLocal(t, "keep.txt", []byte("k"))

	m := New(f.local, f.remote, f.db)
	require.NoError(t, m.Run("/backup"))

	f.srv.AddFile("/backup/manual.txt", []byte("m"))
	require.NoError(t, m.Run("/backup"))
	assert.True(t, f.srv.Has("/backup/manual.txt"))
}

func TestMirrorParallelUploads(t *testing.T) {
	f := newMirrorFixture(t)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		f.writeLocal(t, name+".txt", []byte(name))
	}

	m := New(f.local, f.remote, f.db, WithWorkers(4))
	require.NoError(t, m.Run("/backup"))

	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		assert.Equal(t, []byte(name), f.srv.Content("/backup/"+name+".txt"))
	}
}

func TestMirrorReportsUploadErrors(t *testing.T) {
	f := newMirrorFixture(t)
	f.writeLocal(t, "a.txt", []byte("a"))

	// An unreachable server must surface as an error, not hang.
	badRemote, err := fs.NewWebDAVFs(webdav.Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	m := New(f.local, badRemote, f.db)
	assert.Error(t, m.Run("/backup"))
}
