package fs

import (
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"webdav-client/internal/webdav"
)

type webdavFs struct {
	client *webdav.Client
}

// NewWebDAVFs exposes a WebDAV share through the Fs interface.
func NewWebDAVFs(cfg webdav.Config) (Fs, error) {
	client, err := webdav.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &webdavFs{client: client}, nil
}

func (fs *webdavFs) Close() error {
	return nil
}

func (fs *webdavFs) ReadDir(p string) ([]os.FileInfo, error) {
	entries, err := fs.client.GetDirectoryContents(p, false)
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e)
	}
	return infos, nil
}

func (fs *webdavFs) Stat(p string) (os.FileInfo, error) {
	return fs.client.Stat(p)
}

func (fs *webdavFs) ReadStream(p string) (io.ReadCloser, error) {
	return fs.client.GetFileStream(p)
}

func (fs *webdavFs) WriteStream(p string, stream io.Reader, contentLength int64) error {
	if err := fs.client.CreateParentDirectories(p); err != nil {
		return err
	}
	return fs.client.PutFileStream(p, stream, contentLength, true)
}

func (fs *webdavFs) Mkdir(p string) error {
	err := fs.client.CreateDirectory(p)
	// An existing collection answers MKCOL with 405.
	if webdav.IsMethodNotSupported(err) {
		return nil
	}
	return err
}

func (fs *webdavFs) Remove(p string) error {
	return fs.client.DeleteFile(p)
}

func (fs *webdavFs) Tree(p string) ([]EntryInfo, error) {
	infos, err := fs.client.GetDirectoryContents(p, true)
	if err != nil {
		return nil, err
	}

	root := strings.TrimSuffix(path.Clean("/"+p), "/")
	var entries []EntryInfo
	for _, fi := range infos {
		full := strings.TrimSuffix(fi.Path(), "/")
		if full == root {
			continue
		}
		if root != "" && !strings.HasPrefix(full, root+"/") {
			continue
		}
		rel := strings.TrimPrefix(full, root)
		entries = append(entries, EntryInfo{
			Path:         rel,
			Size:         fi.Size(),
			LastModified: fi.ModTime().Unix(),
			IsDir:        fi.IsDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
