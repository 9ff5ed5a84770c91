// Package fs abstracts the file trees the mirror moves data between: a
// remote WebDAV share and a local directory.
package fs

import (
	"io"
	"os"

	"webdav-client/internal/webdav"
)

type Fs interface {
	Close() error
	ReadDir(path string) ([]os.FileInfo, error)
	Stat(path string) (os.FileInfo, error)
	ReadStream(path string) (io.ReadCloser, error)
	WriteStream(path string, stream io.Reader, contentLength int64) error
	Mkdir(path string) error
	Remove(path string) error
	Tree(path string) ([]EntryInfo, error)
}

// EntryInfo is one tree entry. Path is slash-rooted relative to the Fs
// root, without a trailing separator.
type EntryInfo struct {
	Path         string
	Size         int64
	LastModified int64
	IsDir        bool
}

func IsNotFound(err error) bool {
	return os.IsNotExist(err) || webdav.IsNotFound(err)
}
