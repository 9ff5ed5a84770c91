package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type localFs struct {
	root string
}

// NewLocalFs exposes a directory tree through the Fs interface. Paths are
// jailed to the root; attempts to escape it fail.
func NewLocalFs(root string) (Fs, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, err
	}
	return &localFs{root: abs}, nil
}

func (fs *localFs) Close() error {
	return nil
}

func (fs *localFs) resolve(p string) (string, error) {
	full := filepath.Join(fs.root, filepath.Clean("/"+p))
	rel, err := filepath.Rel(fs.root, full)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root directory: %s", p)
	}
	return full, nil
}

func (fs *localFs) ReadDir(p string) ([]os.FileInfo, error) {
	full, err := fs.resolve(p)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (fs *localFs) Stat(p string) (os.FileInfo, error) {
	full, err := fs.resolve(p)
	if err != nil {
		return nil, err
	}
	return os.Stat(full)
}

func (fs *localFs) ReadStream(p string) (io.ReadCloser, error) {
	full, err := fs.resolve(p)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// WriteStream writes through a temp file in the target directory so a
// failed upload never leaves a partial file behind.
func (fs *localFs) WriteStream(p string, stream io.Reader, contentLength int64) error {
	full, err := fs.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), filepath.Base(full)+".tmp")
	if err != nil {
		return err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, stream); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

func (fs *localFs) Mkdir(p string) error {
	full, err := fs.resolve(p)
	if err != nil {
		return err
	}
	err = os.Mkdir(full, 0755)
	if os.IsExist(err) {
		return nil
	}
	return err
}

func (fs *localFs) Remove(p string) error {
	full, err := fs.resolve(p)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

func (fs *localFs) Tree(p string) ([]EntryInfo, error) {
	full, err := fs.resolve(p)
	if err != nil {
		return nil, err
	}

	var entries []EntryInfo
	err = filepath.Walk(full, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(full, walkPath)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		entries = append(entries, EntryInfo{
			Path:         "/" + filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
			IsDir:        info.IsDir(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
