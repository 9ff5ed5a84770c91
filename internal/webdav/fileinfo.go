package webdav

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

// FileInfo describes one remote resource. It implements os.FileInfo so it
// can be used wherever local directory listings are.
type FileInfo struct {
	path        string
	name        string
	size        int64
	modTime     time.Time
	isDir       bool
	contentType string
	etag        string
}

// Path returns the absolute, percent-decoded resource path.
func (f *FileInfo) Path() string { return f.path }

func (f *FileInfo) Name() string { return f.name }

func (f *FileInfo) Size() int64 { return f.size }

func (f *FileInfo) Mode() os.FileMode {
	if f.isDir {
		return os.ModeDir | 0775
	}
	return 0664
}

func (f *FileInfo) ModTime() time.Time { return f.modTime }

func (f *FileInfo) IsDir() bool { return f.isDir }

func (f *FileInfo) Sys() any { return nil }

// ContentType returns the server-reported MIME type, or "".
func (f *FileInfo) ContentType() string { return f.contentType }

// ETag returns the server-assigned version token, or "".
func (f *FileInfo) ETag() string { return f.etag }

// lastModifiedFormats covers the spellings seen in the wild; RFC 4918
// prescribes the http-date form but servers are not consistent about it.
var lastModifiedFormats = []string{
	http.TimeFormat,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	time.RFC3339,
}

// fileInfoFromRecord maps one normalized multistatus record to a FileInfo.
// Malformed or missing fields degrade to defaults instead of failing the
// record; partial metadata from heterogeneous servers is expected.
func fileInfoFromRecord(rec rawRecord) *FileInfo {
	fi := &FileInfo{
		path:        decodeHref(rec.href),
		contentType: rec.props.text("getcontenttype"),
		etag:        rec.props.text("getetag"),
	}

	// Collection hrefs usually carry a trailing separator; the resource
	// path never does.
	if fi.path != "/" {
		fi.path = strings.TrimSuffix(fi.path, "/")
	}

	fi.name = path.Base(fi.path)
	if fi.name == "/" || fi.name == "." || fi.name == "" {
		fi.name = rec.props.text("displayname")
	}

	if rt, ok := rec.props["resourcetype"]; ok {
		fi.isDir = rt.child("collection") != nil
	}

	if n, err := strconv.ParseInt(rec.props.text("getcontentlength"), 10, 64); err == nil && n >= 0 {
		fi.size = n
	}

	fi.modTime = time.Now()
	if raw := rec.props.text("getlastmodified"); raw != "" {
		for _, format := range lastModifiedFormats {
			if t, err := time.Parse(format, raw); err == nil {
				fi.modTime = t
				break
			}
		}
	}

	return fi
}

// decodeHref percent-decodes a multistatus href into a resource path.
// Some servers return the href as a fully qualified URL; only its path
// component matters.
func decodeHref(href string) string {
	if u, err := url.Parse(strings.TrimSpace(href)); err == nil && u.Scheme != "" {
		href = u.EscapedPath()
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		return decoded
	}
	return href
}
