package webdav

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"
)

// propfindBody requests the fixed property set every Stat and directory
// listing needs.
const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:resourcetype/>
    <d:getcontentlength/>
    <d:getlastmodified/>
    <d:getcontenttype/>
    <d:getetag/>
    <d:displayname/>
  </d:prop>
</d:propfind>`

// Client is a WebDAV protocol client bound to one base URL. It holds no
// per-request state; operations may be issued concurrently from multiple
// goroutines. Ordering of conflicting mutations on the same path is left
// to the server.
type Client struct {
	t *transport
}

// NewClient builds a client for the endpoint described by cfg.
func NewClient(cfg Config) (*Client, error) {
	t, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{t: t}, nil
}

// Exists reports whether path resolves to a resource, via HEAD.
//
// Every failure mode collapses to false: a 404, but also auth failures,
// TLS errors and unreachable servers. Callers that need to distinguish
// "absent" from "unreachable" should use Stat instead.
func (c *Client) Exists(p string) bool {
	resp, err := c.t.request(http.MethodHead, p, nil, nil, -1)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Stat fetches the properties of a single resource via PROPFIND Depth: 0.
func (c *Client) Stat(p string) (*FileInfo, error) {
	records, err := c.propfind(p, "0")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &ParseError{Reason: "empty multistatus response for " + p}
	}
	return c.mapRecord(records[0]), nil
}

// mapRecord converts one multistatus record, rebasing the href from the
// server's namespace to the client's: hrefs repeat the base URL's path
// prefix, which callers never see.
func (c *Client) mapRecord(rec rawRecord) *FileInfo {
	fi := fileInfoFromRecord(rec)
	base := strings.TrimSuffix(c.t.base.Path, "/")
	if base != "" && (fi.path == base || strings.HasPrefix(fi.path, base+"/")) {
		fi.path = fi.path[len(base):]
		if fi.path == "" {
			fi.path = "/"
		}
	}
	return fi
}

// GetFileContents downloads the resource at path into memory.
func (c *Client) GetFileContents(p string) ([]byte, error) {
	stream, err := c.GetFileStream(p)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, &TransportError{Method: http.MethodGet, Path: p, Err: err}
	}
	return data, nil
}

// GetFileString downloads the resource at path as text.
func (c *Client) GetFileString(p string) (string, error) {
	data, err := c.GetFileContents(p)
	return string(data), err
}

// GetFileStream opens the resource at path for streaming reads. The caller
// owns the returned stream and must close it.
func (c *Client) GetFileStream(p string) (io.ReadCloser, error) {
	resp, err := c.t.request(http.MethodGet, p, nil, nil, -1)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// PutFileContents uploads data to path. With overwrite disabled an
// existing resource fails with a conflict before any byte is transmitted.
func (c *Client) PutFileContents(p string, data []byte, overwrite bool) error {
	return c.PutFileStream(p, bytes.NewReader(data), int64(len(data)), overwrite)
}

// PutFileStream uploads contentLength bytes from stream to path. Pass a
// negative contentLength when the size is unknown; the body is then sent
// chunked.
func (c *Client) PutFileStream(p string, stream io.Reader, contentLength int64, overwrite bool) error {
	if !overwrite && c.Exists(p) {
		return &StatusError{
			Method: http.MethodPut,
			Path:   p,
			Code:   http.StatusConflict,
			Status: "409 Conflict",
			Body:   "resource already exists and overwrite is disabled",
		}
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/octet-stream")
	resp, err := c.t.request(http.MethodPut, p, hdr, stream, contentLength)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// CreateDirectory creates a single collection via MKCOL. It does not
// create missing ancestors; see CreateParentDirectories.
func (c *Client) CreateDirectory(p string) error {
	resp, err := c.t.request("MKCOL", p, nil, nil, -1)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// CreateParentDirectories ensures every ancestor collection of path
// exists, one level at a time from the top down. Levels that already
// exist are left alone, so repeated calls stay idempotent. The walk is
// deliberately sequential: a child MKCOL would 409 if its parent were
// still missing.
func (c *Client) CreateParentDirectories(p string) error {
	dir := path.Dir(path.Clean(p))
	if dir == "/" || dir == "." {
		return nil
	}

	prefix := ""
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		prefix += "/" + segment
		if c.Exists(prefix) {
			continue
		}
		if err := c.CreateDirectory(prefix); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFile removes the resource at path. Deleting a collection removes
// its members as well; WebDAV DELETE is recursive server-side.
func (c *Client) DeleteFile(p string) error {
	resp, err := c.t.request(http.MethodDelete, p, nil, nil, -1)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// MoveFile renames src to dst. With overwrite disabled an existing
// destination fails with a conflict before the MOVE is issued.
func (c *Client) MoveFile(src, dst string, overwrite bool) error {
	return c.rename("MOVE", src, dst, overwrite)
}

// CopyFile duplicates src at dst, with the same overwrite semantics as
// MoveFile.
func (c *Client) CopyFile(src, dst string, overwrite bool) error {
	return c.rename("COPY", src, dst, overwrite)
}

func (c *Client) rename(method, src, dst string, overwrite bool) error {
	if !overwrite && c.Exists(dst) {
		return &StatusError{
			Method: method,
			Path:   dst,
			Code:   http.StatusConflict,
			Status: "409 Conflict",
			Body:   "destination already exists and overwrite is disabled",
		}
	}

	flag := "F"
	if overwrite {
		flag = "T"
	}

	// The Destination header must be a fully qualified URL even when the
	// caller passed a relative destination path.
	hdr := http.Header{}
	hdr.Set("Destination", c.t.resolve(dst).String())
	hdr.Set("Overwrite", flag)

	resp, err := c.t.request(method, src, hdr, nil, -1)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// GetDirectoryContents lists the collection at path: immediate members,
// or the whole subtree when deep is set. The collection's own entry is
// never part of the result.
func (c *Client) GetDirectoryContents(p string, deep bool) ([]*FileInfo, error) {
	dir := p
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	depth := "1"
	if deep {
		depth = "infinity"
	}

	records, err := c.propfind(dir, depth)
	if err != nil {
		return nil, err
	}

	var infos []*FileInfo
	for _, rec := range records {
		fi := c.mapRecord(rec)
		// Servers disagree on how the queried collection's own record is
		// spelled; compare against every path form.
		switch strings.TrimSuffix(fi.path, "/") {
		case strings.TrimSuffix(dir, "/"), strings.TrimSuffix(p, "/"):
			continue
		}
		infos = append(infos, fi)
	}
	return infos, nil
}

func (c *Client) propfind(p, depth string) ([]rawRecord, error) {
	hdr := http.Header{}
	hdr.Set("Depth", depth)
	hdr.Set("Content-Type", "application/xml")

	resp, err := c.t.request("PROPFIND", p, hdr, strings.NewReader(propfindBody), int64(len(propfindBody)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseMultistatus(resp.Body)
}
