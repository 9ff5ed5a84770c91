// Package tests provides an in-memory WebDAV server for exercising the
// client against controlled server behavior, including the namespace
// prefix styles seen across real implementations.
package tests

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// RecordedRequest is one journal entry; Destination is only set for MOVE
// and COPY.
type RecordedRequest struct {
	Method      string
	Path        string
	Destination string
}

type fakeEntry struct {
	content     []byte
	modTime     time.Time
	isDir       bool
	contentType string
}

// Server is an in-memory WebDAV server. The namespace prefix used in
// multistatus responses is configurable so the client's normalizer can be
// tested against standard, uppercase and unprefixed spellings.
type Server struct {
	mu       sync.RWMutex
	files    map[string]*fakeEntry
	requests []RecordedRequest

	// Prefix selects the DAV: prefix style for responses: "d", "D", ""
	// (unprefixed) or "mixed" (rotates per response element).
	Prefix string

	// Username/Password enable basic-auth enforcement when non-empty.
	Username string
	Password string

	// Token enables bearer-token enforcement when non-empty.
	Token string

	srv *httptest.Server
}

func NewServer() *Server {
	s := &Server{
		files:  map[string]*fakeEntry{"/": {isDir: true, modTime: time.Now()}},
		Prefix: "d",
	}

	r := mux.NewRouter()
	r.Use(s.journalMiddleware, s.authMiddleware)
	r.Methods("PROPFIND").HandlerFunc(s.propfind)
	r.Methods("MKCOL").HandlerFunc(s.mkcol)
	r.Methods("MOVE").HandlerFunc(s.move)
	r.Methods("COPY").HandlerFunc(s.copy)
	r.Methods(http.MethodHead).HandlerFunc(s.head)
	r.Methods(http.MethodGet).HandlerFunc(s.get)
	r.Methods(http.MethodPut).HandlerFunc(s.put)
	r.Methods(http.MethodDelete).HandlerFunc(s.delete)
	r.Methods(http.MethodOptions).HandlerFunc(s.options)

	s.srv = httptest.NewServer(r)
	return s
}

func (s *Server) URL() string { return s.srv.URL }

func (s *Server) Close() { s.srv.Close() }

// Requests returns the journal of everything the server has seen.
func (s *Server) Requests() []RecordedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// CountMethod returns how many requests used the given method.
func (s *Server) CountMethod(method string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// AddFile seeds a file, creating missing parents.
func (s *Server) AddFile(p string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureDirLocked(path.Dir(normalize(p)))
	s.files[normalize(p)] = &fakeEntry{
		content:     content,
		modTime:     time.Now(),
		contentType: "application/octet-stream",
	}
}

// AddDir seeds a collection, creating missing parents.
func (s *Server) AddDir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureDirLocked(normalize(p))
}

// Content returns the stored bytes of a file, or nil.
func (s *Server) Content(p string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.files[normalize(p)]; ok && !e.isDir {
		return append([]byte(nil), e.content...)
	}
	return nil
}

// Has reports whether a resource exists.
func (s *Server) Has(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[normalize(p)]
	return ok
}

func normalize(p string) string {
	return path.Clean("/" + p)
}

func (s *Server) ensureDirLocked(p string) {
	if p == "/" {
		return
	}
	if _, ok := s.files[p]; !ok {
		s.ensureDirLocked(path.Dir(p))
		s.files[p] = &fakeEntry{isDir: true, modTime: time.Now()}
	}
}

func (s *Server) journalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:      r.Method,
			Path:        normalize(r.URL.Path),
			Destination: r.Header.Get("Destination"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.Username || pass != s.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="fake-webdav"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tag renders an element name in the configured prefix style; i is the
// index of the enclosing response element, used by the mixed style.
func (s *Server) tag(name string, i int) string {
	prefix := s.Prefix
	if prefix == "mixed" {
		prefix = []string{"d", "D", ""}[i%3]
	}
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

func (s *Server) nsAttrs() string {
	switch s.Prefix {
	case "":
		return ""
	case "mixed":
		return ` xmlns:d="DAV:" xmlns:D="DAV:"`
	default:
		return fmt.Sprintf(` xmlns:%s="DAV:"`, s.Prefix)
	}
}

func href(p string, isDir bool) string {
	escaped := (&url.URL{Path: p}).EscapedPath()
	if isDir && escaped != "/" {
		escaped += "/"
	}
	return escaped
}

func (s *Server) writeResponse(w io.Writer, p string, e *fakeEntry, i int) {
	resourcetype := fmt.Sprintf("<%s/>", s.tag("resourcetype", i))
	length := ""
	contentType := ""
	if e.isDir {
		resourcetype = fmt.Sprintf("<%s><%s/></%s>",
			s.tag("resourcetype", i), s.tag("collection", i), s.tag("resourcetype", i))
	} else {
		length = fmt.Sprintf("<%s>%d</%s>",
			s.tag("getcontentlength", i), len(e.content), s.tag("getcontentlength", i))
		contentType = fmt.Sprintf("<%s>%s</%s>",
			s.tag("getcontenttype", i), e.contentType, s.tag("getcontenttype", i))
	}

	fmt.Fprintf(w, `<%s><%s>%s</%s><%s><%s>%s%s%s<%s>%s</%s><%s>%s</%s></%s><%s>HTTP/1.1 200 OK</%s></%s></%s>`,
		s.tag("response", i),
		s.tag("href", i), href(p, e.isDir), s.tag("href", i),
		s.tag("propstat", i),
		s.tag("prop", i),
		resourcetype, length, contentType,
		s.tag("getlastmodified", i), e.modTime.UTC().Format(http.TimeFormat), s.tag("getlastmodified", i),
		s.tag("displayname", i), path.Base(p), s.tag("displayname", i),
		s.tag("prop", i),
		s.tag("status", i), s.tag("status", i),
		s.tag("propstat", i),
		s.tag("response", i))
}

func (s *Server) propfind(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := normalize(r.URL.Path)
	e, ok := s.files[p]
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	depth := r.Header.Get("Depth")
	if depth == "" {
		depth = "infinity"
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)

	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?><%s%s>`, s.tag("multistatus", 0), s.nsAttrs())

	i := 0
	s.writeResponse(w, p, e, i)

	if e.isDir && depth != "0" {
		prefix := p
		if prefix != "/" {
			prefix += "/"
		}
		for child, ce := range s.files {
			if child == p || !strings.HasPrefix(child, prefix) {
				continue
			}
			rel := strings.TrimPrefix(child, prefix)
			if depth == "1" && strings.Contains(rel, "/") {
				continue
			}
			i++
			s.writeResponse(w, child, ce, i)
		}
	}

	fmt.Fprintf(w, "</%s>", s.tag("multistatus", 0))
}

func (s *Server) head(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.files[normalize(r.URL.Path)]
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if !e.isDir {
		w.Header().Set("Content-Length", strconv.Itoa(len(e.content)))
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.files[normalize(r.URL.Path)]
	if !ok || e.isDir {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", e.contentType)
	w.Header().Set("Last-Modified", e.modTime.UTC().Format(http.TimeFormat))
	w.Write(e.content)
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := normalize(r.URL.Path)
	if parent, ok := s.files[path.Dir(p)]; !ok || !parent.isDir {
		http.Error(w, "Conflict", http.StatusConflict)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	s.files[p] = &fakeEntry{
		content:     content,
		modTime:     time.Now(),
		contentType: contentType,
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := normalize(r.URL.Path)
	e, ok := s.files[p]
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.removeLocked(p, e)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeLocked(p string, e *fakeEntry) {
	if e.isDir {
		prefix := p + "/"
		for child := range s.files {
			if strings.HasPrefix(child, prefix) {
				delete(s.files, child)
			}
		}
	}
	delete(s.files, p)
}

func (s *Server) mkcol(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := normalize(r.URL.Path)
	if _, ok := s.files[p]; ok {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if parent, ok := s.files[path.Dir(p)]; !ok || !parent.isDir {
		http.Error(w, "Conflict", http.StatusConflict)
		return
	}
	s.files[p] = &fakeEntry{isDir: true, modTime: time.Now()}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) move(w http.ResponseWriter, r *http.Request) {
	s.rename(w, r, true)
}

func (s *Server) copy(w http.ResponseWriter, r *http.Request) {
	s.rename(w, r, false)
}

func (s *Server) rename(w http.ResponseWriter, r *http.Request, removeSource bool) {
	dstURL, err := url.Parse(r.Header.Get("Destination"))
	if err != nil || dstURL.Path == "" {
		http.Error(w, "Bad Destination", http.StatusBadRequest)
		return
	}
	dst := normalize(dstURL.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	src := normalize(r.URL.Path)
	e, ok := s.files[src]
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if existing, ok := s.files[dst]; ok {
		if r.Header.Get("Overwrite") == "F" {
			http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
			return
		}
		s.removeLocked(dst, existing)
	}

	moved := map[string]*fakeEntry{dst: e}
	if e.isDir {
		prefix := src + "/"
		for child, ce := range s.files {
			if strings.HasPrefix(child, prefix) {
				moved[dst+"/"+strings.TrimPrefix(child, prefix)] = ce
			}
		}
	}
	for target, entry := range moved {
		copied := *entry
		copied.content = append([]byte(nil), entry.content...)
		s.files[target] = &copied
	}
	if removeSource {
		s.removeLocked(src, e)
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) options(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "OPTIONS, GET, HEAD, PUT, DELETE, PROPFIND, COPY, MOVE, MKCOL")
	w.Header().Set("DAV", "1, 2")
	w.WriteHeader(http.StatusOK)
}
