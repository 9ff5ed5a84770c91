package webdav

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// transport issues single-attempt HTTP exchanges against the configured
// base URL. It never retries and sets no deadline of its own.
type transport struct {
	base    *url.URL
	hc      *http.Client
	cfg     Config
	log     zerolog.Logger
	maxBody int64
}

func newTransport(cfg Config) (*transport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	base, err := cfg.baseURL()
	if err != nil {
		return nil, err
	}

	hc := &http.Client{}
	if cfg.InsecureSkipVerify {
		hc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &transport{
		base:    base,
		hc:      hc,
		cfg:     cfg,
		log:     cfg.logger(),
		maxBody: cfg.MaxBodySize,
	}, nil
}

// resolve maps an absolute resource path onto the base URL, preserving a
// trailing separator on collection paths.
func (t *transport) resolve(p string) *url.URL {
	u := *t.base
	u.Path = path.Join(t.base.Path, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	return &u
}

func (t *transport) request(method, p string, hdr http.Header, body io.Reader, contentLength int64) (*http.Response, error) {
	if t.maxBody > 0 && contentLength > t.maxBody {
		return nil, &TransportError{
			Method: method,
			Path:   p,
			Err:    fmt.Errorf("request body of %d bytes exceeds configured limit of %d", contentLength, t.maxBody),
		}
	}

	u := t.resolve(p)
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: p, Err: err}
	}
	if contentLength >= 0 {
		req.ContentLength = contentLength
	}

	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range hdr {
		req.Header[k] = vs
	}

	switch {
	case t.cfg.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+t.cfg.BearerToken)
	case t.cfg.Username != "" || t.cfg.Password != "":
		req.SetBasicAuth(t.cfg.Username, t.cfg.Password)
	}

	start := time.Now()
	resp, err := t.hc.Do(req)
	if err != nil {
		t.log.Debug().Str("method", method).Str("path", p).Err(err).Msg("webdav request failed")
		return nil, &TransportError{Method: method, Path: p, Err: err}
	}

	t.log.Debug().
		Str("method", method).
		Str("path", p).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("webdav request")

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, t.classify(method, p, resp)
	}

	if t.maxBody > 0 {
		resp.Body = &limitedBody{rc: resp.Body, remaining: t.maxBody}
	}
	return resp, nil
}

// classify turns a non-2xx response into a StatusError, preserving a
// bounded slice of the body for diagnostics.
func (t *transport) classify(method, p string, resp *http.Response) error {
	const maxDiagnosticBody = 4 << 10

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBody))
	return &StatusError{
		Method: method,
		Path:   p,
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   string(body),
	}
}

// limitedBody fails the read instead of silently truncating when the
// response exceeds the configured ceiling.
type limitedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	n, err := l.rc.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, fmt.Errorf("response body exceeds configured limit")
	}
	return n, err
}

func (l *limitedBody) Close() error {
	return l.rc.Close()
}
