package webdav

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Config describes a WebDAV endpoint. It is read once at construction
// time; the resulting Client never mutates it.
type Config struct {
	// BaseURL is the root of the WebDAV share, e.g.
	// "https://cloud.example.com/remote.php/dav/files/alice".
	BaseURL string

	// Basic credentials. Mutually exclusive with BearerToken.
	Username string
	Password string

	// BearerToken is sent as "Authorization: Bearer <token>".
	BearerToken string

	// Headers are added verbatim to every request.
	Headers map[string]string

	// InsecureSkipVerify disables TLS certificate verification for
	// self-signed endpoints.
	InsecureSkipVerify bool

	// MaxBodySize caps request and response bodies in bytes. Zero means
	// unlimited. Oversized request bodies fail before transmission.
	MaxBodySize int64

	// Logger receives one debug event per HTTP exchange. Nil disables
	// request logging.
	Logger *zerolog.Logger
}

func (c *Config) baseURL() (*url.URL, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("webdav: base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("webdav: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webdav: unsupported base URL scheme %q", u.Scheme)
	}
	// Destination headers are resolved relative to the base, which only
	// works when the base path ends with a separator.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

func (c *Config) validate() error {
	if (c.Username != "" || c.Password != "") && c.BearerToken != "" {
		return fmt.Errorf("webdav: basic credentials and bearer token are mutually exclusive")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("webdav: max body size must not be negative")
	}
	return nil
}

func (c *Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}
