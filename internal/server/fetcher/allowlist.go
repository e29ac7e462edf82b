package fetcher

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// AllowList accepts only URLs under a single configured origin and path prefix,
// normally the public base URL of the media bucket.
type AllowList struct {
	scheme string
	host   string
	prefix string
}

// NewAllowList parses base. The base path is treated as a directory.
func NewAllowList(base string) (*AllowList, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse media base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("media base url %q must be absolute", base)
	}

	prefix := u.Path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &AllowList{
		scheme: strings.ToLower(u.Scheme),
		host:   strings.ToLower(u.Host),
		prefix: prefix,
	}, nil
}

// Key returns the object key addressed by raw relative to the base, and
// whether raw is allowed at all.
func (a *AllowList) Key(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.User != nil || u.Opaque != "" {
		return "", false
	}
	if strings.ToLower(u.Scheme) != a.scheme || strings.ToLower(u.Host) != a.host {
		return "", false
	}
	if strings.Contains(u.Path, "..") {
		return "", false
	}

	p := path.Clean(u.Path)
	if !strings.HasPrefix(p, a.prefix) {
		return "", false
	}

	key := strings.TrimPrefix(p, a.prefix)
	if key == "" {
		return "", false
	}
	return key, true
}

func (a *AllowList) Allowed(raw string) bool {
	_, ok := a.Key(raw)
	return ok
}

// URL builds the fetchable URL of key under the base.
func (a *AllowList) URL(key string) string {
	u := url.URL{Scheme: a.scheme, Host: a.host, Path: a.prefix + strings.TrimPrefix(key, "/")}
	return u.String()
}
