package mdf

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Resolver errors.
var (
	ErrForeignDomain = errors.New("mdf: url outside the mirror domain")
	ErrBadPath       = errors.New("mdf: path escapes the mirror root")
)

// Resolver maps announced MDF URLs onto a local mirror directory.
type Resolver struct {
	root   string
	domain string
}

// NewResolver creates a resolver serving descriptions for one domain
// from a mirror directory.
func NewResolver(root, domain string) *Resolver {
	return &Resolver{root: root, domain: domain}
}

// Resolve loads and parses the description behind an announced URL.
// Announced URLs conventionally omit the scheme. Only URLs under the
// resolver's domain are served, and only from inside the mirror root.
func (r *Resolver) Resolve(url string) (*Module, error) {
	rel, err := r.relPath(url)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("mdf: read %s: %w", rel, err)
	}
	return Parse(data)
}

// relPath validates the URL and returns the mirror-relative file path.
func (r *Resolver) relPath(url string) (string, error) {
	trimmed := strings.TrimPrefix(url, "http://")
	trimmed = strings.TrimPrefix(trimmed, "https://")

	rest, ok := strings.CutPrefix(trimmed, r.domain)
	if !ok || (rest != "" && rest[0] != '/') {
		return "", ErrForeignDomain
	}

	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." {
			return "", ErrBadPath
		}
	}
	clean := path.Clean("/" + rest)
	if clean == "/" {
		return "", ErrBadPath
	}
	return clean[1:], nil
}

// ServeHTTP serves the mirror directory, so the resolver host can hand
// descriptions to other tools on the network.
func (r *Resolver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	for _, seg := range strings.Split(req.URL.Path, "/") {
		if seg == ".." {
			http.Error(w, "bad path", http.StatusBadRequest)
			return
		}
	}
	clean := path.Clean("/" + req.URL.Path)
	http.ServeFile(w, req, filepath.Join(r.root, filepath.FromSlash(clean)))
}

var _ http.Handler = (*Resolver)(nil)
