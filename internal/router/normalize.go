package router

import (
	"path"
	"strings"
)

// NormalizePath returns the canonical form of p used for matching: an
// empty path becomes "/", repeated slashes collapse, "." and ".." segments
// are resolved without escaping the root, and a trailing slash is kept.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}

	trailing := strings.HasSuffix(p, "/") || strings.HasSuffix(p, "/.") || strings.HasSuffix(p, "/..")
	clean := path.Clean(p)
	if trailing && clean != "/" {
		clean += "/"
	}
	return clean
}
