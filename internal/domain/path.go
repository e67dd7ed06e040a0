package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath reduces a URL path to the canonical stored form: ASCII only,
// lowercase, a single leading slash, no trailing slash, no empty segments.
// The root path normalizes to "/".
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = asciiFold(path)

	var b strings.Builder
	b.Grow(len(path) + 1)
	b.WriteByte('/')

	lastSlash := true
	for _, r := range path {
		switch {
		case r == '/':
			if !lastSlash {
				b.WriteByte('/')
				lastSlash = true
			}
		case r < 0x80:
			b.WriteRune(unicode.ToLower(r))
			lastSlash = false
		}
	}

	normalized := b.String()
	if len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

// asciiFold decomposes accented characters and drops their combining marks,
// so "/café" stores as "/cafe". Runes with no ASCII base are dropped later
// by the caller.
func asciiFold(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FirstSegment returns the first slash-delimited component of a normalized
// path (the part before the second slash), or "" for the root path.
func FirstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

// SegmentCount returns the number of slash-delimited components in a
// normalized path. "/" has zero segments.
func SegmentCount(path string) int {
	if path == "" || path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}

// SplitParent splits a normalized path into its parent path and leaf name.
// The parent of a top-level path is "/".
func SplitParent(path string) (parent, name string) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/", strings.TrimPrefix(path, "/")
	}
	return path[:i], path[i+1:]
}

// JoinPath appends a name to a parent path, keeping the single-slash form.
func JoinPath(parent, name string) string {
	if parent == "" || parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
