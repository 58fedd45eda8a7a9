package document

import "strings"

// SafeImageSource reports whether src may be placed in an img src attribute:
// relative paths, http(s) URLs and data:image URIs. Everything else, such as
// javascript: or data:text/html, is rejected.
func SafeImageSource(src string) bool {
	s := strings.TrimSpace(src)
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return true
	case strings.HasPrefix(lower, "data:image/"):
		return true
	case strings.HasPrefix(s, "//"):
		return true
	}
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return true
	}
	// A colon after the first path separator is part of the path, not a scheme.
	slash := strings.IndexAny(s, "/?#")
	return slash >= 0 && slash < colon
}
