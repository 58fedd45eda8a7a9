// Package blob stores uploaded images and attachments on the local
// filesystem or in an S3-compatible bucket.
package blob

import (
	"context"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/zeebo/blake3"
)

// URLPrefix is where stored blobs are served over HTTP.
const URLPrefix = "/static/uploads/"

// Key prefixes for the two upload families.
const (
	PrefixImages      = "images"
	PrefixAttachments = "attachments"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Object describes a stored blob. Checksum is the hex BLAKE3 digest.
type Object struct {
	Key         string
	Size        int64
	ContentType string
	Checksum    string
	ModTime     time.Time
}

// Store is a flat key/value blob store. Keys use forward slashes.
type Store interface {
	// Put stores r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// NewKey builds "{prefix}/YYYYmmdd_HHMMSS_{name}" so uploads sort by time
// and keep the client's file name.
func NewKey(prefix, filename string, now time.Time) string {
	return prefix + "/" + now.Format("20060102_150405") + "_" + SafeName(filename)
}

// URL returns the path the blob is served at.
func URL(key string) string {
	return URLPrefix + key
}

// KeyFromURL reverses URL. It reports false for anything outside URLPrefix.
func KeyFromURL(u string) (string, bool) {
	if !strings.HasPrefix(u, URLPrefix) {
		return "", false
	}
	key, err := CleanKey(strings.TrimPrefix(u, URLPrefix))
	if err != nil {
		return "", false
	}
	return key, true
}

// SafeName strips directory parts and control characters from a client file
// name. Non-ASCII letters are kept.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsSpace(r):
			return '_'
		case strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "/" {
		return "upload"
	}
	return name
}

// CleanKey rejects keys that would escape the store root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, `\`) || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// hashingReader counts and hashes everything read through it.
type hashingReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func newHashingReader(r io.Reader) *hashingReader {
	return &hashingReader{r: r, h: blake3.New()}
}

func (hr *hashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h.Write(p[:n])
		hr.n += int64(n)
	}
	return n, err
}

func (hr *hashingReader) Sum() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}
