// Package store persists the task document, templates and attachment
// records, either as JSON files or in a SQL database.
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"taskdoc/internal/document"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidName is returned for template names that are not plain .json files.
	ErrInvalidName = errors.New("invalid template name")
)

// Store is the persistence backend behind the editor.
type Store interface {
	// LoadDocument returns ErrNotFound when nothing has been saved yet.
	LoadDocument(ctx context.Context) (*document.Document, error)
	SaveDocument(ctx context.Context, doc *document.Document) (DocumentInfo, error)
	DocumentInfo(ctx context.Context) (DocumentInfo, error)

	ListTemplates(ctx context.Context) ([]TemplateInfo, error)
	LoadTemplate(ctx context.Context, filename string) (*document.Document, error)
	SaveTemplate(ctx context.Context, filename string, doc *document.Document) (TemplateInfo, error)
	DeleteTemplate(ctx context.Context, filename string) error

	SaveAttachment(ctx context.Context, a Attachment) error
	GetAttachment(ctx context.Context, id string) (Attachment, error)
	ListAttachments(ctx context.Context) ([]Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// Checksum is the hex BLAKE3 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CleanTemplateName validates a template file name. Names without an
// extension get ".json".
func CleanTemplateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return "", fmt.Errorf("%w: %q must be a .json file", ErrInvalidName, name)
	}
	return name, nil
}
