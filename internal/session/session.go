// Package session keeps server-side editing sessions. A session owns a
// working copy of the document and the ID allocator that issues new IDs
// for it; structural operations are applied one at a time.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskdoc/internal/document"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrUnknownOp      = errors.New("unknown operation")
	ErrTargetNotFound = errors.New("operation target not found")
	ErrInvalidOp      = errors.New("invalid operation")
)

// Session is one editing session. Counters mirror the allocator so a
// session restored from a store continues the same ID sequence.
type Session struct {
	ID        string                `json:"id"`
	Source    string                `json:"source"`
	Document  *document.Document    `json:"document"`
	Counters  map[document.Kind]int `json:"counters"`
	Dirty     bool                  `json:"dirty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`

	ids *document.Allocator
}

// New starts a session on doc. The allocator is synced to the IDs already
// present so new IDs never collide with loaded ones.
func New(doc *document.Document, source string, now time.Time) *Session {
	if doc == nil {
		doc = document.New()
	}
	doc.Normalize()
	ids := document.NewAllocator()
	ids.Sync(doc)
	return &Session{
		ID:        uuid.NewString(),
		Source:    source,
		Document:  doc,
		Counters:  ids.Counters(),
		CreatedAt: now,
		UpdatedAt: now,
		ids:       ids,
	}
}

// Allocator returns the session's allocator, rebuilding it from Counters
// after the session was decoded.
func (s *Session) Allocator() *document.Allocator {
	if s.ids == nil {
		s.ids = document.NewAllocatorFrom(s.Counters)
		s.ids.Sync(s.Document)
	}
	return s.ids
}

// Replace swaps in a new document, e.g. one collected from the editor
// surface, and resyncs the allocator.
func (s *Session) Replace(doc *document.Document, now time.Time) {
	doc.Normalize()
	s.Document = doc
	ids := s.Allocator()
	ids.Sync(doc)
	s.Counters = ids.Counters()
	s.Dirty = true
	s.UpdatedAt = now
}

// MarkSaved clears the dirty flag after the document was persisted.
func (s *Session) MarkSaved(now time.Time) {
	s.Dirty = false
	s.UpdatedAt = now
}

func encode(s *Session) ([]byte, error) {
	s.Counters = s.Allocator().Counters()
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Document == nil {
		s.Document = document.New()
	}
	s.Document.Normalize()
	if s.Counters == nil {
		s.Counters = map[document.Kind]int{}
	}
	return &s, nil
}
