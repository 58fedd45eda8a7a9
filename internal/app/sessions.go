package app

import (
	"context"
	"io"
	"net/http"
	"sync"

	"taskdoc/internal/document"
	"taskdoc/internal/session"
)

// Session sources accepted by CreateSession.
const (
	SourceStored   = "stored"
	SourceTemplate = "template"
	SourceVersion  = "version"
	SourceBlank    = "blank"
	SourceDocument = "document"
)

type CreateSessionInput struct {
	Source   string             `json:"source"`
	Template string             `json:"template"`
	Version  string             `json:"version"`
	Document *document.Document `json:"document"`
}

// CreateSession starts an editing session on the stored document, a
// template, a recorded version, a document sent by the client or a blank
// document with one empty block.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (*session.Session, error) {
	source := input.Source
	if source == "" {
		source = SourceStored
	}

	var doc *document.Document
	switch source {
	case SourceStored:
		doc = s.EditorDocument(ctx)
	case SourceTemplate:
		loaded, err := s.store.LoadTemplate(ctx, input.Template)
		if err != nil {
			return nil, err
		}
		doc = loaded
	case SourceVersion:
		loaded, _, err := s.Version(input.Version)
		if err != nil {
			return nil, err
		}
		doc = loaded
	case SourceDocument:
		if input.Document == nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "document is required", nil)
		}
		doc = input.Document
	case SourceBlank:
		doc = document.NewWithBlock(document.NewAllocator())
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "source must be one of stored, template, version, document, blank", nil)
	}

	sess := session.New(doc, source, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info().Str("session_id", sess.ID).Str("source", source).Msg("session created")
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Get(ctx, id)
}

// ApplyOp applies one structural operation. Operations on the same session
// are serialized; a failed operation leaves the stored session as it was.
func (s *Service) ApplyOp(ctx context.Context, id string, op session.Op) (*session.Session, session.Result, error) {
	var result session.Result
	sess, err := s.withSession(ctx, id, func(sess *session.Session) (bool, error) {
		res, err := sess.Apply(op, s.now())
		if err != nil {
			return false, err
		}
		result = res
		return res.Changed, nil
	})
	return sess, result, err
}

// CollectSession replaces the session document with one read from editor
// surface markup.
func (s *Service) CollectSession(ctx context.Context, id string, markup io.Reader) (*session.Session, error) {
	doc, err := s.Collect(markup)
	if err != nil {
		return nil, err
	}
	return s.withSession(ctx, id, func(sess *session.Session) (bool, error) {
		sess.Replace(doc, s.now())
		return true, nil
	})
}

// SaveSession persists the session document as the stored document.
func (s *Service) SaveSession(ctx context.Context, id, author string) (*session.Session, SaveResult, error) {
	var result SaveResult
	sess, err := s.withSession(ctx, id, func(sess *session.Session) (bool, error) {
		res, err := s.SaveDocument(ctx, sess.Document.Clone(), author)
		if err != nil {
			return false, err
		}
		result = res
		sess.MarkSaved(s.now())
		return true, nil
	})
	return sess, result, err
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	unlock := s.lockSession(id)
	defer unlock()
	return s.sessions.Delete(ctx, id)
}

// withSession loads the session under its lock, runs fn and stores the
// session again when fn reports a change.
func (s *Service) withSession(ctx context.Context, id string, fn func(*session.Session) (bool, error)) (*session.Session, error) {
	unlock := s.lockSession(id)
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := fn(sess)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// sessionLock serializes edits to one session. Entries live only while a
// request holds or waits on them.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession blocks until the caller owns id and returns the release func.
func (s *Service) lockSession(id string) func() {
	s.lockMu.Lock()
	lock, ok := s.sessionLocks[id]
	if !ok {
		lock = &sessionLock{}
		s.sessionLocks[id] = lock
	}
	lock.refs++
	s.lockMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.lockMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.sessionLocks, id)
		}
		s.lockMu.Unlock()
	}
}
