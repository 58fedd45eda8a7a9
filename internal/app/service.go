package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taskdoc/internal/blob"
	"taskdoc/internal/config"
	"taskdoc/internal/document"
	"taskdoc/internal/editor"
	"taskdoc/internal/email"
	"taskdoc/internal/export"
	"taskdoc/internal/gitrepo"
	"taskdoc/internal/preview"
	"taskdoc/internal/search"
	"taskdoc/internal/session"
	"taskdoc/internal/store"
)

// HistoryName is the git repository holding saves of the main document.
const HistoryName = "tasks"

// Deps are the collaborators behind a Service. Store and Blobs are
// required; the rest fall back to in-process defaults when nil.
type Deps struct {
	Store    store.Store
	Blobs    blob.Store
	History  *gitrepo.Service
	Search   *search.Service
	Sessions session.Store
	Exporter *export.Service
	Mailer   *email.Service
	Log      zerolog.Logger
}

type Service struct {
	config   config.Config
	store    store.Store
	blobs    blob.Store
	history  *gitrepo.Service
	search   *search.Service
	sessions session.Store
	exporter *export.Service
	mailer   *email.Service
	preview  *preview.Renderer
	log      zerolog.Logger
	now      func() time.Time

	// uploadMu serializes attachment ID allocation.
	uploadMu sync.Mutex

	lockMu       sync.Mutex
	sessionLocks map[string]*sessionLock
}

func New(cfg config.Config, deps Deps) *Service {
	if deps.History == nil {
		deps.History = gitrepo.New(cfg.HistoryDir)
	}
	if deps.Search == nil {
		deps.Search = search.NewService(nil, deps.Log)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewMemoryStore(cfg.SessionTTL)
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewService(export.Options{From: cfg.MailFrom, To: cfg.MailTo, Now: time.Now})
	}
	if deps.Mailer == nil {
		deps.Mailer = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
	}
	return &Service{
		config:       cfg,
		store:        deps.Store,
		blobs:        deps.Blobs,
		history:      deps.History,
		search:       deps.Search,
		sessions:     deps.Sessions,
		exporter:     deps.Exporter,
		mailer:       deps.Mailer,
		preview:      preview.New(preview.Options{}),
		log:          deps.Log,
		now:          time.Now,
		sessionLocks: map[string]*sessionLock{},
	}
}

// Bootstrap indexes the stored document so search works before the first save.
func (s *Service) Bootstrap(ctx context.Context) error {
	doc, err := s.Document(ctx)
	if err != nil {
		return err
	}
	s.search.IndexDocument(doc)
	return nil
}

// Ready runs the readiness checks; the map is keyed by collaborator.
func (s *Service) Ready(ctx context.Context) (map[string]error, bool) {
	checks := map[string]error{
		"database": s.store.Ping(ctx),
		"uploads":  s.blobs.Ping(ctx),
		"sessions": s.sessions.Ping(ctx),
	}
	ok := true
	for _, err := range checks {
		if err != nil {
			ok = false
		}
	}
	if !s.search.Healthy() {
		checks["search"] = errors.New("meilisearch unreachable, using memory index")
	} else {
		checks["search"] = nil
	}
	return checks, ok
}

// Document returns the stored document, or an empty one when nothing has
// been saved yet.
func (s *Service) Document(ctx context.Context) (*document.Document, error) {
	doc, err := s.store.LoadDocument(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return document.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// EditorDocument is the document the editor opens with. A failed or empty
// load yields a single empty block so there is always somewhere to type.
func (s *Service) EditorDocument(ctx context.Context) *document.Document {
	doc, err := s.Document(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("load document for editor")
		doc = nil
	}
	if doc == nil || len(doc.Blocks) == 0 {
		fresh := document.NewWithBlock(document.NewAllocator())
		if doc != nil {
			fresh.Attachments = doc.Attachments
		}
		return fresh
	}
	return doc
}

// DocumentJSON returns the stored document encoded for load_data and its
// BLAKE3 checksum for the ETag.
func (s *Service) DocumentJSON(ctx context.Context) ([]byte, string, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, "", err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	return data, store.Checksum(data), nil
}

// SaveResult reports a persisted save.
type SaveResult struct {
	Revision int64           `json:"revision"`
	Checksum string          `json:"checksum"`
	Commit   *gitrepo.Commit `json:"commit,omitempty"`
	Stats    document.Stats  `json:"stats"`
}

// SaveDocument persists doc, records it in the save history and reindexes
// it. History and search failures are logged; the save itself succeeded.
func (s *Service) SaveDocument(ctx context.Context, doc *document.Document, author string) (SaveResult, error) {
	if doc == nil {
		return SaveResult{}, domainError(http.StatusBadRequest, "INVALID_BODY", "document is required", nil)
	}
	doc.Normalize()
	// Documents from older editors may carry blank IDs or ragged tables;
	// they are stored as sent.
	if err := doc.Validate(); err != nil {
		s.log.Warn().Err(err).Msg("saving document with structural problems")
	}

	info, err := s.store.SaveDocument(ctx, doc)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save document: %w", err)
	}
	result := SaveResult{Revision: info.Revision, Checksum: info.Checksum, Stats: doc.Stats()}

	var previous document.Stats
	if head, _, err := s.history.Head(HistoryName); err == nil {
		previous = head.Stats()
	}
	commit, changed, err := s.history.CommitDocument(HistoryName, doc, author, gitrepo.SaveMessage(previous, result.Stats))
	switch {
	case err != nil:
		s.log.Error().Err(err).Msg("record save history")
	case changed:
		result.Commit = &commit
	}

	s.search.IndexDocument(doc)
	return result, nil
}

// History lists recorded saves, newest first.
func (s *Service) History(limit int) ([]gitrepo.Commit, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.history.History(HistoryName, limit)
}

// Version loads the document as it was at a recorded save.
func (s *Service) Version(hash string) (*document.Document, gitrepo.Commit, error) {
	doc, commit, err := s.history.DocumentAt(HistoryName, hash)
	if err != nil {
		return nil, gitrepo.Commit{}, domainError(http.StatusNotFound, "NOT_FOUND", "version not found", nil)
	}
	return doc, commit, nil
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// PreviewHTML renders the preview pane markup.
func (s *Service) PreviewHTML(doc *document.Document) string {
	return s.preview.Render(doc)
}

// Upload is a file received from the browser.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadImage stores an image and returns the URL it is served at.
func (s *Service) UploadImage(ctx context.Context, up Upload) (string, error) {
	if strings.TrimSpace(up.Filename) == "" {
		return "", invalidUpload("no image selected")
	}
	if ct := strings.ToLower(up.ContentType); ct != "" && !strings.HasPrefix(ct, "image/") && ct != "application/octet-stream" {
		return "", domainError(http.StatusUnsupportedMediaType, "INVALID_UPLOAD", "file is not an image", nil)
	}
	key := blob.NewKey(blob.PrefixImages, up.Filename, s.now())
	obj, err := s.blobs.Put(ctx, key, up.Body, up.Size, up.ContentType)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	s.log.Info().Str("key", obj.Key).Int64("size", obj.Size).Msg("image uploaded")
	return blob.URL(obj.Key), nil
}

// AttachmentView is the attachment shape the editor keeps in its document.
type AttachmentView struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	SizeLabel    string `json:"sizeLabel"`
	UploadTime   string `json:"upload_time"`
	URL          string `json:"url"`
	ContentType  string `json:"content_type"`
}

func attachmentView(a store.Attachment) AttachmentView {
	return AttachmentView{
		ID:           a.ID,
		OriginalName: a.OriginalName,
		Size:         a.Size,
		SizeLabel:    editor.SizeLabel(document.Bytes(a.Size)),
		UploadTime:   a.UploadedAt.Format(time.RFC3339),
		URL:          "/attachments/" + a.ID,
		ContentType:  a.ContentType,
	}
}

// UploadAttachment stores the bytes and the attachment record. IDs continue
// from the highest attachment ID known to the store or the saved document.
func (s *Service) UploadAttachment(ctx context.Context, up Upload) (AttachmentView, error) {
	if strings.TrimSpace(up.Filename) == "" {
		return AttachmentView{}, invalidUpload("no file selected")
	}
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	id, err := s.nextAttachmentID(ctx)
	if err != nil {
		return AttachmentView{}, err
	}
	now := s.now()
	key := blob.NewKey(blob.PrefixAttachments, up.Filename, now)
	obj, err := s.blobs.Put(ctx, key, up.Body, up.Size, up.ContentType)
	if err != nil {
		return AttachmentView{}, fmt.Errorf("store attachment: %w", err)
	}
	record := store.Attachment{
		ID:           id,
		Key:          obj.Key,
		OriginalName: up.Filename,
		ContentType:  obj.ContentType,
		Size:         obj.Size,
		Checksum:     obj.Checksum,
		UploadedAt:   now,
	}
	if err := s.store.SaveAttachment(ctx, record); err != nil {
		if delErr := s.blobs.Delete(ctx, obj.Key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", obj.Key).Msg("remove orphaned attachment blob")
		}
		return AttachmentView{}, fmt.Errorf("record attachment: %w", err)
	}
	s.log.Info().Str("id", id).Str("key", obj.Key).Int64("size", obj.Size).Msg("attachment uploaded")
	return attachmentView(record), nil
}

func (s *Service) nextAttachmentID(ctx context.Context) (string, error) {
	ids := document.NewAllocator()
	records, err := s.store.ListAttachments(ctx)
	if err != nil {
		return "", err
	}
	for _, rec := range records {
		ids.Observe(document.KindAttachment, rec.ID)
	}
	if doc, err := s.Document(ctx); err == nil {
		ids.Sync(doc)
	}
	return ids.Next(document.KindAttachment), nil
}

func (s *Service) ListAttachments(ctx context.Context) ([]AttachmentView, error) {
	records, err := s.store.ListAttachments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AttachmentView, 0, len(records))
	for _, rec := range records {
		out = append(out, attachmentView(rec))
	}
	return out, nil
}

// DeleteAttachment removes the record and its bytes. A blob that is already
// gone does not fail the delete.
func (s *Service) DeleteAttachment(ctx context.Context, id string) error {
	rec, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, rec.Key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("delete attachment blob: %w", err)
	}
	return s.store.DeleteAttachment(ctx, id)
}

// OpenAttachment returns the attachment bytes and record.
func (s *Service) OpenAttachment(ctx context.Context, id string) (io.ReadCloser, store.Attachment, error) {
	rec, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return nil, store.Attachment{}, err
	}
	body, _, err := s.blobs.Open(ctx, rec.Key)
	if err != nil {
		return nil, store.Attachment{}, err
	}
	return body, rec, nil
}

// OpenUpload serves a blob by key, as linked from image sources.
func (s *Service) OpenUpload(ctx context.Context, key string) (io.ReadCloser, blob.Object, error) {
	key, err := blob.CleanKey(key)
	if err != nil {
		return nil, blob.Object{}, err
	}
	return s.blobs.Open(ctx, key)
}

// TemplateView is a template listing entry.
type TemplateView struct {
	Filename  string `json:"filename"`
	Created   string `json:"created"`
	Size      int64  `json:"size"`
	SizeLabel string `json:"sizeLabel"`
}

func templateView(t store.TemplateInfo) TemplateView {
	return TemplateView{
		Filename:  t.Filename,
		Created:   t.Created.Format("2006-01-02 15:04:05"),
		Size:      t.Size,
		SizeLabel: editor.SizeLabel(document.Bytes(t.Size)),
	}
}

func (s *Service) ListTemplates(ctx context.Context) ([]TemplateView, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TemplateView, 0, len(templates))
	for _, t := range templates {
		out = append(out, templateView(t))
	}
	return out, nil
}

func (s *Service) LoadTemplate(ctx context.Context, filename string) (*document.Document, error) {
	return s.store.LoadTemplate(ctx, filename)
}

// ReadTemplate decodes an uploaded template file without storing it.
func (s *Service) ReadTemplate(r io.Reader) (*document.Document, error) {
	doc, err := document.Decode(r)
	if err != nil {
		return nil, invalid("INVALID_TEMPLATE", err)
	}
	return doc, nil
}

func (s *Service) SaveTemplate(ctx context.Context, filename string, doc *document.Document) (TemplateView, error) {
	if doc == nil {
		return TemplateView{}, domainError(http.StatusBadRequest, "INVALID_BODY", "document is required", nil)
	}
	doc.Normalize()
	info, err := s.store.SaveTemplate(ctx, filename, doc)
	if err != nil {
		return TemplateView{}, err
	}
	return templateView(info), nil
}

func (s *Service) DeleteTemplate(ctx context.Context, filename string) error {
	return s.store.DeleteTemplate(ctx, filename)
}

// Export renders doc in the requested format.
func (s *Service) Export(ctx context.Context, doc *document.Document, format export.Format, title string) (*export.Result, error) {
	if doc == nil {
		doc = document.New()
	}
	doc.Normalize()
	return s.exporter.Export(ctx, doc, export.Request{Format: format, Title: title})
}

// SendReport mails the HTML export to the given recipients, or to the
// configured defaults when none are given.
func (s *Service) SendReport(ctx context.Context, doc *document.Document, to []string, subject string) error {
	if !s.mailer.IsConfigured() {
		return email.ErrNotConfigured
	}
	if len(to) == 0 {
		to = s.config.MailTo
	}
	if subject == "" {
		subject = s.exporter.Subject()
	}
	if doc == nil {
		doc = document.New()
	}
	doc.Normalize()
	page, err := s.exporter.HTML(doc, subject)
	if err != nil {
		return err
	}
	if err := s.mailer.SendHTMLEmail(to, subject, page); err != nil {
		return err
	}
	s.log.Info().Strs("to", to).Str("subject", subject).Msg("report sent")
	return nil
}

// EditorSurface renders the editable markup for doc.
func (s *Service) EditorSurface(doc *document.Document) (string, error) {
	return editor.Populate(doc)
}

// EditorPage renders the full editor page for doc.
func (s *Service) EditorPage(w io.Writer, doc *document.Document) error {
	var buf bytes.Buffer
	if err := editor.Page(&buf, editor.PageData{Document: doc, Preview: template.HTML(s.PreviewHTML(doc))}); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// Collect reads a document back out of editor surface markup.
func (s *Service) Collect(r io.Reader) (*document.Document, error) {
	doc, err := editor.Collect(r)
	if err != nil {
		return nil, invalid("INVALID_MARKUP", err)
	}
	return doc, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Close() error {
	s.search.Close()
	var errs []error
	if err := s.sessions.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
