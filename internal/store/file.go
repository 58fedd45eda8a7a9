package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"taskdoc/internal/document"
)

const (
	documentFile    = "task_data.json"
	attachmentsFile = "attachments.json"
)

// FileStore keeps the document as task_data.json, one JSON file per
// template and the attachment index as attachments.json. Revisions are not
// tracked and DocumentInfo always reports revision 0.
type FileStore struct {
	dir          string
	templatesDir string

	mu sync.Mutex
}

func NewFileStore(dir, templatesDir string) (*FileStore, error) {
	for _, d := range []string{dir, templatesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &FileStore{dir: dir, templatesDir: templatesDir}, nil
}

func (s *FileStore) LoadDocument(ctx context.Context) (*document.Document, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, documentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return document.Unmarshal(data)
}

func (s *FileStore) SaveDocument(ctx context.Context, doc *document.Document) (DocumentInfo, error) {
	data, err := document.Marshal(doc)
	if err != nil {
		return DocumentInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(filepath.Join(s.dir, documentFile), data); err != nil {
		return DocumentInfo{}, fmt.Errorf("save document: %w", err)
	}
	return s.documentInfo(data)
}

func (s *FileStore) DocumentInfo(ctx context.Context) (DocumentInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, documentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return DocumentInfo{}, ErrNotFound
	}
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("document info: %w", err)
	}
	return s.documentInfo(data)
}

func (s *FileStore) documentInfo(data []byte) (DocumentInfo, error) {
	st, err := os.Stat(filepath.Join(s.dir, documentFile))
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("document info: %w", err)
	}
	return DocumentInfo{Checksum: Checksum(data), UpdatedAt: st.ModTime()}, nil
}

func (s *FileStore) ListTemplates(ctx context.Context) ([]TemplateInfo, error) {
	entries, err := os.ReadDir(s.templatesDir)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	templates := []TemplateInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		templates = append(templates, TemplateInfo{
			Filename: entry.Name(),
			Created:  info.ModTime(),
			Size:     info.Size(),
		})
	}
	sort.Slice(templates, func(i, j int) bool {
		if !templates[i].Created.Equal(templates[j].Created) {
			return templates[i].Created.After(templates[j].Created)
		}
		return templates[i].Filename < templates[j].Filename
	})
	return templates, nil
}

func (s *FileStore) LoadTemplate(ctx context.Context, filename string) (*document.Document, error) {
	name, err := CleanTemplateName(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.templatesDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return document.Unmarshal(data)
}

func (s *FileStore) SaveTemplate(ctx context.Context, filename string, doc *document.Document) (TemplateInfo, error) {
	name, err := CleanTemplateName(filename)
	if err != nil {
		return TemplateInfo{}, err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return TemplateInfo{}, err
	}
	path := filepath.Join(s.templatesDir, name)
	if err := writeFileAtomic(path, data); err != nil {
		return TemplateInfo{}, fmt.Errorf("save template: %w", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		return TemplateInfo{}, fmt.Errorf("save template: %w", err)
	}
	return TemplateInfo{Filename: name, Created: st.ModTime(), Size: st.Size()}, nil
}

func (s *FileStore) DeleteTemplate(ctx context.Context, filename string) error {
	name, err := CleanTemplateName(filename)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.templatesDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

type attachmentRecord struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// readAttachments must be called with s.mu held.
func (s *FileStore) readAttachments() ([]attachmentRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, attachmentsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []attachmentRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read attachment index: %w", err)
	}
	var records []attachmentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode attachment index: %w", err)
	}
	return records, nil
}

func (s *FileStore) writeAttachments(records []attachmentRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode attachment index: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, attachmentsFile), data)
}

func (s *FileStore) SaveAttachment(ctx context.Context, a Attachment) error {
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readAttachments()
	if err != nil {
		return err
	}
	rec := attachmentRecord(a)
	replaced := false
	for i := range records {
		if records[i].ID == a.ID {
			records[i] = rec
			replaced = true
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return s.writeAttachments(records)
}

func (s *FileStore) GetAttachment(ctx context.Context, id string) (Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readAttachments()
	if err != nil {
		return Attachment{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return Attachment(rec), nil
		}
	}
	return Attachment{}, ErrNotFound
}

func (s *FileStore) ListAttachments(ctx context.Context) ([]Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readAttachments()
	if err != nil {
		return nil, err
	}
	out := make([]Attachment, 0, len(records))
	for _, rec := range records {
		out = append(out, Attachment(rec))
	}
	return out, nil
}

func (s *FileStore) DeleteAttachment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readAttachments()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.ID == id {
			return s.writeAttachments(append(records[:i], records[i+1:]...))
		}
	}
	return ErrNotFound
}

func (s *FileStore) Ping(ctx context.Context) error {
	st, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// writeFileAtomic replaces path so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
