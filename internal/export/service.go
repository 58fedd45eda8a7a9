package export

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"taskdoc/internal/document"
	"taskdoc/internal/email"
	"taskdoc/internal/preview"
)

// Defaults for the .msg export, matching what the browser editor produced.
const (
	DefaultSubject = "Task Report"
	DefaultFrom    = "system@company.com"
	DefaultTo      = "recipient@company.com"
	defaultName    = "tasks"
)

// Options configure a Service. Zero values fall back to the defaults above.
type Options struct {
	Preview preview.Options
	Subject string
	From    string
	To      []string
	// Now stamps the generation time into the page. Nil leaves it out.
	Now func() time.Time
}

// Request contains parameters for an export operation
type Request struct {
	Format Format
	// Title names the output file and the page title.
	Title string
}

// Service provides document export functionality
type Service struct {
	renderer *preview.Renderer
	opts     Options
}

// NewService creates a new export service
func NewService(opts Options) *Service {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.From == "" {
		opts.From = DefaultFrom
	}
	if len(opts.To) == 0 {
		opts.To = []string{DefaultTo}
	}
	return &Service{renderer: preview.New(opts.Preview), opts: opts}
}

// Subject is the subject line used for mailed reports.
func (s *Service) Subject() string {
	return s.opts.Subject
}

// HTML renders doc as a standalone page styled for Outlook.
func (s *Service) HTML(doc *document.Document, title string) (string, error) {
	if title == "" {
		title = s.opts.Subject
	}
	data := TemplateData{
		Title:       title,
		ContentHTML: template.HTML(s.renderer.Render(doc)),
	}
	if s.opts.Now != nil {
		data.GeneratedAt = s.opts.Now()
	}
	page, err := RenderDocumentHTML(data)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return page, nil
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, doc *document.Document, req Request) (*Result, error) {
	page, err := s.HTML(doc, req.Title)
	if err != nil {
		return nil, err
	}
	name := req.Title
	if name == "" {
		name = defaultName
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(page),
			Filename: sanitizeFilename(name) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatMSG:
		return s.exportMSG(page, name)
	case FormatPDF:
		return exportPDF(ctx, page, name)
	case FormatDOCX:
		return exportDOCX(ctx, page, name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

// exportMSG wraps the page in a MIME message. Outlook opens the result as a
// draft; it is not the binary OLE .msg format.
func (s *Service) exportMSG(page, name string) (*Result, error) {
	raw, err := email.BuildHTMLMessage(email.Message{
		From:    s.opts.From,
		To:      s.opts.To,
		Subject: s.opts.Subject,
		HTML:    page,
	})
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	return &Result{
		Data:     raw,
		Filename: sanitizeFilename(name) + ".msg",
		MimeType: "application/vnd.ms-outlook",
	}, nil
}
