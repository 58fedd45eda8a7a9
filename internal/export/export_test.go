package export

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/mail"
	"strings"
	"testing"
	"time"

	"taskdoc/internal/document"
	"taskdoc/internal/preview"
)

func sampleDocument() *document.Document {
	ids := document.NewAllocator()
	doc := document.NewWithBlock(ids)
	doc.Blocks[0].Title = "Sprint"
	task := doc.Blocks[0].InsertTask(ids, "")
	task.Title = "Fix bug"
	task.Priority = "1"
	task.InsertItem(ids, 0).Text = "write test"

	chart := doc.Blocks[0].InsertTask(ids, "")
	chart.InsertImage(ids, "/static/uploads/chart.png")
	return doc
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "tasks"},
		{"週報", "週報"},
		{"週報 第12週", "週報-第12週"},
		{"!!!", "tasks"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestHTMLDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"■", "%E2%96%A0"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := htmlDataURL(tt.input)
			if want := "data:text/html;charset=utf-8," + tt.expected; result != want {
				t.Errorf("htmlDataURL(%q) = %q, want %q", tt.input, result, want)
			}
		})
	}
}

func TestRenderDocumentHTML(t *testing.T) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:       "Weekly <report>",
		ContentHTML: template.HTML(`<div class="block-header-preview">[Sprint]</div>`),
		GeneratedAt: time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RenderDocumentHTML() error = %v", err)
	}
	if !strings.Contains(html, "<title>Weekly &lt;report&gt;</title>") {
		t.Error("title should be escaped")
	}
	if !strings.Contains(html, `<div class="block-header-preview">[Sprint]</div>`) {
		t.Error("content HTML should be rendered unescaped")
	}
	if !strings.Contains(html, "2024-03-05 09:30") {
		t.Error("HTML missing generation time")
	}
	for _, rule := range []string{".indent-0 { padding-left: 20px; }", ".indent-5 { padding-left: 120px; }"} {
		if !strings.Contains(html, rule) {
			t.Errorf("HTML missing indent rule %q", rule)
		}
	}
	if strings.Contains(html, ".indent-6") {
		t.Error("indent rules should stop at the deepest level")
	}
}

func TestExportHTML(t *testing.T) {
	svc := NewService(Options{})
	res, err := svc.Export(context.Background(), sampleDocument(), Request{Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Filename != "tasks.html" {
		t.Errorf("Filename = %q, want tasks.html", res.Filename)
	}
	if !strings.HasPrefix(res.MimeType, "text/html") {
		t.Errorf("MimeType = %q", res.MimeType)
	}
	body := string(res.Data)
	for _, want := range []string{"<title>Task Report</title>", "[Sprint]", "[Priority:1]", "■ write test"} {
		if !strings.Contains(body, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if strings.Contains(body, "chart.png") {
		t.Error("content-only task should be hidden with default preview options")
	}
	if strings.Contains(body, `class="generated"`) {
		t.Error("generation stamp should be omitted without a clock")
	}
}

func TestExportHonoursPreviewOptions(t *testing.T) {
	svc := NewService(Options{Preview: preview.Options{ShowContentOnlyTasks: true}})
	res, err := svc.Export(context.Background(), sampleDocument(), Request{Format: FormatHTML, Title: "Weekly Sync"})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Filename != "Weekly-Sync.html" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if !strings.Contains(string(res.Data), "/static/uploads/chart.png") {
		t.Error("content-only task should be rendered")
	}
}

func TestExportMSG(t *testing.T) {
	svc := NewService(Options{})
	res, err := svc.Export(context.Background(), sampleDocument(), Request{Format: FormatMSG})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Filename != "tasks.msg" {
		t.Errorf("Filename = %q, want tasks.msg", res.Filename)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	checks := map[string]string{
		"Subject": DefaultSubject,
		"From":    DefaultFrom,
		"To":      DefaultTo,
	}
	for header, want := range checks {
		if got := msg.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if !strings.HasPrefix(msg.Header.Get("Content-Type"), "multipart/alternative") {
		t.Errorf("Content-Type = %q", msg.Header.Get("Content-Type"))
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := NewService(Options{}).Export(context.Background(), document.New(), Request{Format: "odt"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExportBinaryFormatsReportMissingTools(t *testing.T) {
	if testing.Short() {
		t.Skip("launches external tools")
	}
	svc := NewService(Options{})
	ctx := context.Background()

	res, err := svc.Export(ctx, sampleDocument(), Request{Format: FormatPDF})
	switch {
	case errors.Is(err, ErrPDFDependencyMissing):
		t.Log("chromium not installed")
	case err != nil:
		t.Logf("pdf export failed: %v", err)
	case !bytes.HasPrefix(res.Data, []byte("%PDF")):
		t.Errorf("pdf output does not start with %%PDF")
	}

	res, err = svc.Export(ctx, sampleDocument(), Request{Format: FormatDOCX})
	switch {
	case errors.Is(err, ErrDOCXDependencyMissing):
		t.Log("pandoc not installed")
	case err != nil:
		t.Logf("docx export failed: %v", err)
	case !bytes.HasPrefix(res.Data, []byte("PK")):
		t.Errorf("docx output is not a zip archive")
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"html", "MSG", " pdf ", "docx"} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", in, err)
		}
	}
	if _, err := ParseFormat("rtf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ParseFormat(rtf) error = %v", err)
	}
}
