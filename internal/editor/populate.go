// Package editor binds documents to the editor surface markup: Populate
// renders a document into form elements and Collect reads a surface back.
package editor

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"taskdoc/internal/document"
)

//go:embed templates/*.html
var templateFS embed.FS

var surfaceTemplate = template.Must(template.New("editor").Funcs(template.FuncMap{
	"taskView":  newTaskView,
	"imageSrc":  imageSrc,
	"sizeLabel": SizeLabel,
	"verbatim":  verbatim,
}).ParseFS(templateFS, "templates/*.html"))

type taskView struct {
	Number int
	Task   *document.Task
}

func newTaskView(index int, task *document.Task) taskView {
	return taskView{Number: index + 1, Task: task}
}

// imageSrc lets data:image URIs through the template's URL filter and
// replaces unsafe sources. The raw source is kept in data-image-source.
func imageSrc(src string) template.URL {
	if !document.SafeImageSource(src) {
		return "#"
	}
	return template.URL(src)
}

// verbatim escapes text for element content or a quoted attribute. HTML
// parsers fold CR and CRLF into LF, so CR goes out as a character reference
// and Collect reads back the exact string.
func verbatim(s string) template.HTML {
	return template.HTML(strings.ReplaceAll(html.EscapeString(s), "\r", "&#13;"))
}

// SizeLabel formats an attachment size for display.
func SizeLabel(size document.Bytes) string {
	if size <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(size))
}

// Populate renders the editor surface for doc.
func Populate(doc *document.Document) (string, error) {
	var buf bytes.Buffer
	if err := PopulateTo(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func PopulateTo(w io.Writer, doc *document.Document) error {
	if doc == nil {
		doc = document.New()
	}
	if err := surfaceTemplate.ExecuteTemplate(w, "surface", doc); err != nil {
		return fmt.Errorf("render editor surface: %w", err)
	}
	return nil
}

// PageData feeds the full editor page.
type PageData struct {
	Title    string
	Document *document.Document
	// Preview is markup produced by the preview renderer, which escapes all
	// document text.
	Preview template.HTML
}

// Page renders the complete editor page served at the site root.
func Page(w io.Writer, data PageData) error {
	if data.Document == nil {
		data.Document = document.New()
	}
	if data.Title == "" {
		data.Title = "Task Editor"
	}
	if err := surfaceTemplate.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("render editor page: %w", err)
	}
	return nil
}
