package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"taskdoc/internal/document"
)

//go:embed templates/*.html
var templateFS embed.FS

// indentStep is the extra left padding per nesting level, in pixels.
const indentStep = 20

var documentTemplate = template.Must(template.New("document.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"indentLevels": func() []int {
		levels := make([]int, document.MaxLevel+1)
		for i := range levels {
			levels[i] = i
		}
		return levels
	},
	"indentPadding": func(level int) int {
		return indentStep * (level + 1)
	},
}).ParseFS(templateFS, "templates/document.html"))

// TemplateData is the export page: the preview markup plus a title and
// an optional generation time.
type TemplateData struct {
	Title       string
	ContentHTML template.HTML
	GeneratedAt time.Time
}

func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
