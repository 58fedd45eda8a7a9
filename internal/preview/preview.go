// Package preview projects a document into the read-only markup shown next to
// the editor and embedded in exports.
package preview

import (
	"fmt"
	"html"
	"strings"
	"time"

	"taskdoc/internal/document"
)

// Options tune the projection.
type Options struct {
	// ShowContentOnlyTasks renders tasks that have neither a title nor items
	// but do carry tables or images. The browser editor always hid them, so
	// saved previews omit them unless this is set.
	ShowContentOnlyTasks bool
}

// Renderer renders documents. The zero value is ready to use.
type Renderer struct {
	opts Options
}

func New(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Render projects doc with default options.
func Render(doc *document.Document) string {
	return New(Options{}).Render(doc)
}

// Render is pure: the same document always yields the same markup and the
// document is never modified.
func (r *Renderer) Render(doc *document.Document) string {
	var b strings.Builder
	if doc == nil {
		return ""
	}
	for _, block := range doc.Blocks {
		if block.Title != "" {
			fmt.Fprintf(&b, "<div class=\"block-header-preview\">[%s]</div>\n", esc(block.Title))
		}
		for i, task := range block.Tasks {
			if !r.visible(task) {
				continue
			}
			r.renderTask(&b, i+1, task)
		}
	}
	if len(doc.Attachments) > 0 {
		b.WriteString("<div style=\"margin: 20px 0; padding: 10px; background-color: #f9f9f9; border: 1px solid #ddd;\">\n")
		b.WriteString("<strong>📎 附件:</strong><br>\n")
		for _, a := range doc.Attachments {
			fmt.Fprintf(&b, "<div style=\"margin: 5px 0; color: #0066cc;\">• %s</div>\n", esc(a.OriginalName))
		}
		b.WriteString("</div>\n")
	}
	return b.String()
}

func (r *Renderer) visible(task *document.Task) bool {
	if task.Title != "" || len(task.Items) > 0 {
		return true
	}
	return r.opts.ShowContentOnlyTasks && (len(task.Tables) > 0 || len(task.Images) > 0)
}

func (r *Renderer) renderTask(b *strings.Builder, number int, task *document.Task) {
	b.WriteString("<div class=\"task-item-preview\">\n")
	fmt.Fprintf(b, "<span class=\"task-number-preview\">%d.</span>", number)
	if task.Priority != "" {
		class := "priority-2-preview"
		if task.Priority == "1" {
			class = "priority-1-preview"
		}
		fmt.Fprintf(b, "<span class=\"%s\">[Priority:%s]</span> ", class, esc(task.Priority))
	}
	if task.Title != "" {
		fmt.Fprintf(b, "<span class=\"task-title-preview\">%s</span>", esc(task.Title))
	}
	if task.Owner != "" {
		fmt.Fprintf(b, " - %s", esc(task.Owner))
	}
	if task.DueDate != "" {
		fmt.Fprintf(b, " <span class=\"due-date-preview\">[Due date: %s]</span>", esc(DisplayDate(task.DueDate)))
	}
	if task.Status != "" {
		fmt.Fprintf(b, " <span class=\"status-preview\">[Status: %s]</span>", esc(task.Status))
	}
	b.WriteString("\n")

	renderItems(b, task.Items, 0)

	for _, table := range task.Tables {
		b.WriteString("<table class=\"table\" style=\"border-collapse: collapse; margin: 10px 0;\">\n")
		for _, row := range table.Rows {
			b.WriteString("<tr>\n")
			for _, cell := range row {
				fmt.Fprintf(b, "<td style=\"border: 1px solid #ccc; padding: 4px 8px;\">%s</td>\n", esc(cell))
			}
			b.WriteString("</tr>\n")
		}
		b.WriteString("</table>\n")
	}

	for _, image := range task.Images {
		src := "#"
		if document.SafeImageSource(image.Src) {
			src = image.Src
		}
		fmt.Fprintf(b, "<div><img src=\"%s\" style=\"width: %dpx; height: auto; margin: 10px 0;\" alt=\"Task Image\"></div>\n", esc(src), image.Width)
	}

	b.WriteString("</div>\n")
}

// renderItems writes items depth-first, pre-order. The indent class follows
// nesting depth, not the stored level.
func renderItems(b *strings.Builder, items []*document.NestedItem, depth int) {
	indent := min(depth, document.MaxLevel)
	for _, item := range items {
		fmt.Fprintf(b, "<div class=\"sub-item-preview indent-%d\">■ %s</div>\n", indent, esc(item.Text))
		renderItems(b, item.Children, depth+1)
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02T15:04",
}

// DisplayDate formats a due date as MMDD. Values that do not parse are
// returned unchanged.
func DisplayDate(value string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("0102")
		}
	}
	return value
}

func esc(s string) string {
	return html.EscapeString(s)
}
