package editor

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"taskdoc/internal/document"
)

// hasClass builds an XPath predicate matching one class token.
func hasClass(class string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", class)
}

func descendants(tag, class string) *xpath.Expr {
	return xpath.MustCompile(fmt.Sprintf(".//%s[%s]", tag, hasClass(class)))
}

func children(path string) *xpath.Expr {
	return xpath.MustCompile(path)
}

var (
	blockExpr      = descendants("*", "block")
	blockTitleExpr = descendants("input", "block-title")
	taskExpr       = descendants("*", "task")
	tableExpr      = descendants("*", "table-container")
	rowExpr        = xpath.MustCompile(".//tr")
	cellExpr       = xpath.MustCompile("./*[local-name()='td' or local-name()='th']")
	imageExpr      = descendants("*", "image-container")
	imageTagExpr   = descendants("img", "task-image")
	widthExpr      = descendants("input", "image-width-slider")
	attachmentExpr = xpath.MustCompile("//*[@data-attachment-id]")

	rootItemsExpr  = children(fmt.Sprintf("./*[%s]/*[%s]", hasClass("task-content"), hasClass("nested-item")))
	childItemsExpr = children(fmt.Sprintf("./*[%s]/*[%s]", hasClass("child-items"), hasClass("nested-item")))
	itemTextExpr   = children(fmt.Sprintf("./*[%s]/input[%s]", hasClass("item-row"), hasClass("item-text")))
	bareTextExpr   = children(fmt.Sprintf("./input[%s]", hasClass("item-text")))

	taskFieldExprs = map[string]*xpath.Expr{
		"title":    descendants("*", "task-title"),
		"owner":    descendants("*", "task-owner"),
		"dueDate":  descendants("*", "task-due-date"),
		"status":   descendants("*", "task-status"),
		"priority": descendants("*", "task-priority"),
	}
)

// Collect reads an editor surface into a fresh document. Elements are taken
// in markup order; missing fields read as empty strings. Only a failure to
// read r is an error.
func Collect(r io.Reader) (*document.Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse editor surface: %w", err)
	}
	return CollectNode(root), nil
}

// CollectString is Collect over in-memory markup.
func CollectString(markup string) (*document.Document, error) {
	return Collect(strings.NewReader(markup))
}

// CollectNode reads a surface that has already been parsed.
func CollectNode(root *html.Node) *document.Document {
	doc := document.New()
	for _, blockNode := range htmlquery.QuerySelectorAll(root, blockExpr) {
		block := &document.Block{
			ID:    htmlquery.SelectAttr(blockNode, "data-block-id"),
			Title: inputValue(htmlquery.QuerySelector(blockNode, blockTitleExpr)),
			Tasks: []*document.Task{},
		}
		for _, taskNode := range htmlquery.QuerySelectorAll(blockNode, taskExpr) {
			block.Tasks = append(block.Tasks, collectTask(taskNode))
		}
		doc.Blocks = append(doc.Blocks, block)
	}
	for _, n := range htmlquery.QuerySelectorAll(root, attachmentExpr) {
		doc.Attachments = append(doc.Attachments, document.Attachment{
			ID:           htmlquery.SelectAttr(n, "data-attachment-id"),
			OriginalName: htmlquery.SelectAttr(n, "data-original-name"),
			Size:         document.ParseBytes(htmlquery.SelectAttr(n, "data-size")),
			UploadTime:   htmlquery.SelectAttr(n, "data-upload-time"),
		})
	}
	doc.Normalize()
	return doc
}

func collectTask(n *html.Node) *document.Task {
	task := &document.Task{
		ID:     htmlquery.SelectAttr(n, "data-task-id"),
		Items:  collectItems(n, rootItemsExpr),
		Tables: []*document.Table{},
		Images: []*document.Image{},
	}
	for field, expr := range taskFieldExprs {
		task.SetField(field, inputValue(htmlquery.QuerySelector(n, expr)))
	}
	for _, tableNode := range htmlquery.QuerySelectorAll(n, tableExpr) {
		table := &document.Table{ID: htmlquery.SelectAttr(tableNode, "data-table-id"), Rows: [][]string{}}
		for _, rowNode := range htmlquery.QuerySelectorAll(tableNode, rowExpr) {
			row := []string{}
			for _, cell := range htmlquery.QuerySelectorAll(rowNode, cellExpr) {
				row = append(row, htmlquery.InnerText(cell))
			}
			table.Rows = append(table.Rows, row)
		}
		task.Tables = append(task.Tables, table)
	}
	for _, imageNode := range htmlquery.QuerySelectorAll(n, imageExpr) {
		src := htmlquery.SelectAttr(imageNode, "data-image-source")
		if !htmlquery.ExistsAttr(imageNode, "data-image-source") {
			src = htmlquery.SelectAttr(htmlquery.QuerySelector(imageNode, imageTagExpr), "src")
		}
		task.Images = append(task.Images, &document.Image{
			ID:    htmlquery.SelectAttr(imageNode, "data-image-id"),
			Src:   src,
			Width: document.ParsePixels(inputValue(htmlquery.QuerySelector(imageNode, widthExpr))),
		})
	}
	return task
}

func collectItems(parent *html.Node, expr *xpath.Expr) []*document.NestedItem {
	items := []*document.NestedItem{}
	for _, n := range htmlquery.QuerySelectorAll(parent, expr) {
		items = append(items, &document.NestedItem{
			ID:       htmlquery.SelectAttr(n, "data-item-id"),
			Text:     itemText(n),
			Level:    document.ParseLevel(htmlquery.SelectAttr(n, "data-level")),
			Children: collectItems(n, childItemsExpr),
		})
	}
	return items
}

func itemText(n *html.Node) string {
	if input := htmlquery.QuerySelector(n, itemTextExpr); input != nil {
		return inputValue(input)
	}
	return inputValue(htmlquery.QuerySelector(n, bareTextExpr))
}

// inputValue reads a form control. Inputs carry their value in the value
// attribute; textareas and selects are read from their content.
func inputValue(n *html.Node) string {
	if n == nil {
		return ""
	}
	switch n.Data {
	case "textarea":
		return htmlquery.InnerText(n)
	case "select":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "option" && htmlquery.ExistsAttr(c, "selected") {
				if htmlquery.ExistsAttr(c, "value") {
					return htmlquery.SelectAttr(c, "value")
				}
				return htmlquery.InnerText(c)
			}
		}
		return ""
	}
	return htmlquery.SelectAttr(n, "value")
}
