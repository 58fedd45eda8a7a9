// Package search indexes tasks and attachments so saved documents can be
// queried by text, owner or status.
package search

import (
	"strings"

	"taskdoc/internal/document"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTask       ResultType = "task"
	ResultAttachment ResultType = "attachment"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	BlockID    string     `json:"blockId,omitempty"`
	BlockTitle string     `json:"blockTitle,omitempty"`
	Owner      string     `json:"owner,omitempty"`
	Status     string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Owner      string
	Status     string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer replaces the indexed contents with a new snapshot.
type Indexer interface {
	Replace(tasks []TaskRecord, attachments []AttachmentRecord) error
}

// TaskRecord is the data we index for a task. Content joins item text and
// table cells.
type TaskRecord struct {
	ID         string `json:"id"`
	BlockID    string `json:"blockId"`
	BlockTitle string `json:"blockTitle"`
	Title      string `json:"title"`
	Owner      string `json:"owner"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	DueDate    string `json:"dueDate"`
	Content    string `json:"content"`
}

// AttachmentRecord is the data we index for an attachment.
type AttachmentRecord struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	UploadTime   string `json:"uploadTime"`
}

// Records flattens a document into index records in display order.
func Records(doc *document.Document) ([]TaskRecord, []AttachmentRecord) {
	tasks := make([]TaskRecord, 0)
	for _, block := range doc.Blocks {
		for _, task := range block.Tasks {
			var content []string
			var walk func(items []*document.NestedItem)
			walk = func(items []*document.NestedItem) {
				for _, item := range items {
					if item.Text != "" {
						content = append(content, item.Text)
					}
					walk(item.Children)
				}
			}
			walk(task.Items)
			for _, table := range task.Tables {
				for _, row := range table.Rows {
					content = append(content, strings.Join(row, " "))
				}
			}
			tasks = append(tasks, TaskRecord{
				ID:         task.ID,
				BlockID:    block.ID,
				BlockTitle: block.Title,
				Title:      task.Title,
				Owner:      task.Owner,
				Status:     task.Status,
				Priority:   task.Priority,
				DueDate:    task.DueDate,
				Content:    strings.Join(content, "\n"),
			})
		}
	}
	attachments := make([]AttachmentRecord, 0, len(doc.Attachments))
	for _, a := range doc.Attachments {
		attachments = append(attachments, AttachmentRecord{ID: a.ID, OriginalName: a.OriginalName, UploadTime: a.UploadTime})
	}
	return tasks, attachments
}
