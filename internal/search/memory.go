package search

import (
	"html"
	"strings"
	"sync"
)

// Memory is an in-process index that scans every record. It backs search
// when Meilisearch is not configured or unreachable.
type Memory struct {
	mu          sync.RWMutex
	tasks       []TaskRecord
	attachments []AttachmentRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Healthy() bool {
	return true
}

func (m *Memory) Replace(tasks []TaskRecord, attachments []AttachmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append([]TaskRecord(nil), tasks...)
	m.attachments = append([]AttachmentRecord(nil), attachments...)
	return nil
}

// Search matches every whitespace-separated term case-insensitively. An
// empty query matches everything that passes the filters.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(q.Text))
	var results []Result
	if q.FilterType == "" || q.FilterType == ResultTask {
		for _, t := range m.tasks {
			if q.Owner != "" && t.Owner != q.Owner {
				continue
			}
			if q.Status != "" && t.Status != q.Status {
				continue
			}
			haystack := strings.Join([]string{t.Title, t.Owner, t.Status, t.Priority, t.BlockTitle, t.Content}, "\n")
			if !matchesAll(haystack, terms) {
				continue
			}
			results = append(results, Result{
				Type:       ResultTask,
				ID:         t.ID,
				Title:      highlight(t.Title, terms),
				Snippet:    snippet(t.Content, terms),
				BlockID:    t.BlockID,
				BlockTitle: t.BlockTitle,
				Owner:      t.Owner,
				Status:     t.Status,
			})
		}
	}
	if (q.FilterType == "" || q.FilterType == ResultAttachment) && q.Owner == "" && q.Status == "" {
		for _, a := range m.attachments {
			if !matchesAll(a.OriginalName, terms) {
				continue
			}
			results = append(results, Result{
				Type:    ResultAttachment,
				ID:      a.ID,
				Title:   highlight(a.OriginalName, terms),
				Snippet: html.EscapeString(a.UploadTime),
			})
		}
	}

	total := len(results)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if q.Offset >= len(results) {
		return []Result{}, total, nil
	}
	results = results[max(q.Offset, 0):]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}

func matchesAll(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, term := range terms {
		if !strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

// highlight escapes s and wraps the first occurrence of each term in <mark>,
// matching the Meilisearch highlight tags.
func highlight(s string, terms []string) string {
	lower := strings.ToLower(s)
	marks := make([]bool, len(s))
	for _, term := range terms {
		if term == "" || len(lower) != len(s) {
			continue
		}
		if i := strings.Index(lower, term); i >= 0 {
			for j := i; j < i+len(term); j++ {
				marks[j] = true
			}
		}
	}
	var b strings.Builder
	open := false
	start := 0
	flush := func(end int) {
		b.WriteString(html.EscapeString(s[start:end]))
		start = end
	}
	for i := range s {
		if marks[i] != open {
			flush(i)
			if marks[i] {
				b.WriteString("<mark>")
			} else {
				b.WriteString("</mark>")
			}
			open = marks[i]
		}
	}
	flush(len(s))
	if open {
		b.WriteString("</mark>")
	}
	return b.String()
}

// snippet returns the first content line containing a term, or the first line.
func snippet(content string, terms []string) string {
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		for _, term := range terms {
			if strings.Contains(strings.ToLower(line), term) {
				return highlight(line, terms)
			}
		}
	}
	return html.EscapeString(lines[0])
}
