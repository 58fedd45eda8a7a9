package gitrepo

import (
	"fmt"
	"strings"

	"taskdoc/internal/document"
)

// Change is a count that differs between two versions.
type Change struct {
	Field  string `json:"field"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

// DiffStats compares element counts of two versions in a fixed field order.
func DiffStats(from, to document.Stats) []Change {
	pairs := []Change{
		{Field: "blocks", Before: from.Blocks, After: to.Blocks},
		{Field: "tasks", Before: from.Tasks, After: to.Tasks},
		{Field: "items", Before: from.Items, After: to.Items},
		{Field: "tables", Before: from.Tables, After: to.Tables},
		{Field: "images", Before: from.Images, After: to.Images},
		{Field: "attachments", Before: from.Attachments, After: to.Attachments},
	}
	result := make([]Change, 0)
	for _, c := range pairs {
		if c.Before != c.After {
			result = append(result, c)
		}
	}
	return result
}

// SaveMessage builds the commit message for a save, e.g.
// "Save tasks (tasks 3→4, items 5→7)".
func SaveMessage(from, to document.Stats) string {
	changes := DiffStats(from, to)
	if len(changes) == 0 {
		return "Save tasks"
	}
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s %d→%d", c.Field, c.Before, c.After))
	}
	return "Save tasks (" + strings.Join(parts, ", ") + ")"
}
