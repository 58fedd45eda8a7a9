package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Decode reads a document in the wire shape. Absent fields default to empty
// values; the result is normalized.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// Unmarshal is Decode for an in-memory payload.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// Marshal encodes the document with two-space indentation, the layout of
// task_data.json.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	data, err := json.Marshal(d)
	if err != nil {
		return New()
	}
	clone, err := Unmarshal(data)
	if err != nil {
		return New()
	}
	return clone
}

// Normalize replaces nil collections with empty ones, drops nil entries,
// clamps item levels and defaults image widths, so the document always
// encodes to the full wire shape.
func (d *Document) Normalize() {
	if d.Attachments == nil {
		d.Attachments = []Attachment{}
	}
	blocks := make([]*Block, 0, len(d.Blocks))
	for _, block := range d.Blocks {
		if block == nil {
			continue
		}
		block.normalize()
		blocks = append(blocks, block)
	}
	d.Blocks = blocks
}

func (b *Block) normalize() {
	tasks := make([]*Task, 0, len(b.Tasks))
	for _, task := range b.Tasks {
		if task == nil {
			continue
		}
		task.normalize()
		tasks = append(tasks, task)
	}
	b.Tasks = tasks
}

func (t *Task) normalize() {
	t.Items = normalizeItems(t.Items)
	tables := make([]*Table, 0, len(t.Tables))
	for _, table := range t.Tables {
		if table == nil {
			continue
		}
		if table.Rows == nil {
			table.Rows = [][]string{}
		}
		for i, row := range table.Rows {
			if row == nil {
				table.Rows[i] = []string{}
			}
		}
		tables = append(tables, table)
	}
	t.Tables = tables
	images := make([]*Image, 0, len(t.Images))
	for _, image := range t.Images {
		if image == nil {
			continue
		}
		if image.Width <= 0 {
			image.Width = DefaultImageWidth
		}
		images = append(images, image)
	}
	t.Images = images
}

func normalizeItems(items []*NestedItem) []*NestedItem {
	out := make([]*NestedItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		item.Level = Level(clampLevel(int(item.Level)))
		item.Children = normalizeItems(item.Children)
		out = append(out, item)
	}
	return out
}

// Validate reports structural problems: duplicate IDs, levels outside
// [0, MaxLevel] and tables whose rows differ in width. It returns nil for a
// well-formed document.
func (d *Document) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	check := func(kind Kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s with empty id", kind))
			return
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("duplicate id %q", id))
		}
		seen[id] = true
	}
	for _, block := range d.Blocks {
		check(KindBlock, block.ID)
		for _, task := range block.Tasks {
			check(KindTask, task.ID)
			walkItems(task.Items, func(item *NestedItem) {
				check(KindItem, item.ID)
				if item.Level < 0 || item.Level > MaxLevel {
					errs = append(errs, fmt.Errorf("item %q level %d out of range", item.ID, item.Level))
				}
			})
			for _, table := range task.Tables {
				check(KindTable, table.ID)
				for i, row := range table.Rows {
					if len(row) != table.Columns() {
						errs = append(errs, fmt.Errorf("table %q row %d has %d cells, want %d", table.ID, i, len(row), table.Columns()))
					}
				}
			}
			for _, image := range task.Images {
				check(KindImage, image.ID)
				if image.Width <= 0 {
					errs = append(errs, fmt.Errorf("image %q width %d", image.ID, image.Width))
				}
			}
		}
	}
	for _, attachment := range d.Attachments {
		check(KindAttachment, attachment.ID)
	}
	return errors.Join(errs...)
}

// Stats counts the entities reachable from the root.
type Stats struct {
	Blocks      int `json:"blocks"`
	Tasks       int `json:"tasks"`
	Items       int `json:"items"`
	Tables      int `json:"tables"`
	Images      int `json:"images"`
	Attachments int `json:"attachments"`
}

func (d *Document) Stats() Stats {
	s := Stats{Blocks: len(d.Blocks), Attachments: len(d.Attachments)}
	for _, block := range d.Blocks {
		s.Tasks += len(block.Tasks)
		for _, task := range block.Tasks {
			walkItems(task.Items, func(*NestedItem) { s.Items++ })
			s.Tables += len(task.Tables)
			s.Images += len(task.Images)
		}
	}
	return s
}
