package document

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names an entity family for ID allocation.
type Kind string

const (
	KindBlock      Kind = "block"
	KindTask       Kind = "task"
	KindItem       Kind = "item"
	KindTable      Kind = "table"
	KindImage      Kind = "image"
	KindAttachment Kind = "attachment"
)

// Kinds lists every allocatable kind.
var Kinds = []Kind{KindBlock, KindTask, KindItem, KindTable, KindImage, KindAttachment}

// Allocator issues "{kind}_{n}" IDs from one increasing counter per kind.
// It belongs to a single editing session and is not safe for concurrent use.
type Allocator struct {
	counters map[Kind]int
}

func NewAllocator() *Allocator {
	return &Allocator{counters: make(map[Kind]int, len(Kinds))}
}

// NewAllocatorFrom restores an allocator from saved counters.
func NewAllocatorFrom(counters map[Kind]int) *Allocator {
	a := NewAllocator()
	for kind, n := range counters {
		if n > 0 {
			a.counters[kind] = n
		}
	}
	return a
}

// Next increments the kind's counter and returns the new ID.
func (a *Allocator) Next(kind Kind) string {
	a.counters[kind]++
	return fmt.Sprintf("%s_%d", kind, a.counters[kind])
}

// Counters returns a copy of the current counter values.
func (a *Allocator) Counters() map[Kind]int {
	out := make(map[Kind]int, len(a.counters))
	for kind, n := range a.counters {
		out[kind] = n
	}
	return out
}

// Observe raises the kind's counter so that the next ID issued comes after id.
// IDs that are not of the form "{kind}_{n}" are ignored.
func (a *Allocator) Observe(kind Kind, id string) {
	n, ok := parseID(kind, id)
	if ok && n > a.counters[kind] {
		a.counters[kind] = n
	}
}

// Sync raises every counter to the highest ID of its kind present in doc, so
// entities created after loading never collide with loaded ones.
func (a *Allocator) Sync(doc *Document) {
	if doc == nil {
		return
	}
	for _, block := range doc.Blocks {
		a.Observe(KindBlock, block.ID)
		for _, task := range block.Tasks {
			a.Observe(KindTask, task.ID)
			walkItems(task.Items, func(item *NestedItem) {
				a.Observe(KindItem, item.ID)
			})
			for _, table := range task.Tables {
				a.Observe(KindTable, table.ID)
			}
			for _, image := range task.Images {
				a.Observe(KindImage, image.ID)
			}
		}
	}
	for _, attachment := range doc.Attachments {
		a.Observe(KindAttachment, attachment.ID)
	}
}

func parseID(kind Kind, id string) (int, bool) {
	suffix, found := strings.CutPrefix(id, string(kind)+"_")
	if !found || suffix == "" {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
