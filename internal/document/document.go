// Package document holds the task document tree and the structural operations
// the editor performs on it.
package document

// MaxLevel is the deepest indentation a nested item can reach.
const MaxLevel = 5

// DefaultImageWidth is the width in pixels given to newly inserted images.
const DefaultImageWidth = 300

// Table cell placeholders used when rows or columns are added.
const (
	HeaderPlaceholder = "新欄位"
	CellPlaceholder   = "新資料"
)

// Document is the root of the tree. It owns its blocks by value.
type Document struct {
	Blocks      []*Block     `json:"blocks"`
	Attachments []Attachment `json:"attachments"`
}

// Block is a titled section grouping tasks. Task order is display order.
type Block struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Tasks []*Task `json:"tasks"`
}

// Task is a unit of work with metadata and nested content.
type Task struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Owner    string        `json:"owner"`
	DueDate  string        `json:"dueDate"`
	Status   string        `json:"status"`
	Priority string        `json:"priority"`
	Items    []*NestedItem `json:"items"`
	Tables   []*Table      `json:"tables"`
	Images   []*Image      `json:"images"`
}

// NestedItem is a checklist line. Children are created one level deeper
// than their parent.
type NestedItem struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Level    Level         `json:"level"`
	Children []*NestedItem `json:"children"`
}

// Table is a rectangular grid of text cells. The first row acts as the
// header in rendered output but is stored like any other row.
type Table struct {
	ID   string     `json:"id"`
	Rows [][]string `json:"rows"`
}

// Image is a picture embedded in a task, by URL or data URI.
type Image struct {
	ID    string `json:"id"`
	Src   string `json:"src"`
	Width Pixels `json:"width"`
}

// Attachment is metadata for an uploaded file. The bytes live in the blob store.
type Attachment struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	Size         Bytes  `json:"size"`
	UploadTime   string `json:"upload_time"`
}

// New returns an empty document.
func New() *Document {
	return &Document{Blocks: []*Block{}, Attachments: []Attachment{}}
}

// NewWithBlock returns a document holding one empty block, the state the
// editor starts in when nothing could be loaded.
func NewWithBlock(ids *Allocator) *Document {
	doc := New()
	doc.InsertBlock(ids)
	return doc
}

func newBlock(id string) *Block {
	return &Block{ID: id, Tasks: []*Task{}}
}

func newTask(id string) *Task {
	return &Task{ID: id, Items: []*NestedItem{}, Tables: []*Table{}, Images: []*Image{}}
}

func newItem(id string, level int) *NestedItem {
	return &NestedItem{ID: id, Level: Level(clampLevel(level)), Children: []*NestedItem{}}
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
