package document

// Direction selects the neighbor a move swaps with.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// InsertBlock appends a new empty block.
func (d *Document) InsertBlock(ids *Allocator) *Block {
	block := newBlock(ids.Next(KindBlock))
	d.Blocks = append(d.Blocks, block)
	return block
}

// Block returns the block with the given ID, or nil.
func (d *Document) Block(id string) *Block {
	for _, block := range d.Blocks {
		if block.ID == id {
			return block
		}
	}
	return nil
}

// MoveBlock swaps the block with its neighbor. It reports whether anything moved.
func (d *Document) MoveBlock(id string, dir Direction) bool {
	return moveByID(d.Blocks, id, dir, func(b *Block) string { return b.ID })
}

// DeleteBlock removes the block and everything under it.
func (d *Document) DeleteBlock(id string) bool {
	var removed bool
	d.Blocks, removed = removeByID(d.Blocks, id, func(b *Block) string { return b.ID })
	return removed
}

// ReorderBlocks applies an ordering of block IDs. Unknown IDs are ignored and
// blocks missing from order keep their relative order after the listed ones.
func (d *Document) ReorderBlocks(order []string) {
	d.Blocks = reorder(d.Blocks, order, func(b *Block) string { return b.ID })
}

// FindTask locates a task anywhere in the document.
func (d *Document) FindTask(id string) (*Block, *Task) {
	for _, block := range d.Blocks {
		if task := block.Task(id); task != nil {
			return block, task
		}
	}
	return nil, nil
}

// AddAttachment appends attachment metadata, replacing an entry with the same ID.
func (d *Document) AddAttachment(a Attachment) {
	for i := range d.Attachments {
		if d.Attachments[i].ID == a.ID {
			d.Attachments[i] = a
			return
		}
	}
	d.Attachments = append(d.Attachments, a)
}

func (d *Document) RemoveAttachment(id string) bool {
	for i := range d.Attachments {
		if d.Attachments[i].ID == id {
			d.Attachments = append(d.Attachments[:i], d.Attachments[i+1:]...)
			return true
		}
	}
	return false
}

// InsertTask appends a new task, or places it right after afterTaskID when
// that task exists in this block.
func (b *Block) InsertTask(ids *Allocator, afterTaskID string) *Task {
	task := newTask(ids.Next(KindTask))
	if afterTaskID != "" {
		for i, existing := range b.Tasks {
			if existing.ID != afterTaskID {
				continue
			}
			b.Tasks = append(b.Tasks, nil)
			copy(b.Tasks[i+2:], b.Tasks[i+1:])
			b.Tasks[i+1] = task
			return task
		}
	}
	b.Tasks = append(b.Tasks, task)
	return task
}

func (b *Block) Task(id string) *Task {
	for _, task := range b.Tasks {
		if task.ID == id {
			return task
		}
	}
	return nil
}

func (b *Block) MoveTask(id string, dir Direction) bool {
	return moveByID(b.Tasks, id, dir, func(t *Task) string { return t.ID })
}

func (b *Block) DeleteTask(id string) bool {
	var removed bool
	b.Tasks, removed = removeByID(b.Tasks, id, func(t *Task) string { return t.ID })
	return removed
}

func (b *Block) ReorderTasks(order []string) {
	b.Tasks = reorder(b.Tasks, order, func(t *Task) string { return t.ID })
}

// TaskNumber is the 1-based display number of the task, or 0 if absent.
// Numbers are always derived from position and never stored.
func (b *Block) TaskNumber(id string) int {
	for i, task := range b.Tasks {
		if task.ID == id {
			return i + 1
		}
	}
	return 0
}

// InsertItem appends a root-level item to the task at the given level.
func (t *Task) InsertItem(ids *Allocator, level int) *NestedItem {
	item := newItem(ids.Next(KindItem), level)
	t.Items = append(t.Items, item)
	return item
}

// FindItem searches the task's item tree depth-first.
func (t *Task) FindItem(id string) *NestedItem {
	var found *NestedItem
	walkItems(t.Items, func(item *NestedItem) {
		if found == nil && item.ID == id {
			found = item
		}
	})
	return found
}

// DeleteItem removes the item with its whole subtree. Children are not
// reparented.
func (t *Task) DeleteItem(id string) bool {
	var removed bool
	t.Items, removed = deleteItem(t.Items, id)
	return removed
}

func deleteItem(items []*NestedItem, id string) ([]*NestedItem, bool) {
	for i, item := range items {
		if item.ID == id {
			return append(items[:i], items[i+1:]...), true
		}
		var removed bool
		if item.Children, removed = deleteItem(item.Children, id); removed {
			return items, true
		}
	}
	return items, false
}

// InsertTable appends a one-row, two-column table.
func (t *Task) InsertTable(ids *Allocator) *Table {
	table := &Table{
		ID:   ids.Next(KindTable),
		Rows: [][]string{{HeaderPlaceholder, HeaderPlaceholder}},
	}
	t.Tables = append(t.Tables, table)
	return table
}

func (t *Task) Table(id string) *Table {
	for _, table := range t.Tables {
		if table.ID == id {
			return table
		}
	}
	return nil
}

func (t *Task) DeleteTable(id string) bool {
	var removed bool
	t.Tables, removed = removeByID(t.Tables, id, func(tb *Table) string { return tb.ID })
	return removed
}

// InsertImage appends an image at the default width.
func (t *Task) InsertImage(ids *Allocator, src string) *Image {
	image := &Image{ID: ids.Next(KindImage), Src: src, Width: DefaultImageWidth}
	t.Images = append(t.Images, image)
	return image
}

func (t *Task) Image(id string) *Image {
	for _, image := range t.Images {
		if image.ID == id {
			return image
		}
	}
	return nil
}

func (t *Task) DeleteImage(id string) bool {
	var removed bool
	t.Images, removed = removeByID(t.Images, id, func(im *Image) string { return im.ID })
	return removed
}

// Field reads a text field by its wire name.
func (t *Task) Field(name string) (string, bool) {
	switch name {
	case "title":
		return t.Title, true
	case "owner":
		return t.Owner, true
	case "dueDate":
		return t.DueDate, true
	case "status":
		return t.Status, true
	case "priority":
		return t.Priority, true
	}
	return "", false
}

// SetField writes one of the task's text fields by its wire name.
func (t *Task) SetField(name, value string) bool {
	switch name {
	case "title":
		t.Title = value
	case "owner":
		t.Owner = value
	case "dueDate":
		t.DueDate = value
	case "status":
		t.Status = value
	case "priority":
		t.Priority = value
	default:
		return false
	}
	return true
}

// InsertChild appends a child one level deeper than the item, capped at MaxLevel.
func (n *NestedItem) InsertChild(ids *Allocator) *NestedItem {
	child := newItem(ids.Next(KindItem), int(n.Level)+1)
	n.Children = append(n.Children, child)
	return child
}

// SetIndent shifts the level by delta. Results outside [0, MaxLevel] are
// clamped; it reports whether the level changed.
func (n *NestedItem) SetIndent(delta int) bool {
	next := clampLevel(int(n.Level) + delta)
	if next == int(n.Level) {
		return false
	}
	n.Level = Level(next)
	return true
}

// AddRow appends a row as wide as the first row. An empty table gets a
// two-column header row instead.
func (tb *Table) AddRow() {
	if len(tb.Rows) == 0 {
		tb.Rows = append(tb.Rows, []string{HeaderPlaceholder, HeaderPlaceholder})
		return
	}
	row := make([]string, len(tb.Rows[0]))
	for i := range row {
		row[i] = CellPlaceholder
	}
	tb.Rows = append(tb.Rows, row)
}

// AddColumn appends one cell to every row.
func (tb *Table) AddColumn() {
	for i := range tb.Rows {
		cell := CellPlaceholder
		if i == 0 {
			cell = HeaderPlaceholder
		}
		tb.Rows[i] = append(tb.Rows[i], cell)
	}
}

// SetCell overwrites an existing cell.
func (tb *Table) SetCell(row, col int, value string) bool {
	if row < 0 || row >= len(tb.Rows) || col < 0 || col >= len(tb.Rows[row]) {
		return false
	}
	tb.Rows[row][col] = value
	return true
}

// Columns is the width of the first row.
func (tb *Table) Columns() int {
	if len(tb.Rows) == 0 {
		return 0
	}
	return len(tb.Rows[0])
}

// SetWidth changes the display width. Non-positive widths are ignored.
func (im *Image) SetWidth(px int) bool {
	if px <= 0 {
		return false
	}
	im.Width = Pixels(px)
	return true
}

func walkItems(items []*NestedItem, fn func(*NestedItem)) {
	for _, item := range items {
		fn(item)
		walkItems(item.Children, fn)
	}
}

func moveByID[T any](list []T, id string, dir Direction, key func(T) string) bool {
	for i, entry := range list {
		if key(entry) != id {
			continue
		}
		j := i - 1
		if dir == Down {
			j = i + 1
		}
		if j < 0 || j >= len(list) {
			return false
		}
		list[i], list[j] = list[j], list[i]
		return true
	}
	return false
}

func removeByID[T any](list []T, id string, key func(T) string) ([]T, bool) {
	for i, entry := range list {
		if key(entry) == id {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

// reorder moves the entries named in order to the front, in that order, and
// keeps the rest in their current order. Entries sharing an id are placed one
// per mention, so the result is always a permutation of list.
func reorder[T any](list []T, order []string, key func(T) string) []T {
	byID := make(map[string][]int, len(list))
	for i, entry := range list {
		id := key(entry)
		byID[id] = append(byID[id], i)
	}
	out := make([]T, 0, len(list))
	placed := make([]bool, len(list))
	for _, id := range order {
		pending := byID[id]
		if len(pending) == 0 {
			continue
		}
		out = append(out, list[pending[0]])
		placed[pending[0]] = true
		byID[id] = pending[1:]
	}
	for i, entry := range list {
		if !placed[i] {
			out = append(out, entry)
		}
	}
	return out
}
