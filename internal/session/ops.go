package session

import (
	"fmt"
	"slices"
	"time"

	"taskdoc/internal/document"
)

// Operation names accepted by Apply.
const (
	OpInsertBlock      = "insertBlock"
	OpMoveBlock        = "moveBlock"
	OpDeleteBlock      = "deleteBlock"
	OpSetBlockTitle    = "setBlockTitle"
	OpReorderBlocks    = "reorderBlocks"
	OpInsertTask       = "insertTask"
	OpMoveTask         = "moveTask"
	OpDeleteTask       = "deleteTask"
	OpSetTaskField     = "setTaskField"
	OpReorderTasks     = "reorderTasks"
	OpInsertItem       = "insertItem"
	OpInsertChildItem  = "insertChildItem"
	OpSetIndent        = "setIndent"
	OpSetItemText      = "setItemText"
	OpDeleteItem       = "deleteItem"
	OpInsertTable      = "insertTable"
	OpAddTableRow      = "addTableRow"
	OpAddTableColumn   = "addTableColumn"
	OpSetCell          = "setCell"
	OpDeleteTable      = "deleteTable"
	OpInsertImage      = "insertImage"
	OpSetImageWidth    = "setImageWidth"
	OpDeleteImage      = "deleteImage"
	OpRemoveAttachment = "removeAttachment"
)

// Op is one structural edit. Only the fields the operation needs are read.
type Op struct {
	Op           string             `json:"op"`
	BlockID      string             `json:"blockId,omitempty"`
	TaskID       string             `json:"taskId,omitempty"`
	ItemID       string             `json:"itemId,omitempty"`
	TableID      string             `json:"tableId,omitempty"`
	ImageID      string             `json:"imageId,omitempty"`
	AttachmentID string             `json:"attachmentId,omitempty"`
	After        string             `json:"after,omitempty"`
	Direction    document.Direction `json:"direction,omitempty"`
	Field        string             `json:"field,omitempty"`
	Value        string             `json:"value,omitempty"`
	Level        int                `json:"level,omitempty"`
	Delta        int                `json:"delta,omitempty"`
	Row          int                `json:"row,omitempty"`
	Col          int                `json:"col,omitempty"`
	Width        int                `json:"width,omitempty"`
	Src          string             `json:"src,omitempty"`
	Order        []string           `json:"order,omitempty"`
}

// Result reports what an operation did. ID is set for inserts.
type Result struct {
	Op      string `json:"op"`
	ID      string `json:"id,omitempty"`
	Changed bool   `json:"changed"`
}

// Apply runs op against the session document. Boundary no-ops (moving the
// first block up, indenting past the maximum) succeed with Changed=false.
// Missing targets return ErrTargetNotFound and leave the document untouched.
func (s *Session) Apply(op Op, now time.Time) (Result, error) {
	res, err := s.apply(op)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op.Op, err)
	}
	res.Op = op.Op
	if res.Changed {
		s.Counters = s.Allocator().Counters()
		s.Dirty = true
		s.UpdatedAt = now
	}
	return res, nil
}

func (s *Session) apply(op Op) (Result, error) {
	doc := s.Document
	ids := s.Allocator()

	switch op.Op {
	case OpInsertBlock:
		return inserted(doc.InsertBlock(ids).ID), nil
	case OpMoveBlock:
		if err := validDirection(op.Direction); err != nil {
			return Result{}, err
		}
		if doc.Block(op.BlockID) == nil {
			return Result{}, targetErr("block", op.BlockID)
		}
		return changed(doc.MoveBlock(op.BlockID, op.Direction)), nil
	case OpDeleteBlock:
		if !doc.DeleteBlock(op.BlockID) {
			return Result{}, targetErr("block", op.BlockID)
		}
		return changed(true), nil
	case OpSetBlockTitle:
		block := doc.Block(op.BlockID)
		if block == nil {
			return Result{}, targetErr("block", op.BlockID)
		}
		prev := block.Title
		block.Title = op.Value
		return changed(prev != op.Value), nil
	case OpReorderBlocks:
		before := blockOrder(doc)
		doc.ReorderBlocks(op.Order)
		return changed(!slices.Equal(before, blockOrder(doc))), nil

	case OpInsertTask:
		block := doc.Block(op.BlockID)
		if block == nil {
			return Result{}, targetErr("block", op.BlockID)
		}
		return inserted(block.InsertTask(ids, op.After).ID), nil
	case OpMoveTask:
		if err := validDirection(op.Direction); err != nil {
			return Result{}, err
		}
		block, _ := doc.FindTask(op.TaskID)
		if block == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		return changed(block.MoveTask(op.TaskID, op.Direction)), nil
	case OpDeleteTask:
		block, _ := doc.FindTask(op.TaskID)
		if block == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		return changed(block.DeleteTask(op.TaskID)), nil
	case OpSetTaskField:
		_, task := doc.FindTask(op.TaskID)
		if task == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		prev, ok := task.Field(op.Field)
		if !ok {
			return Result{}, fmt.Errorf("%w: unknown task field %q", ErrInvalidOp, op.Field)
		}
		task.SetField(op.Field, op.Value)
		return changed(prev != op.Value), nil
	case OpReorderTasks:
		block := doc.Block(op.BlockID)
		if block == nil {
			return Result{}, targetErr("block", op.BlockID)
		}
		before := taskOrder(block)
		block.ReorderTasks(op.Order)
		return changed(!slices.Equal(before, taskOrder(block))), nil

	case OpInsertItem:
		_, task := doc.FindTask(op.TaskID)
		if task == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		return inserted(task.InsertItem(ids, op.Level).ID), nil
	case OpInsertChildItem:
		item, err := findItem(doc, op.TaskID, op.ItemID)
		if err != nil {
			return Result{}, err
		}
		return inserted(item.InsertChild(ids).ID), nil
	case OpSetIndent:
		if op.Delta != 1 && op.Delta != -1 {
			return Result{}, fmt.Errorf("%w: indent delta must be 1 or -1, got %d", ErrInvalidOp, op.Delta)
		}
		item, err := findItem(doc, op.TaskID, op.ItemID)
		if err != nil {
			return Result{}, err
		}
		return changed(item.SetIndent(op.Delta)), nil
	case OpSetItemText:
		item, err := findItem(doc, op.TaskID, op.ItemID)
		if err != nil {
			return Result{}, err
		}
		prev := item.Text
		item.Text = op.Value
		return changed(prev != op.Value), nil
	case OpDeleteItem:
		_, task := doc.FindTask(op.TaskID)
		if task == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		if !task.DeleteItem(op.ItemID) {
			return Result{}, targetErr("item", op.ItemID)
		}
		return changed(true), nil

	case OpInsertTable:
		_, task := doc.FindTask(op.TaskID)
		if task == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		return inserted(task.InsertTable(ids).ID), nil
	case OpAddTableRow:
		table, err := findTable(doc, op.TaskID, op.TableID)
		if err != nil {
			return Result{}, err
		}
		table.AddRow()
		return changed(true), nil
	case OpAddTableColumn:
		table, err := findTable(doc, op.TaskID, op.TableID)
		if err != nil {
			return Result{}, err
		}
		table.AddColumn()
		return changed(len(table.Rows) > 0), nil
	case OpSetCell:
		table, err := findTable(doc, op.TaskID, op.TableID)
		if err != nil {
			return Result{}, err
		}
		if !table.SetCell(op.Row, op.Col, op.Value) {
			return Result{}, fmt.Errorf("%w: cell (%d,%d)", ErrTargetNotFound, op.Row, op.Col)
		}
		return changed(true), nil
	case OpDeleteTable:
		_, task := doc.FindTask(op.TaskID)
		if task == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		if !task.DeleteTable(op.TableID) {
			return Result{}, targetErr("table", op.TableID)
		}
		return changed(true), nil

	case OpInsertImage:
		_, task := doc.FindTask(op.TaskID)
		if task == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		if op.Src == "" {
			return Result{}, fmt.Errorf("%w: image src is required", ErrInvalidOp)
		}
		return inserted(task.InsertImage(ids, op.Src).ID), nil
	case OpSetImageWidth:
		_, task := doc.FindTask(op.TaskID)
		if task == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		image := task.Image(op.ImageID)
		if image == nil {
			return Result{}, targetErr("image", op.ImageID)
		}
		return changed(image.SetWidth(op.Width)), nil
	case OpDeleteImage:
		_, task := doc.FindTask(op.TaskID)
		if task == nil {
			return Result{}, targetErr("task", op.TaskID)
		}
		if !task.DeleteImage(op.ImageID) {
			return Result{}, targetErr("image", op.ImageID)
		}
		return changed(true), nil

	case OpRemoveAttachment:
		if !doc.RemoveAttachment(op.AttachmentID) {
			return Result{}, targetErr("attachment", op.AttachmentID)
		}
		return changed(true), nil
	}
	return Result{}, fmt.Errorf("%w %q", ErrUnknownOp, op.Op)
}

func inserted(id string) Result {
	return Result{ID: id, Changed: true}
}

func changed(ok bool) Result {
	return Result{Changed: ok}
}

func targetErr(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrTargetNotFound, kind, id)
}

func validDirection(dir document.Direction) error {
	if dir != document.Up && dir != document.Down {
		return fmt.Errorf("%w: direction must be %q or %q", ErrInvalidOp, document.Up, document.Down)
	}
	return nil
}

func findItem(doc *document.Document, taskID, itemID string) (*document.NestedItem, error) {
	_, task := doc.FindTask(taskID)
	if task == nil {
		return nil, targetErr("task", taskID)
	}
	item := task.FindItem(itemID)
	if item == nil {
		return nil, targetErr("item", itemID)
	}
	return item, nil
}

func findTable(doc *document.Document, taskID, tableID string) (*document.Table, error) {
	_, task := doc.FindTask(taskID)
	if task == nil {
		return nil, targetErr("task", taskID)
	}
	table := task.Table(tableID)
	if table == nil {
		return nil, targetErr("table", tableID)
	}
	return table, nil
}

func blockOrder(doc *document.Document) []string {
	out := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		out = append(out, b.ID)
	}
	return out
}

func taskOrder(b *document.Block) []string {
	out := make([]string, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		out = append(out, t.ID)
	}
	return out
}
