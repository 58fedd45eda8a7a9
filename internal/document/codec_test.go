package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFillsMissingFields(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"blocks":[{"id":"block_1","tasks":[{"id":"task_1"}]}]}`))
	require.NoError(t, err)

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "", doc.Blocks[0].Title)
	task := doc.Blocks[0].Tasks[0]
	assert.NotNil(t, task.Items)
	assert.NotNil(t, task.Tables)
	assert.NotNil(t, task.Images)
	assert.NotNil(t, doc.Attachments)

	data, err := Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items": []`)
	assert.Contains(t, string(data), `"attachments": []`)
}

func TestDecodeEmptyObject(t *testing.T) {
	doc, err := Unmarshal([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Blocks)
	assert.NotNil(t, doc.Blocks)
}

func TestDecodeLenientNumbers(t *testing.T) {
	doc, err := Unmarshal([]byte(`{"blocks":[{"id":"block_1","tasks":[{
		"id":"task_1",
		"items":[{"id":"item_1","level":"2"},{"id":"item_2","level":9},{"id":"item_3","level":null}],
		"images":[{"id":"image_1","width":"450px"},{"id":"image_2","width":"wide"},{"id":"image_3"},{"id":"image_4","width":212.7}]
	}]}],
	"attachments":[{"id":"attachment_1","size":"2048"}]}`))
	require.NoError(t, err)

	task := doc.Blocks[0].Tasks[0]
	assert.Equal(t, Level(2), task.Items[0].Level)
	assert.Equal(t, Level(MaxLevel), task.Items[1].Level, "levels are clamped on load")
	assert.Equal(t, Level(0), task.Items[2].Level)

	assert.Equal(t, Pixels(450), task.Images[0].Width)
	assert.Equal(t, Pixels(DefaultImageWidth), task.Images[1].Width)
	assert.Equal(t, Pixels(DefaultImageWidth), task.Images[2].Width)
	assert.Equal(t, Pixels(212), task.Images[3].Width)

	assert.Equal(t, Bytes(2048), doc.Attachments[0].Size)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`{"blocks": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode document")
}

func TestNormalizeDropsNilEntries(t *testing.T) {
	doc := &Document{Blocks: []*Block{nil, {ID: "block_1", Tasks: []*Task{nil, {ID: "task_1", Tables: []*Table{{ID: "table_1"}}}}}}}
	doc.Normalize()
	require.Len(t, doc.Blocks, 1)
	require.Len(t, doc.Blocks[0].Tasks, 1)
	assert.Equal(t, [][]string{}, doc.Blocks[0].Tasks[0].Tables[0].Rows)
}

func TestCloneIsDeep(t *testing.T) {
	ids := NewAllocator()
	doc := NewWithBlock(ids)
	task := doc.Blocks[0].InsertTask(ids, "")
	task.Title = "original"
	task.InsertItem(ids, 0).Text = "line"

	clone := doc.Clone()
	clone.Blocks[0].Tasks[0].Title = "changed"
	clone.Blocks[0].Tasks[0].Items[0].Text = "changed"

	assert.Equal(t, "original", task.Title)
	assert.Equal(t, "line", task.Items[0].Text)
}

func TestValidate(t *testing.T) {
	ids := NewAllocator()
	doc := NewWithBlock(ids)
	task := doc.Blocks[0].InsertTask(ids, "")
	task.InsertTable(ids)
	require.NoError(t, doc.Validate())

	task.Tables[0].Rows = append(task.Tables[0].Rows, []string{"only one"})
	task.Items = append(task.Items, &NestedItem{ID: task.ID, Level: 8})
	err := doc.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `duplicate id "task_1"`)
	assert.Contains(t, msg, "level 8 out of range")
	assert.Contains(t, msg, "row 1 has 1 cells, want 2")
}

func TestStats(t *testing.T) {
	ids := NewAllocator()
	doc := NewWithBlock(ids)
	task := doc.Blocks[0].InsertTask(ids, "")
	task.InsertItem(ids, 0).InsertChild(ids)
	task.InsertTable(ids)
	task.InsertImage(ids, "/a.png")
	doc.AddAttachment(Attachment{ID: "attachment_1"})
	assert.Equal(t, Stats{Blocks: 1, Tasks: 1, Items: 2, Tables: 1, Images: 1, Attachments: 1}, doc.Stats())
}
