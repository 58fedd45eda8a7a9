package store

import "time"

// TemplateInfo describes a stored template.
type TemplateInfo struct {
	Filename string    `json:"filename"`
	Created  time.Time `json:"created"`
	Size     int64     `json:"size"`
}

// Attachment is the server-side record of an uploaded file. Key locates the
// bytes in the blob store.
type Attachment struct {
	ID           string
	Key          string
	OriginalName string
	ContentType  string
	Size         int64
	Checksum     string
	UploadedAt   time.Time
}

// DocumentInfo describes the saved document without its content.
type DocumentInfo struct {
	Revision  int64
	Checksum  string
	UpdatedAt time.Time
}
