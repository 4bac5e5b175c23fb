// Package knowledge administers provider-hosted retrieval stores: creating
// vector stores, ingesting files into them, and keeping a local record of
// both in SQLite.
package knowledge

import "time"

// TopicFileUploaded is published on the event bus after every upload attempt.
const TopicFileUploaded = "knowledge.file_uploaded"

// Store is a provider vector store known to this gateway.
//
// DB table: knowledge_store (migration 002)
type Store struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// File is an uploaded file attached to a store.
//
// DB table: knowledge_file (migration 002)
type File struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"storeId"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"sizeBytes"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UploadResult is returned once ingestion has reached a terminal state.
type UploadResult struct {
	FileID    string `json:"fileId"`
	StoreID   string `json:"storeId"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"sizeBytes"`
}

// FileUploadedEvent is the TopicFileUploaded payload. Err is nil on success.
type FileUploadedEvent struct {
	StoreID  string
	FileID   string
	Filename string
	Size     int64
	Duration time.Duration
	Err      error
}
