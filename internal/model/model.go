// Package model defines the domain types shared across docchat.
package model

import "time"

// DocumentStatus tracks where a document is in the processing pipeline.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusError:
		return true
	}
	return false
}

// Document is an uploaded file owned by a single user.
// Deleting a document deletes its chunks.
type Document struct {
	ID         string
	OwnerID    string
	Filename   string
	MimeType   string
	Size       int64
	Status     DocumentStatus
	StorageRef string // e.g. "file://reports/q3.md" or "github://owner/repo/path.md"
	Title      string // Extracted title, empty until processed
	ChunkCount int
	Error      string // Last processing failure, empty unless Status is error
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Chunk is a bounded span of a document's text together with its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	OwnerID    string
	Content    string
	Vector     []float32
	Ordinal    int // 0..N-1 per document, no gaps
	CreatedAt  time.Time
}

// Conversation groups the messages of one chat.
type Conversation struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Sources        []Source
	CreatedAt      time.Time
}

// Source is a numbered reference to a retrieved chunk, scoped to one answer.
type Source struct {
	Number     int     `json:"number"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}
