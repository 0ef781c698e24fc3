// Package mcp exposes document search and question answering as MCP tools.
package mcp

import "time"

// SearchDocumentsInput defines the input parameters for the search_documents tool.
type SearchDocumentsInput struct {
	// OwnerID selects whose documents are searched.
	OwnerID string `json:"owner_id" jsonschema:"the user whose documents are searched"`
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"the semantic search query"`
	// MaxResults is the maximum number of passages to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"maximum number of passages to return, default 5"`
	// MinScore is the minimum relevance threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum similarity between 0 and 1, default 0.5"`
}

// SearchDocumentsOutput contains the matching passages.
type SearchDocumentsOutput struct {
	Results []SearchResult `json:"results"`
	// Message explains an empty result.
	Message string `json:"message,omitempty"`
}

// SearchResult is one matching passage.
type SearchResult struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Ordinal    int     `json:"ordinal"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	OwnerID string `json:"owner_id" jsonschema:"the user whose documents answer the question"`
	// Question is asked in a new conversation unless ChatID is set.
	Question string `json:"question" jsonschema:"the question to answer"`
	ChatID   string `json:"chat_id,omitempty" jsonschema:"an existing conversation to continue"`
}

// AskOutput is a grounded answer with its numbered sources.
type AskOutput struct {
	ChatID       string         `json:"chat_id"`
	Answer       string         `json:"answer"`
	Sources      []SourceOutput `json:"sources"`
	HasDocuments bool           `json:"has_documents"`
}

// SourceOutput is a numbered source an answer may cite as [n].
type SourceOutput struct {
	Number     int     `json:"number"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Cited      bool    `json:"cited"`
}

// ListDocumentsInput defines the input parameters for the list_documents tool.
type ListDocumentsInput struct {
	OwnerID string `json:"owner_id" jsonschema:"the user whose documents are listed"`
}

// ListDocumentsOutput contains the owner's documents.
type ListDocumentsOutput struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

// DocumentSummary describes one document and its processing status.
type DocumentSummary struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProcessDocumentInput defines the input parameters for the process_document tool.
type ProcessDocumentInput struct {
	OwnerID    string `json:"owner_id" jsonschema:"the user who owns the document"`
	DocumentID string `json:"document_id" jsonschema:"the document to (re)process"`
}

// ProcessDocumentOutput reports the processing result.
type ProcessDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks"`
}
