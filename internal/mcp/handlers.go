package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docchat/internal/chat"
	"github.com/bull/docchat/internal/model"
	"github.com/bull/docchat/internal/rag"
)

var errOwnerRequired = errors.New("owner_id is required")

// makeSearchHandler creates the search_documents tool handler.
// Search flow:
// 1. Embed the query
// 2. Search the owner's chunks above the score threshold
// 3. Resolve filenames in one batch
func makeSearchHandler(docs Documents, chunks rag.Searcher, embedder rag.QueryEmbedder) func(
	context.Context, *mcp.CallToolRequest, SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentsInput) (
		*mcp.CallToolResult, SearchDocumentsOutput, error,
	) {
		if input.OwnerID == "" {
			return nil, SearchDocumentsOutput{}, errOwnerRequired
		}
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = rag.DefaultTopK
		}
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = rag.DefaultThreshold
		}

		vector, err := embedder.Embed(ctx, input.Query)
		if err != nil {
			return nil, SearchDocumentsOutput{}, fmt.Errorf("failed to embed query: %w", err)
		}

		hits, err := chunks.Search(ctx, vector, input.OwnerID, minScore, maxResults)
		if err != nil {
			return nil, SearchDocumentsOutput{}, fmt.Errorf("search failed: %w", err)
		}
		if len(hits) == 0 {
			return nil, SearchDocumentsOutput{
				Results: []SearchResult{},
				Message: "No matching passages found. Try broader search terms.",
			}, nil
		}

		ids := make([]string, 0, len(hits))
		for _, h := range hits {
			ids = append(ids, h.Chunk.DocumentID)
		}
		names, err := docs.Filenames(ctx, ids)
		if err != nil {
			return nil, SearchDocumentsOutput{}, fmt.Errorf("failed to resolve filenames: %w", err)
		}

		results := make([]SearchResult, len(hits))
		for i, h := range hits {
			name, ok := names[h.Chunk.DocumentID]
			if !ok {
				name = rag.UnknownDocument
			}
			results[i] = SearchResult{
				DocumentID: h.Chunk.DocumentID,
				Filename:   name,
				Ordinal:    h.Chunk.Ordinal,
				Content:    h.Chunk.Content,
				Score:      h.Similarity,
			}
		}
		return nil, SearchDocumentsOutput{Results: results}, nil
	}
}

// makeAskHandler creates the ask tool handler. The exchange is stored like any
// other chat turn.
func makeAskHandler(answerer Answerer) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		ans, err := answerer.Answer(ctx, chat.Request{
			OwnerID:        input.OwnerID,
			ConversationID: input.ChatID,
			Message:        input.Question,
		})
		if err != nil {
			return nil, AskOutput{}, err
		}

		cited := make(map[int]bool)
		for _, s := range rag.CitedSources(ans.Response, ans.Sources) {
			cited[s.Number] = true
		}
		sources := make([]SourceOutput, len(ans.Sources))
		for i, s := range ans.Sources {
			sources[i] = SourceOutput{
				Number:     s.Number,
				Filename:   s.Filename,
				Content:    s.Content,
				Similarity: s.Similarity,
				Cited:      cited[s.Number],
			}
		}

		return nil, AskOutput{
			ChatID:       ans.ChatID,
			Answer:       ans.Response,
			Sources:      sources,
			HasDocuments: ans.HasDocuments,
		}, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(docs Documents) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		if input.OwnerID == "" {
			return nil, ListDocumentsOutput{}, errOwnerRequired
		}
		list, err := docs.ListDocuments(ctx, input.OwnerID)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		out := make([]DocumentSummary, len(list))
		for i, d := range list {
			out[i] = DocumentSummary{
				ID:         d.ID,
				Filename:   d.Filename,
				Title:      d.Title,
				Status:     string(d.Status),
				ChunkCount: d.ChunkCount,
				Error:      d.Error,
				UpdatedAt:  d.UpdatedAt,
			}
		}
		return nil, ListDocumentsOutput{Documents: out, Count: len(out)}, nil
	}
}

// makeProcessHandler creates the process_document tool handler.
func makeProcessHandler(docs Documents, processor Processor) func(
	context.Context, *mcp.CallToolRequest, ProcessDocumentInput,
) (*mcp.CallToolResult, ProcessDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ProcessDocumentInput) (
		*mcp.CallToolResult, ProcessDocumentOutput, error,
	) {
		if input.OwnerID == "" {
			return nil, ProcessDocumentOutput{}, errOwnerRequired
		}
		doc, err := docs.GetDocument(ctx, input.DocumentID)
		if err != nil {
			return nil, ProcessDocumentOutput{}, fmt.Errorf("failed to get document: %w", err)
		}
		if doc.OwnerID != input.OwnerID {
			return nil, ProcessDocumentOutput{}, fmt.Errorf("document %s not found", input.DocumentID)
		}

		n, err := processor.Process(ctx, doc.ID)
		if err != nil {
			return nil, ProcessDocumentOutput{}, fmt.Errorf("processing failed: %w", err)
		}
		return nil, ProcessDocumentOutput{
			DocumentID: doc.ID,
			Status:     string(model.StatusReady),
			Chunks:     n,
		}, nil
	}
}
