// Package rag retrieves owner-scoped context for a question, assembles the
// generation prompt and resolves citation markers in answers.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/docchat/internal/metrics"
	"github.com/bull/docchat/internal/model"
	"github.com/bull/docchat/internal/storage"
)

// Mode says which kind of context a question was answered with.
type Mode string

const (
	ModeNoDocuments     Mode = "no_documents"
	ModeNoRelevantMatch Mode = "no_relevant_match"
	ModeGrounded        Mode = "grounded"
)

// Defaults for the retriever.
const (
	DefaultThreshold = 0.5
	DefaultTopK      = 5
)

// UnknownDocument is the filename shown for a matched chunk whose document
// could not be resolved.
const UnknownDocument = "Unknown document"

// Documents answers the metadata questions retrieval needs.
type Documents interface {
	ReadyDocumentCount(ctx context.Context, ownerID string) (int, error)
	Filenames(ctx context.Context, ids []string) (map[string]string, error)
}

// Searcher is the similarity search side of the chunk store.
type Searcher interface {
	Search(ctx context.Context, vector []float32, ownerID string, threshold float64, topK int) ([]storage.ScoredChunk, error)
}

// QueryEmbedder embeds a single query.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retrieval is the context gathered for one question.
type Retrieval struct {
	Mode    Mode
	Sources []model.Source // Numbered 1..n, most similar first
}

// HasDocuments reports whether the owner had any ready document.
func (r *Retrieval) HasDocuments() bool {
	return r.Mode != ModeNoDocuments
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithThreshold sets the minimum similarity for a chunk to count as relevant.
func WithThreshold(t float64) RetrieverOption {
	return func(r *Retriever) {
		r.threshold = t
	}
}

// WithTopK sets the maximum number of sources per question.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMetrics records the mode of every retrieval.
func WithMetrics(m *metrics.Metrics) RetrieverOption {
	return func(r *Retriever) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// Retriever finds the chunks relevant to a question among an owner's documents.
type Retriever struct {
	docs      Documents
	chunks    Searcher
	embedder  QueryEmbedder
	threshold float64
	topK      int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRetriever creates a retriever with threshold 0.5 and top-k 5 unless overridden.
func NewRetriever(docs Documents, chunks Searcher, embedder QueryEmbedder, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		docs:      docs,
		chunks:    chunks,
		embedder:  embedder,
		threshold: DefaultThreshold,
		topK:      DefaultTopK,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve gathers numbered sources for query. An owner without ready
// documents gets ModeNoDocuments and nothing is searched.
func (r *Retriever) Retrieve(ctx context.Context, ownerID, query string) (*Retrieval, error) {
	ready, err := r.docs.ReadyDocumentCount(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count ready documents: %w", err)
	}
	if ready == 0 {
		return r.finish(&Retrieval{Mode: ModeNoDocuments}), nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.chunks.Search(ctx, vector, ownerID, r.threshold, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if len(hits) == 0 {
		return r.finish(&Retrieval{Mode: ModeNoRelevantMatch}), nil
	}

	names, err := r.docs.Filenames(ctx, documentIDs(hits))
	if err != nil {
		return nil, fmt.Errorf("resolve filenames: %w", err)
	}

	sources := make([]model.Source, len(hits))
	for i, hit := range hits {
		name, ok := names[hit.Chunk.DocumentID]
		if !ok {
			name = UnknownDocument
		}
		sources[i] = model.Source{
			Number:     i + 1,
			DocumentID: hit.Chunk.DocumentID,
			Filename:   name,
			Content:    hit.Chunk.Content,
			Similarity: hit.Similarity,
		}
	}
	return r.finish(&Retrieval{Mode: ModeGrounded, Sources: sources}), nil
}

func (r *Retriever) finish(res *Retrieval) *Retrieval {
	r.metrics.Retrieval(string(res.Mode))
	r.logger.Debug("Retrieved context", "mode", res.Mode, "sources", len(res.Sources))
	return res
}

// documentIDs returns the distinct document ids of hits in first-seen order.
func documentIDs(hits []storage.ScoredChunk) []string {
	seen := make(map[string]bool, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if !seen[h.Chunk.DocumentID] {
			seen[h.Chunk.DocumentID] = true
			ids = append(ids, h.Chunk.DocumentID)
		}
	}
	return ids
}
