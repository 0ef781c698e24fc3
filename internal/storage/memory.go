package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bull/docchat/internal/model"
)

// MemoryStore is an in-process chunk store doing brute-force cosine search.
// It backs tests and the offline CLI.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    map[string]model.Chunk
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimension int) *MemoryStore {
	if dimension <= 0 {
		dimension = VectorDimension
	}
	return &MemoryStore{
		dimension: dimension,
		chunks:    make(map[string]model.Chunk),
	}
}

// Insert stores chunks keyed by (document, ordinal).
func (m *MemoryStore) Insert(ctx context.Context, chunks ...model.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateChunks(chunks, m.dimension); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		c.ID = ChunkID(c.DocumentID, c.Ordinal)
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		c.Vector = append([]float32(nil), c.Vector...)
		m.chunks[c.ID] = c
	}
	return nil
}

// Search returns at most topK of the owner's chunks with similarity at least
// threshold, most similar first.
func (m *MemoryStore) Search(ctx context.Context, vector []float32, ownerID string, threshold float64, topK int) ([]ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), m.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	var hits []ScoredChunk
	for _, c := range m.chunks {
		if c.OwnerID != ownerID {
			continue
		}
		sim := cosine(vector, c.Vector)
		if sim < threshold {
			continue
		}
		hit := c
		hit.Vector = nil
		hits = append(hits, ScoredChunk{Chunk: hit, Similarity: sim})
	}
	m.mu.RUnlock()

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByDocument removes every chunk of a document.
func (m *MemoryStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocumentID == documentID {
			delete(m.chunks, id)
		}
	}
	return nil
}

// CountByDocument returns how many chunks a document has in the store.
func (m *MemoryStore) CountByDocument(_ context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

// Health always succeeds.
func (m *MemoryStore) Health(context.Context) error { return nil }
