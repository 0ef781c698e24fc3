package storage

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/bull/docchat/internal/model"
)

// DefaultCollection is the single Qdrant collection holding every owner's chunks.
const DefaultCollection = "chunks"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536

// chunkNamespace seeds the name-based chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c5e0a-3f7e-4d0c-9b8e-1d2a4c6e8f10")

// ScoredChunk is a search hit with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk      model.Chunk
	Similarity float64
}

// ChunkID returns the stable ID of the chunk at ordinal within a document.
// Re-inserting the same (document, ordinal) pair overwrites instead of duplicating.
func ChunkID(documentID string, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", documentID, ordinal))).String()
}

// validateChunks checks that every chunk is addressable, owned and has the
// store's vector dimension.
func validateChunks(chunks []model.Chunk, dimension int) error {
	for i, c := range chunks {
		if c.DocumentID == "" || c.OwnerID == "" {
			return fmt.Errorf("%w: chunk %d has no document or owner", ErrInvalidChunk, i)
		}
		if c.Ordinal < 0 {
			return fmt.Errorf("%w: chunk %d has negative ordinal", ErrInvalidChunk, i)
		}
		if len(c.Vector) != dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(c.Vector), dimension)
		}
	}
	return nil
}

// sortHits orders hits by similarity descending, then by chunk ID.
func sortHits(hits []ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
