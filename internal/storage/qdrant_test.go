//go:build integration
// +build integration

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/model"
)

// setupTestStore creates a store on a throwaway collection.
// Skips test if Qdrant is not running.
func setupTestStore(t *testing.T) *QdrantStore {
	store, err := NewQdrantStore(context.Background(), QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "test_" + uuid.NewString(),
		Dimension:  4,
	})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	require.NoError(t, store.EnsureCollection(context.Background()), "Failed to ensure collection")
	t.Cleanup(func() {
		_ = store.client.DeleteCollection(context.Background(), store.collection)
		store.Close()
	})
	return store
}

func TestQdrant_InsertSearchDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	docID := uuid.NewString()
	chunks := []model.Chunk{
		{DocumentID: docID, OwnerID: "alice", Ordinal: 0, Content: "leave policy", Vector: []float32{1, 0, 0, 0}},
		{DocumentID: docID, OwnerID: "alice", Ordinal: 1, Content: "travel policy", Vector: []float32{0.8, 0.6, 0, 0}},
		{DocumentID: docID, OwnerID: "bob", Ordinal: 2, Content: "bob only", Vector: []float32{1, 0, 0, 0}},
	}
	require.NoError(t, store.Insert(ctx, chunks...))
	require.NoError(t, store.Insert(ctx, chunks...), "re-insert must be idempotent")

	n, err := store.CountByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := store.Search(ctx, []float32{1, 0, 0, 0}, "alice", 0.5, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "leave policy", hits[0].Chunk.Content)
	assert.Equal(t, ChunkID(docID, 0), hits[0].Chunk.ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-4)
	assert.InDelta(t, 0.8, hits[1].Similarity, 1e-4)

	require.NoError(t, store.DeleteByDocument(ctx, docID))
	n, err = store.CountByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQdrant_DimensionMismatch(t *testing.T) {
	store := setupTestStore(t)

	err := store.Insert(context.Background(), model.Chunk{DocumentID: "d", OwnerID: "o", Vector: []float32{1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Search(context.Background(), []float32{1}, "o", 0, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
