package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/chat"
	"github.com/bull/docchat/internal/config"
	"github.com/bull/docchat/internal/embedding"
	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server:    config.ServerConfig{Mode: config.ModeHTTP, UploadDir: filepath.Join(dir, "uploads")},
		Log:       config.LogConfig{Level: "info"},
		Database:  config.DatabaseConfig{Path: filepath.Join(dir, "docchat.db")},
		Storage:   config.StorageConfig{Backend: config.BackendMemory},
		OpenAI:    config.OpenAIConfig{EmbeddingDimension: 32},
		Chunking:  config.ChunkingConfig{Size: 300, Overlap: 50},
		Retrieval: config.RetrievalConfig{Threshold: 0.3, TopK: 5},
	}
}

func TestNew_RequiresOpenAIKey(t *testing.T) {
	_, err := New(context.Background(), testConfig(t), nil)
	assert.ErrorIs(t, err, embedding.ErrMissingAPIKey)
}

func TestApp_EndToEnd(t *testing.T) {
	ctx := context.Background()
	gen := &generation.Fake{Fragments: []string{"Employees accrue ", "two days per month [1]."}}

	a, err := New(ctx, testConfig(t), nil,
		WithEmbedder(embedding.NewFake(32)),
		WithGenerator(gen),
	)
	require.NoError(t, err)
	defer a.Close()

	for name, err := range a.Health(ctx) {
		assert.NoError(t, err, name)
	}

	// Before any document is ready the assistant asks for an upload.
	ans, err := a.Coordinator.Answer(ctx, chat.Request{OwnerID: "alice", Message: "How is leave accrued?"})
	require.NoError(t, err)
	assert.False(t, ans.HasDocuments)

	ref, err := a.Files.Put("handbook.md", []byte("# Leave\n\nEmployees accrue leave monthly. Leave is accrued at two days per month."))
	require.NoError(t, err)
	doc := &model.Document{OwnerID: "alice", Filename: "handbook.md", StorageRef: ref}
	require.NoError(t, a.Pipeline.Register(ctx, doc))

	n, err := a.Pipeline.Process(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var events []chat.Event
	sink := chat.SinkFunc(func(e chat.Event) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, a.Coordinator.Stream(ctx, chat.Request{OwnerID: "alice", Message: "How is leave accrued?"}, sink))

	require.Len(t, events, 4)
	meta, ok := events[0].(chat.MetadataEvent)
	require.True(t, ok)
	assert.True(t, meta.HasDocuments)
	require.NotEmpty(t, meta.Sources)
	assert.Equal(t, 1, meta.Sources[0].Number)
	assert.Equal(t, "handbook.md", meta.Sources[0].Filename)
	assert.Equal(t, chat.TypeDone, events[3].EventType())

	prompts := gen.Prompts()
	assert.Contains(t, prompts[len(prompts)-1].System, "[Source 1] (handbook.md):")

	// Another owner sees nothing of alice's documents.
	ans, err = a.Coordinator.Answer(ctx, chat.Request{OwnerID: "bob", Message: "How is leave accrued?"})
	require.NoError(t, err)
	assert.False(t, ans.HasDocuments)
	assert.Empty(t, ans.Sources)
}
