package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/app"
	"github.com/bull/docchat/internal/config"
	"github.com/bull/docchat/internal/embedding"
	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/model"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: config.ModeStdio, UploadDir: filepath.Join(dir, "uploads"), MaxUploadBytes: 1 << 20},
		Log:       config.LogConfig{Level: "info"},
		Database:  config.DatabaseConfig{Path: filepath.Join(dir, "docchat.db")},
		Storage:   config.StorageConfig{Backend: config.BackendMemory},
		OpenAI:    config.OpenAIConfig{EmbeddingDimension: 32},
		Chunking:  config.ChunkingConfig{Size: 400, Overlap: 50},
		Retrieval: config.RetrievalConfig{Threshold: 0.1, TopK: 5},
	}
	a, err := app.New(context.Background(), cfg, nil,
		app.WithEmbedder(embedding.NewFake(32)),
		app.WithGenerator(&generation.Fake{Fragments: []string{"Two days ", "per month [1]."}}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func registerHandbook(t *testing.T, a *app.App, owner string) *model.Document {
	t.Helper()
	ref, err := a.Files.Put("handbook.md", []byte("# Leave\n\nEmployees accrue leave monthly. Leave is accrued at two days per month."))
	require.NoError(t, err)
	doc := &model.Document{OwnerID: owner, Filename: "handbook.md", StorageRef: ref}
	require.NoError(t, a.Pipeline.Register(context.Background(), doc))
	return doc
}

func TestHandlers_ProcessListSearchAsk(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	doc := registerHandbook(t, a, "alice")

	process := makeProcessHandler(a.Store, a.Pipeline)
	_, processed, err := process(ctx, nil, ProcessDocumentInput{OwnerID: "alice", DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, processed.Chunks)
	assert.Equal(t, "ready", processed.Status)

	list := makeListHandler(a.Store)
	_, listed, err := list(ctx, nil, ListDocumentsInput{OwnerID: "alice"})
	require.NoError(t, err)
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, "handbook.md", listed.Documents[0].Filename)
	assert.Equal(t, 1, listed.Documents[0].ChunkCount)

	search := makeSearchHandler(a.Store, a.Chunks, a.Embedder)
	_, found, err := search(ctx, nil, SearchDocumentsInput{OwnerID: "alice", Query: "How is leave accrued?", MinScore: 0.1})
	require.NoError(t, err)
	require.Len(t, found.Results, 1)
	assert.Equal(t, "handbook.md", found.Results[0].Filename)
	assert.Equal(t, doc.ID, found.Results[0].DocumentID)
	assert.Greater(t, found.Results[0].Score, 0.1)

	_, other, err := search(ctx, nil, SearchDocumentsInput{OwnerID: "bob", Query: "How is leave accrued?", MinScore: 0.1})
	require.NoError(t, err)
	assert.Empty(t, other.Results)
	assert.NotEmpty(t, other.Message)

	ask := makeAskHandler(a.Coordinator)
	_, answer, err := ask(ctx, nil, AskInput{OwnerID: "alice", Question: "How is leave accrued?"})
	require.NoError(t, err)
	assert.True(t, answer.HasDocuments)
	assert.Equal(t, "Two days per month [1].", answer.Answer)
	assert.NotEmpty(t, answer.ChatID)
	require.NotEmpty(t, answer.Sources)
	assert.True(t, answer.Sources[0].Cited)
}

func TestHandlers_OwnerChecks(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	doc := registerHandbook(t, a, "alice")

	_, _, err := makeListHandler(a.Store)(ctx, nil, ListDocumentsInput{})
	assert.ErrorIs(t, err, errOwnerRequired)

	_, _, err = makeSearchHandler(a.Store, a.Chunks, a.Embedder)(ctx, nil, SearchDocumentsInput{Query: "leave"})
	assert.ErrorIs(t, err, errOwnerRequired)

	_, _, err = makeProcessHandler(a.Store, a.Pipeline)(ctx, nil, ProcessDocumentInput{OwnerID: "bob", DocumentID: doc.ID})
	assert.Error(t, err)

	_, _, err = makeAskHandler(a.Coordinator)(ctx, nil, AskInput{OwnerID: "alice"})
	assert.Error(t, err)
}

func TestServer_ToolsOverInMemoryTransport(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	registerHandbook(t, a, "alice")

	srv := NewServer(&Config{
		Documents: a.Store,
		Chunks:    a.Chunks,
		Embedder:  a.Embedder,
		Answerer:  a.Coordinator,
		Processor: a.Pipeline,
		Version:   "test",
	})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_documents", "ask", "list_documents", "process_document"}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_documents",
		Arguments: map[string]any{"owner_id": "alice"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_documents",
		Arguments: map[string]any{"owner_id": ""},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
