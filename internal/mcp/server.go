package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docchat/internal/chat"
	"github.com/bull/docchat/internal/model"
	"github.com/bull/docchat/internal/rag"
)

// Documents is the document metadata the tools read.
type Documents interface {
	ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	Filenames(ctx context.Context, ids []string) (map[string]string, error)
}

// Answerer answers a question without streaming.
type Answerer interface {
	Answer(ctx context.Context, req chat.Request) (*chat.Answer, error)
}

// Processor processes a registered document.
type Processor interface {
	Process(ctx context.Context, documentID string) (int, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Documents Documents
	Chunks    rag.Searcher
	Embedder  rag.QueryEmbedder
	Answerer  Answerer
	Processor Processor
	Version   string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "docchat",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over a user's processed documents. Returns matching passages with their filename and similarity score.",
	}, makeSearchHandler(cfg.Documents, cfg.Chunks, cfg.Embedder))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the user's documents. The answer cites numbered sources as [n].",
	}, makeAskHandler(cfg.Answerer))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List a user's documents with their processing status.",
	}, makeListHandler(cfg.Documents))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "process_document",
		Description: "Extract, chunk and embed a registered document so it can be searched.",
	}, makeProcessHandler(cfg.Documents, cfg.Processor))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
