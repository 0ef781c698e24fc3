// Package api exposes documents, conversations and chat over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bull/docchat/internal/chat"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/metrics"
	"github.com/bull/docchat/internal/model"
)

// OwnerHeader carries the authenticated user id, set by the auth gateway in
// front of the service.
const OwnerHeader = "X-Owner-ID"

// Documents reads document metadata.
type Documents interface {
	ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
}

// Conversations reads chat history.
type Conversations interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// Pipeline registers and processes documents.
type Pipeline interface {
	Register(ctx context.Context, doc *model.Document) error
	Process(ctx context.Context, documentID string) (int, error)
	ProcessMany(ctx context.Context, ids []string) []ingest.Result
	Delete(ctx context.Context, documentID string) error
}

// Uploads stores uploaded file contents and returns their storage reference.
type Uploads interface {
	Put(name string, data []byte) (string, error)
}

// Chat answers questions.
type Chat interface {
	Stream(ctx context.Context, req chat.Request, sink chat.Sink) error
	Answer(ctx context.Context, req chat.Request) (*chat.Answer, error)
}

// HealthFunc reports the health of every backing service by name.
type HealthFunc func(ctx context.Context) map[string]error

// Config holds the server's dependencies. MCP and Health are optional.
type Config struct {
	Documents      Documents
	Conversations  Conversations
	Pipeline       Pipeline
	Uploads        Uploads
	Chat           Chat
	Health         HealthFunc
	Metrics        *metrics.Metrics
	MCP            http.Handler
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	cfg    Config
	logger *slog.Logger
}

// New builds the echo instance with every route registered.
func New(cfg Config) *echo.Echo {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	e.GET("/", landing)
	e.GET("/health", s.health)
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics.Handler()))
	}
	if cfg.MCP != nil {
		e.Any("/mcp", echo.WrapHandler(cfg.MCP))
	}

	g := e.Group("/api", requireOwner)
	g.GET("/documents", s.listDocuments)
	g.POST("/documents", s.createDocuments)
	g.POST("/documents/process", s.processDocuments)
	g.POST("/documents/:id/process", s.processDocument)
	g.DELETE("/documents/:id", s.deleteDocument)

	g.GET("/conversations", s.listConversations)
	g.GET("/conversations/:id/messages", s.listMessages)

	g.POST("/chat", s.chatStream)
	g.POST("/chat/answer", s.chatAnswer)

	return e
}

// requestLogger logs each request and counts it by route.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		status := c.Response().Status
		s.cfg.Metrics.HTTPRequest(req.Method, c.Path(), status)
		s.logger.Info("HTTP request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"duration", time.Since(start),
		)
		return nil
	}
}

// requireOwner rejects /api requests without an owner.
func requireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(OwnerHeader) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing "+OwnerHeader+" header")
		}
		return next(c)
	}
}

func owner(c echo.Context) string {
	return c.Request().Header.Get(OwnerHeader)
}
