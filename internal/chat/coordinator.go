// Package chat answers questions against an owner's documents, streaming the
// answer while it is generated and persisting the finished exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/metrics"
	"github.com/bull/docchat/internal/model"
	"github.com/bull/docchat/internal/persistence"
	"github.com/bull/docchat/internal/rag"
)

var (
	// ErrInvalidRequest is returned for a request missing its owner or message.
	ErrInvalidRequest = errors.New("invalid chat request")

	// ErrConversationNotFound is returned when the requested conversation does
	// not exist or belongs to another owner.
	ErrConversationNotFound = errors.New("conversation not found")
)

// titleLength bounds the title derived from a conversation's first message.
const titleLength = 60

// State is the phase of one streamed answer.
type State string

const (
	StateCreated               State = "created"
	StateAwaitingMetadataFlush State = "awaiting_metadata_flush"
	StateStreamingTokens       State = "streaming_tokens"
	StateCompleted             State = "completed"
	StateFailed                State = "failed"
)

// Conversations is the conversation persistence the coordinator needs.
type Conversations interface {
	CreateConversation(ctx context.Context, ownerID, title string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	RecentMessages(ctx context.Context, conversationID string, n int) ([]model.Message, error)
	AppendMessage(ctx context.Context, msg *model.Message) error
	TouchConversation(ctx context.Context, id string) error
}

// Retriever gathers the context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, ownerID, query string) (*rag.Retrieval, error)
}

// Generator produces answers.
type Generator interface {
	Generate(ctx context.Context, p generation.Prompt) (string, error)
	GenerateStream(ctx context.Context, p generation.Prompt, onFragment func(string) error) error
}

// Request is one question. An empty ConversationID starts a new conversation.
type Request struct {
	OwnerID        string
	ConversationID string
	Message        string
}

// Answer is the result of the non-streaming variant.
type Answer struct {
	ChatID       string         `json:"chatId"`
	Response     string         `json:"response"`
	Sources      []model.Source `json:"sources"`
	HasDocuments bool           `json:"hasDocuments"`
}

// Coordinator runs the retrieve, generate and persist cycle of a chat turn.
type Coordinator struct {
	conversations Conversations
	retriever     Retriever
	generator     Generator
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewCoordinator creates a coordinator. Metrics and logger may be nil.
func NewCoordinator(conversations Conversations, retriever Retriever, generator Generator, m *metrics.Metrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		conversations: conversations,
		retriever:     retriever,
		generator:     generator,
		metrics:       m,
		logger:        logger,
	}
}

// turn is the state shared by both variants once the user message is stored.
type turn struct {
	conversation *model.Conversation
	retrieval    *rag.Retrieval
	prompt       generation.Prompt
}

// Stream answers req, sending events to sink in this order: one metadata
// event, zero or more chunk events, then exactly one done or error event.
//
// Request errors (ErrInvalidRequest, ErrConversationNotFound) are returned
// before anything is written or sent. Every later failure is reported as an
// error event, returned, and leaves no assistant message behind.
func (c *Coordinator) Stream(ctx context.Context, req Request, sink Sink) error {
	conv, err := c.validate(ctx, req)
	if err != nil {
		return err
	}

	s := &stream{coordinator: c, sink: sink, state: StateCreated}
	if err := s.run(ctx, req, conv); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// Answer is the non-streaming variant of Stream.
func (c *Coordinator) Answer(ctx context.Context, req Request) (*Answer, error) {
	conv, err := c.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	t, err := c.begin(ctx, req, conv)
	if err != nil {
		c.metrics.StreamFinished(string(StateFailed))
		return nil, err
	}

	start := time.Now()
	text, err := c.generator.Generate(ctx, t.prompt)
	c.metrics.ObserveGeneration(time.Since(start))
	if err != nil {
		c.metrics.StreamFinished(string(StateFailed))
		return nil, fmt.Errorf("generate: %w", err)
	}

	if err := c.finish(ctx, t, text); err != nil {
		c.metrics.StreamFinished(string(StateFailed))
		return nil, err
	}
	c.metrics.StreamFinished(string(StateCompleted))

	sources := t.retrieval.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	return &Answer{
		ChatID:       t.conversation.ID,
		Response:     text,
		Sources:      sources,
		HasDocuments: t.retrieval.HasDocuments(),
	}, nil
}

// validate rejects malformed requests and returns the existing conversation,
// if one was named.
func (c *Coordinator) validate(ctx context.Context, req Request) (*model.Conversation, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if req.ConversationID == "" {
		return nil, nil
	}

	conv, err := c.conversations.GetConversation(ctx, req.ConversationID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, req.ConversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv.OwnerID != req.OwnerID {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, req.ConversationID)
	}
	return conv, nil
}

// begin creates the conversation if needed, stores the user message and
// gathers the context for the prompt.
func (c *Coordinator) begin(ctx context.Context, req Request, conv *model.Conversation) (*turn, error) {
	var history []model.Message
	if conv == nil {
		created, err := c.conversations.CreateConversation(ctx, req.OwnerID, Title(req.Message))
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		conv = created
	} else {
		recent, err := c.conversations.RecentMessages(ctx, conv.ID, rag.MaxHistoryTurns)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		history = recent
	}

	userMsg := &model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        req.Message,
	}
	if err := c.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	retrieval, err := c.retriever.Retrieve(ctx, req.OwnerID, req.Message)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	return &turn{
		conversation: conv,
		retrieval:    retrieval,
		prompt:       rag.Assemble(retrieval, history, req.Message),
	}, nil
}

// finish stores the assistant message and bumps the conversation's activity.
// A failed activity update is logged, not returned.
func (c *Coordinator) finish(ctx context.Context, t *turn, text string) error {
	msg := &model.Message{
		ConversationID: t.conversation.ID,
		Role:           model.RoleAssistant,
		Content:        text,
		Sources:        t.retrieval.Sources,
	}
	if err := c.conversations.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("store assistant message: %w", err)
	}
	if err := c.conversations.TouchConversation(ctx, t.conversation.ID); err != nil {
		c.logger.Warn("Failed to update conversation activity", "conversation", t.conversation.ID, "error", err)
	}
	return nil
}

// stream drives one streamed answer through its states.
type stream struct {
	coordinator *Coordinator
	sink        Sink
	state       State
	answer      strings.Builder
}

func (s *stream) to(next State) {
	s.coordinator.logger.Debug("Chat stream transition", "from", s.state, "to", next)
	s.state = next
}

func (s *stream) run(ctx context.Context, req Request, conv *model.Conversation) error {
	c := s.coordinator

	t, err := c.begin(ctx, req, conv)
	if err != nil {
		return err
	}

	s.to(StateAwaitingMetadataFlush)
	if err := s.sink.Send(newMetadata(t.conversation.ID, t.retrieval.Sources, t.retrieval.HasDocuments())); err != nil {
		return fmt.Errorf("send metadata: %w", err)
	}

	s.to(StateStreamingTokens)
	start := time.Now()
	err = c.generator.GenerateStream(ctx, t.prompt, s.forward)
	c.metrics.ObserveGeneration(time.Since(start))
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.finish(ctx, t, s.answer.String()); err != nil {
		return err
	}

	s.to(StateCompleted)
	c.metrics.StreamFinished(string(StateCompleted))
	if err := s.sink.Send(DoneEvent{Type: TypeDone}); err != nil {
		c.logger.Warn("Failed to send done event", "conversation", t.conversation.ID, "error", err)
	}
	return nil
}

// forward sends a fragment to the client and appends it to the answer.
func (s *stream) forward(fragment string) error {
	if err := s.sink.Send(ChunkEvent{Type: TypeChunk, Text: fragment}); err != nil {
		return fmt.Errorf("send chunk: %w", err)
	}
	s.answer.WriteString(fragment)
	return nil
}

func (s *stream) fail(cause error) {
	c := s.coordinator
	s.to(StateFailed)
	s.answer.Reset()
	c.metrics.StreamFinished(string(StateFailed))
	c.logger.Warn("Chat stream failed", "error", cause)

	if err := s.sink.Send(ErrorEvent{Type: TypeError, Message: errorMessage(cause)}); err != nil {
		c.logger.Debug("Failed to send error event", "error", err)
	}
}

// errorMessage is the client-facing text for a failure.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled."
	case errors.Is(err, generation.ErrGenerationService):
		return "The answer could not be generated. Please try again."
	default:
		return "Something went wrong while answering. Please try again."
	}
}

// Title derives a conversation title from its first message.
func Title(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) <= titleLength {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:titleLength])) + "..."
}
