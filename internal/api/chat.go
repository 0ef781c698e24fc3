package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bull/docchat/internal/chat"
	"github.com/bull/docchat/internal/model"
	"github.com/bull/docchat/internal/rag"
)

type chatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chatId"`
}

func (s *Server) bindChat(c echo.Context) (chat.Request, error) {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return chat.Request{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return chat.Request{OwnerID: owner(c), ConversationID: req.ChatID, Message: req.Message}, nil
}

// chatStream answers with application/x-ndjson events. Request errors are
// plain JSON errors; once the stream has started, failures arrive as a
// terminal error event instead.
func (s *Server) chatStream(c echo.Context) error {
	req, err := s.bindChat(c)
	if err != nil {
		return err
	}

	sink := chat.NewNDJSONSink(c.Response())
	if err := s.cfg.Chat.Stream(c.Request().Context(), req, sink); err != nil && !sink.Started() {
		return err
	}
	return nil
}

func (s *Server) chatAnswer(c echo.Context) error {
	req, err := s.bindChat(c)
	if err != nil {
		return err
	}
	ans, err := s.cfg.Chat.Answer(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

// ConversationResponse is the JSON form of a conversation.
type ConversationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageResponse is a message with its citation markers resolved.
type MessageResponse struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Sources   []model.Source `json:"sources"`
	Segments  []rag.Segment  `json:"segments,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (s *Server) listConversations(c echo.Context) error {
	convs, err := s.cfg.Conversations.ListConversations(c.Request().Context(), owner(c))
	if err != nil {
		return err
	}
	out := make([]ConversationResponse, len(convs))
	for i, conv := range convs {
		out[i] = ConversationResponse{ID: conv.ID, Title: conv.Title, CreatedAt: conv.CreatedAt, UpdatedAt: conv.UpdatedAt}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listMessages(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	conv, err := s.cfg.Conversations.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv.OwnerID != owner(c) {
		return fmt.Errorf("%w: %s", chat.ErrConversationNotFound, id)
	}

	msgs, err := s.cfg.Conversations.ListMessages(ctx, id)
	if err != nil {
		return err
	}
	out := make([]MessageResponse, len(msgs))
	for i, m := range msgs {
		sources := m.Sources
		if sources == nil {
			sources = []model.Source{}
		}
		out[i] = MessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Sources:   sources,
			CreatedAt: m.CreatedAt,
		}
		if m.Role == model.RoleAssistant {
			out[i].Segments = rag.Resolve(m.Content, m.Sources)
		}
	}
	return c.JSON(http.StatusOK, out)
}
