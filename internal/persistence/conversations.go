package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bull/docchat/internal/model"
)

// CreateConversation starts a conversation for an owner.
func (s *Store) CreateConversation(ctx context.Context, ownerID, title string) (*model.Conversation, error) {
	now := s.now()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, owner_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.OwnerID, conv.Title, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns the conversation with the given id or ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var (
		conv                 model.Conversation
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.OwnerID, &conv.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)
	return &conv, nil
}

// ListConversations returns an owner's conversations, most recently active first.
func (s *Store) ListConversations(ctx context.Context, ownerID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, created_at, updated_at FROM conversations
		WHERE owner_id = ?
		ORDER BY updated_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var (
			conv                 model.Conversation
			createdAt, updatedAt string
		)
		if err := rows.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conv.CreatedAt = parseTime(createdAt)
		conv.UpdatedAt = parseTime(updatedAt)
		out = append(out, conv)
	}
	return out, rows.Err()
}

// TouchConversation bumps a conversation's updated_at.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	return expectRow(res, "conversation", id)
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return expectRow(res, "conversation", id)
}

// AppendMessage stores a message. Missing ID and CreatedAt are filled in.
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	sources := msg.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(sourcesJSON), formatTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListMessages returns every message of a conversation in chronological order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	return s.queryMessages(ctx, `
		SELECT id, conversation_id, role, content, sources, created_at FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, rowid`, conversationID)
}

// RecentMessages returns the last n messages of a conversation in
// chronological order.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, n int) ([]model.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.queryMessages(ctx, `
		SELECT id, conversation_id, role, content, sources, created_at FROM (
			SELECT id, conversation_id, role, content, sources, created_at, rowid AS seq FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		) ORDER BY created_at, seq`, conversationID, n)
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			msg         model.Message
			role        string
			sourcesJSON string
			createdAt   string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &sourcesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = model.Role(role)
		msg.CreatedAt = parseTime(createdAt)
		if sourcesJSON != "" && sourcesJSON != "null" {
			if err := json.Unmarshal([]byte(sourcesJSON), &msg.Sources); err != nil {
				return nil, fmt.Errorf("unmarshalling sources: %w", err)
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
