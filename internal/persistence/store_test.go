package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/model"
)

// setupTestStore creates a temporary SQLite store for testing with a clock
// that advances one second per call.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "docchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func newDocument(owner, name string) *model.Document {
	return &model.Document{
		OwnerID:    owner,
		Filename:   name,
		MimeType:   "text/plain",
		Size:       42,
		StorageRef: "file://" + name,
	}
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.db")

	s1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.CreateDocument(context.Background(), newDocument("o", "a.txt")))
	require.NoError(t, s1.Close())

	s2, err := NewStore(path)
	require.NoError(t, err)
	defer s2.Close()

	docs, err := s2.ListDocuments(context.Background(), "o")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, path, s2.Path())
}

func TestDocuments_Lifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := newDocument("alice", "policy.txt")
	require.NoError(t, s.CreateDocument(ctx, doc))
	require.NotEmpty(t, doc.ID)
	assert.Equal(t, model.StatusPending, doc.Status)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "policy.txt", got.Filename)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, doc.CreatedAt, got.CreatedAt)

	require.NoError(t, s.SetDocumentStatus(ctx, doc.ID, model.StatusProcessing, "ignored"))
	got, _ = s.GetDocument(ctx, doc.ID)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Empty(t, got.Error)

	require.NoError(t, s.SetDocumentStatus(ctx, doc.ID, model.StatusError, "embedding failed"))
	got, _ = s.GetDocument(ctx, doc.ID)
	assert.Equal(t, model.StatusError, got.Status)
	assert.Equal(t, "embedding failed", got.Error)

	require.NoError(t, s.CompleteDocument(ctx, doc.ID, 7, "Policy"))
	got, _ = s.GetDocument(ctx, doc.ID)
	assert.Equal(t, model.StatusReady, got.Status)
	assert.Equal(t, 7, got.ChunkCount)
	assert.Equal(t, "Policy", got.Title)
	assert.Empty(t, got.Error)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	require.NoError(t, s.CompleteDocument(ctx, doc.ID, 8, ""))
	got, _ = s.GetDocument(ctx, doc.ID)
	assert.Equal(t, "Policy", got.Title, "empty title keeps the previous one")

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))
	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocuments_NotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetDocumentStatus(ctx, "missing", model.StatusReady, ""), ErrNotFound)
	assert.ErrorIs(t, s.CompleteDocument(ctx, "missing", 1, ""), ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, "missing"), ErrNotFound)
	assert.Error(t, s.SetDocumentStatus(ctx, "missing", "bogus", ""))
}

func TestDocuments_ListAndCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		doc := newDocument("alice", fmt.Sprintf("doc-%d.txt", i))
		require.NoError(t, s.CreateDocument(ctx, doc))
		ids = append(ids, doc.ID)
	}
	require.NoError(t, s.CreateDocument(ctx, newDocument("bob", "bob.txt")))

	docs, err := s.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc-2.txt", docs[0].Filename, "newest first")

	n, err := s.ReadyDocumentCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.CompleteDocument(ctx, ids[0], 3, ""))
	require.NoError(t, s.CompleteDocument(ctx, ids[1], 3, ""))
	n, err = s.ReadyDocumentCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ReadyDocumentCount(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDocuments_Filenames(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	a := newDocument("o", "a.txt")
	b := newDocument("o", "b.txt")
	require.NoError(t, s.CreateDocument(ctx, a))
	require.NoError(t, s.CreateDocument(ctx, b))

	names, err := s.Filenames(ctx, []string{a.ID, b.ID, "gone"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{a.ID: "a.txt", b.ID: "b.txt"}, names)

	names, err = s.Filenames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestConversations_Messages(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "alice", "Leave policy")
	require.NoError(t, err)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, "Leave policy", got.Title)

	for i := 0; i < 12; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msg := &model.Message{ConversationID: conv.ID, Role: role, Content: fmt.Sprintf("turn %d", i)}
		if role == model.RoleAssistant {
			msg.Sources = []model.Source{{Number: 1, DocumentID: "d", Filename: "f.txt", Content: "c", Similarity: 0.8}}
		}
		require.NoError(t, s.AppendMessage(ctx, msg))
	}

	all, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, all, 12)
	assert.Equal(t, "turn 0", all[0].Content)
	assert.Equal(t, "turn 11", all[11].Content)
	assert.Empty(t, all[0].Sources)
	require.Len(t, all[1].Sources, 1)
	assert.Equal(t, "f.txt", all[1].Sources[0].Filename)

	recent, err := s.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, "turn 2", recent[0].Content, "chronological order")
	assert.Equal(t, "turn 11", recent[9].Content)

	before := got.UpdatedAt
	require.NoError(t, s.TouchConversation(ctx, conv.ID))
	got, _ = s.GetConversation(ctx, conv.ID)
	assert.True(t, got.UpdatedAt.After(before))

	list, err := s.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	all, err = s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, all, "messages cascade with their conversation")
}

func TestConversations_NotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.TouchConversation(ctx, "missing"), ErrNotFound)

	err = s.AppendMessage(ctx, &model.Message{ConversationID: "missing", Role: model.RoleUser, Content: "hi"})
	assert.Error(t, err, "foreign key rejects orphan messages")
}
