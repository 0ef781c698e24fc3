package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bull/docchat/internal/model"
)

const documentColumns = `id, owner_id, filename, mime_type, size, status, storage_ref, title, chunk_count, error, created_at, updated_at`

// CreateDocument inserts a document. Missing ID, status and timestamps are filled in.
func (s *Store) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = model.StatusPending
	}
	now := s.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.OwnerID, doc.Filename, doc.MimeType, doc.Size, string(doc.Status),
		doc.StorageRef, doc.Title, doc.ChunkCount, doc.Error,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetDocument returns the document with the given id or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns an owner's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE owner_id = ?
		ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// SetDocumentStatus moves a document to status. errMsg is stored for the
// error status and cleared otherwise.
func (s *Store) SetDocumentStatus(ctx context.Context, id string, status model.DocumentStatus, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid document status %q", status)
	}
	if status != model.StatusError {
		errMsg = ""
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return expectRow(res, "document", id)
}

// CompleteDocument marks a document ready with its chunk count and title.
func (s *Store) CompleteDocument(ctx context.Context, id string, chunkCount int, title string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, chunk_count = ?, title = CASE WHEN ? = '' THEN title ELSE ? END, error = '', updated_at = ?
		WHERE id = ?`,
		string(model.StatusReady), chunkCount, title, title, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("completing document: %w", err)
	}
	return expectRow(res, "document", id)
}

// DeleteDocument removes a document's metadata.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return expectRow(res, "document", id)
}

// ReadyDocumentCount returns how many of an owner's documents are ready.
func (s *Store) ReadyDocumentCount(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE owner_id = ? AND status = ?`,
		ownerID, string(model.StatusReady)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting ready documents: %w", err)
	}
	return n, nil
}

// Filenames resolves document ids to filenames in one query. Unknown ids are
// absent from the result.
func (s *Store) Filenames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := s.db.QueryContext(ctx, `SELECT id, filename FROM documents WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("resolving filenames: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning filename: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*model.Document, error) {
	var (
		doc                  model.Document
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &doc.MimeType, &doc.Size, &status,
		&doc.StorageRef, &doc.Title, &doc.ChunkCount, &doc.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = model.DocumentStatus(status)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
