package github

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/bull/docchat/internal/model"
)

// Registrar stores newly discovered documents.
type Registrar interface {
	Register(ctx context.Context, doc *model.Document) error
}

// ImportResult summarises one import run.
type ImportResult struct {
	CommitSHA string
	Documents []model.Document
	Duration  time.Duration
}

// Importer registers every markdown file below a repository path as a pending
// document for an owner.
type Importer struct {
	fetcher   *Fetcher
	registrar Registrar
	logger    *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(fetcher *Fetcher, registrar Registrar, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{fetcher: fetcher, registrar: registrar, logger: logger}
}

// Import lists markdown files below dir and registers each one. Registered
// documents are returned in listing order; content is fetched later, when the
// documents are processed.
func (i *Importer) Import(ctx context.Context, ownerID string, dir Ref) (*ImportResult, error) {
	start := time.Now()
	result := &ImportResult{}

	sha, err := i.fetcher.GetLatestCommitSHA(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("get commit SHA: %w", err)
	}
	result.CommitSHA = sha
	i.logger.Info("Starting import", "source", dir.String(), "commit", sha)

	refs, err := i.fetcher.ListDocs(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	i.logger.Info("Found documents", "count", len(refs))

	for _, ref := range refs {
		doc := &model.Document{
			OwnerID:    ownerID,
			Filename:   path.Base(ref.Path),
			MimeType:   "text/markdown",
			StorageRef: ref.String(),
		}
		if err := i.registrar.Register(ctx, doc); err != nil {
			return result, fmt.Errorf("register %s: %w", ref, err)
		}
		result.Documents = append(result.Documents, *doc)
	}

	result.Duration = time.Since(start)
	i.logger.Info("Import complete", "documents", len(result.Documents), "duration", result.Duration)
	return result, nil
}
