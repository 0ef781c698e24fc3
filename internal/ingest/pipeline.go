// Package ingest runs documents through load, extract, chunk, embed and store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bull/docchat/internal/chunker"
	"github.com/bull/docchat/internal/extract"
	"github.com/bull/docchat/internal/lease"
	"github.com/bull/docchat/internal/metrics"
	"github.com/bull/docchat/internal/model"
	"github.com/bull/docchat/internal/persistence"
)

var (
	// ErrDocumentNotFound is returned for unknown document ids. Nothing is mutated.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidDocument is returned when a document to register lacks a required field.
	ErrInvalidDocument = errors.New("invalid document")
)

// Defaults for Options.
const (
	DefaultBatchSize      = 32
	DefaultConcurrency    = 4
	DefaultDocConcurrency = 4
	DefaultLeaseTTL       = 10 * time.Minute
)

// DocumentStore is the document metadata the pipeline reads and updates.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	SetDocumentStatus(ctx context.Context, id string, status model.DocumentStatus, errMsg string) error
	CompleteDocument(ctx context.Context, id string, chunkCount int, title string) error
	DeleteDocument(ctx context.Context, id string) error
}

// ChunkStore is where embedded chunks are written.
type ChunkStore interface {
	Insert(ctx context.Context, chunks ...model.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tunes the pipeline.
type Options struct {
	BatchSize      int           // Chunks per embedding request
	Concurrency    int           // Embedding requests in flight per document
	DocConcurrency int           // Documents processed at once by ProcessMany
	LeaseTTL       time.Duration // Upper bound on one document's processing time
}

// Result is the outcome of processing one document.
type Result struct {
	DocumentID string
	Chunks     int
	Err        error
}

// Pipeline orchestrates document processing from storage reference to indexed chunks.
type Pipeline struct {
	docs     DocumentStore
	chunks   ChunkStore
	loader   Loader
	chunker  *chunker.Chunker
	embedder Embedder
	locker   lease.Locker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options
}

// NewPipeline creates a new pipeline. A nil locker means a process-local one;
// nil metrics and logger are allowed.
func NewPipeline(
	docs DocumentStore,
	chunks ChunkStore,
	loader Loader,
	chk *chunker.Chunker,
	embedder Embedder,
	locker lease.Locker,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts Options,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = lease.NewMemoryLocker()
	}
	if chk == nil {
		chk = chunker.New()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.DocConcurrency <= 0 {
		opts.DocConcurrency = DefaultDocConcurrency
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	return &Pipeline{
		docs:     docs,
		chunks:   chunks,
		loader:   loader,
		chunker:  chk,
		embedder: embedder,
		locker:   locker,
		metrics:  m,
		logger:   logger,
		opts:     opts,
	}
}

// Register validates and stores a new pending document.
func (p *Pipeline) Register(ctx context.Context, doc *model.Document) error {
	switch {
	case doc.OwnerID == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidDocument)
	case doc.Filename == "":
		return fmt.Errorf("%w: filename is required", ErrInvalidDocument)
	case doc.StorageRef == "":
		return fmt.Errorf("%w: storage reference is required", ErrInvalidDocument)
	}
	mimeType, err := CheckType(doc.Filename, doc.MimeType)
	if err != nil {
		return err
	}
	doc.MimeType = mimeType

	doc.Status = model.StatusPending
	if err := p.docs.CreateDocument(ctx, doc); err != nil {
		return fmt.Errorf("register document: %w", err)
	}
	p.logger.Info("Registered document", "id", doc.ID, "owner", doc.OwnerID, "filename", doc.Filename)
	return nil
}

// CheckType returns mimeType, or the type detected from filename when mimeType
// is empty, and fails with ErrInvalidDocument when it cannot be processed.
func CheckType(filename, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = extract.DetectType(filename)
	}
	if !extract.Supported(mimeType) {
		return "", fmt.Errorf("%w: %w: %s", ErrInvalidDocument, extract.ErrUnsupportedType, mimeType)
	}
	return mimeType, nil
}

// Process runs one document through the pipeline and returns its chunk count.
// The document moves pending → processing → ready, or → error on any failure.
// Chunks already written when a failure happens are left in place.
func (p *Pipeline) Process(ctx context.Context, documentID string) (int, error) {
	doc, err := p.lookup(ctx, documentID)
	if err != nil {
		return 0, err
	}

	l, err := p.locker.Acquire(ctx, leaseKey(documentID), p.opts.LeaseTTL)
	if err != nil {
		return 0, fmt.Errorf("document %s: %w", documentID, err)
	}
	defer p.release(ctx, l, documentID)

	start := time.Now()
	if err := p.docs.SetDocumentStatus(ctx, documentID, model.StatusProcessing, ""); err != nil {
		return 0, fmt.Errorf("mark processing: %w", err)
	}
	p.logger.Info("Processing document", "id", documentID, "filename", doc.Filename)

	count, title, err := p.run(ctx, doc)
	if err != nil {
		p.fail(ctx, doc, err, time.Since(start))
		return 0, err
	}

	if err := p.docs.CompleteDocument(ctx, documentID, count, title); err != nil {
		p.fail(ctx, doc, err, time.Since(start))
		return 0, fmt.Errorf("mark ready: %w", err)
	}

	took := time.Since(start)
	p.metrics.DocumentProcessed(string(model.StatusReady), took)
	p.logger.Info("Indexed document", "id", documentID, "chunks", count, "duration", took)
	return count, nil
}

// ProcessMany processes documents concurrently. Each document has its own
// status lifecycle; one failure does not stop the others.
func (p *Pipeline) ProcessMany(ctx context.Context, ids []string) []Result {
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(p.opts.DocConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			n, err := p.Process(ctx, id)
			results[i] = Result{DocumentID: id, Chunks: n, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.Info("Batch processing complete", "documents", len(ids), "failed", failed)
	return results
}

// Delete removes a document's chunks and metadata.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if _, err := p.lookup(ctx, documentID); err != nil {
		return err
	}

	l, err := p.locker.Acquire(ctx, leaseKey(documentID), p.opts.LeaseTTL)
	if err != nil {
		return fmt.Errorf("document %s: %w", documentID, err)
	}
	defer p.release(ctx, l, documentID)

	if err := p.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := p.docs.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	p.logger.Info("Deleted document", "id", documentID)
	return nil
}

func (p *Pipeline) lookup(ctx context.Context, documentID string) (*model.Document, error) {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// run does the work between the processing and ready transitions.
func (p *Pipeline) run(ctx context.Context, doc *model.Document) (int, string, error) {
	raw, err := p.loader.Load(ctx, doc.StorageRef)
	if err != nil {
		return 0, "", fmt.Errorf("load: %w", err)
	}

	extracted, err := extract.Text(doc.MimeType, raw)
	if err != nil {
		return 0, "", fmt.Errorf("extract: %w", err)
	}

	pieces := p.chunker.Chunk(extracted.Text)
	p.logger.Debug("Chunked document", "id", doc.ID, "chunks", len(pieces))

	// Drop chunks from an earlier run so a shorter re-run leaves no stale ordinals.
	if err := p.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return 0, "", fmt.Errorf("clear chunks: %w", err)
	}
	if len(pieces) == 0 {
		return 0, extracted.Title, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for start := 0; start < len(pieces); start += p.opts.BatchSize {
		batch := pieces[start:min(start+p.opts.BatchSize, len(pieces))]
		g.Go(func() error {
			return p.indexBatch(gctx, doc, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, "", err
	}

	return len(pieces), extracted.Title, nil
}

// indexBatch embeds a run of chunks and writes them keyed by ordinal.
func (p *Pipeline) indexBatch(ctx context.Context, doc *model.Document, batch []chunker.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks %d-%d: %w", batch[0].Index, batch[len(batch)-1].Index, err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed chunks %d-%d: got %d vectors for %d chunks",
			batch[0].Index, batch[len(batch)-1].Index, len(vectors), len(batch))
	}

	now := time.Now().UTC()
	out := make([]model.Chunk, len(batch))
	for i, c := range batch {
		out[i] = model.Chunk{
			DocumentID: doc.ID,
			OwnerID:    doc.OwnerID,
			Content:    c.Content,
			Vector:     vectors[i],
			Ordinal:    c.Index,
			CreatedAt:  now,
		}
	}
	if err := p.chunks.Insert(ctx, out...); err != nil {
		return fmt.Errorf("store chunks %d-%d: %w", batch[0].Index, batch[len(batch)-1].Index, err)
	}
	p.metrics.ChunksIndexed(len(out))
	return nil
}

func (p *Pipeline) fail(ctx context.Context, doc *model.Document, cause error, took time.Duration) {
	p.logger.Warn("Failed to process document", "id", doc.ID, "filename", doc.Filename, "error", cause)
	p.metrics.DocumentProcessed(string(model.StatusError), took)

	if err := p.docs.SetDocumentStatus(context.WithoutCancel(ctx), doc.ID, model.StatusError, cause.Error()); err != nil {
		p.logger.Error("Failed to record document error", "id", doc.ID, "error", err)
	}
}

func (p *Pipeline) release(ctx context.Context, l lease.Lease, documentID string) {
	if err := l.Release(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn("Failed to release document lease", "id", documentID, "error", err)
	}
}

func leaseKey(documentID string) string {
	return "document:" + documentID
}
