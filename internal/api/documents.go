package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	ghclient "github.com/bull/docchat/internal/github"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/model"
)

// DocumentResponse is the JSON form of a document.
type DocumentResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	Status     string    `json:"status"`
	Title      string    `json:"title,omitempty"`
	ChunkCount int       `json:"chunkCount"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toDocumentResponse(d *model.Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID,
		Filename:   d.Filename,
		MimeType:   d.MimeType,
		Size:       d.Size,
		Status:     string(d.Status),
		Title:      d.Title,
		ChunkCount: d.ChunkCount,
		Error:      d.Error,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// ProcessResult is the outcome of processing one document.
type ProcessResult struct {
	DocumentID string `json:"documentId"`
	Chunks     int    `json:"chunks"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

func toProcessResult(r ingest.Result) ProcessResult {
	out := ProcessResult{DocumentID: r.DocumentID, Chunks: r.Chunks, Status: string(model.StatusReady)}
	if r.Err != nil {
		out.Status = string(model.StatusError)
		out.Error = r.Err.Error()
	}
	return out
}

func (s *Server) listDocuments(c echo.Context) error {
	docs, err := s.cfg.Documents.ListDocuments(c.Request().Context(), owner(c))
	if err != nil {
		return err
	}
	out := make([]DocumentResponse, len(docs))
	for i := range docs {
		out[i] = toDocumentResponse(&docs[i])
	}
	return c.JSON(http.StatusOK, out)
}

type registerRequest struct {
	Filename   string `json:"filename"`
	StorageRef string `json:"storageRef"`
}

// createDocuments registers documents from a multipart upload (field "files")
// or, for a JSON body, from a github://owner/repo/path.md reference. Every file
// is checked before anything is stored, so a rejected request leaves no trace.
// With ?process=true the new documents are processed before the response is
// sent.
func (s *Server) createDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	var docs []*model.Document
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form: "+err.Error())
		}
		files := form.File["files"]
		if len(files) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, `no files in field "files"`)
		}
		for _, fh := range files {
			if err := s.checkUpload(fh); err != nil {
				return err
			}
		}
		for _, fh := range files {
			doc, err := s.upload(fh)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
	} else {
		var req registerRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if _, err := ghclient.ParseRef(req.StorageRef); err != nil {
			return fmt.Errorf("%w: storage reference must be a github:// reference: %w", ingest.ErrInvalidDocument, err)
		}
		docs = append(docs, &model.Document{Filename: req.Filename, StorageRef: req.StorageRef})
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		doc.OwnerID = owner(c)
		if err := s.cfg.Pipeline.Register(ctx, doc); err != nil {
			return err
		}
		ids = append(ids, doc.ID)
	}

	if c.QueryParam("process") == "true" {
		s.cfg.Pipeline.ProcessMany(ctx, ids)
	}

	out := make([]DocumentResponse, 0, len(ids))
	for _, id := range ids {
		doc, err := s.cfg.Documents.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		out = append(out, toDocumentResponse(doc))
	}
	return c.JSON(http.StatusCreated, out)
}

// checkUpload rejects a multipart file by its header alone: no name, too large,
// or a type that cannot be processed.
func (s *Server) checkUpload(fh *multipart.FileHeader) error {
	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		return echo.NewHTTPError(http.StatusBadRequest, "file without a name")
	}
	if s.cfg.MaxUploadBytes > 0 && fh.Size > s.cfg.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s exceeds %d bytes", name, s.cfg.MaxUploadBytes))
	}
	if _, err := ingest.CheckType(name, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// upload stores one checked multipart file under a unique name.
func (s *Server) upload(fh *multipart.FileHeader) (*model.Document, error) {
	name := filepath.Base(fh.Filename)

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", name, err)
	}

	ref, err := s.cfg.Uploads.Put(uuid.NewString()+"-"+name, data)
	if err != nil {
		return nil, fmt.Errorf("store upload %s: %w", name, err)
	}
	return &model.Document{
		Filename:   name,
		Size:       int64(len(data)),
		StorageRef: ref,
	}, nil
}

// ownedDocument loads a document and hides documents of other owners.
func (s *Server) ownedDocument(c echo.Context) (*model.Document, error) {
	doc, err := s.cfg.Documents.GetDocument(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != owner(c) {
		return nil, fmt.Errorf("%w: %s", ingest.ErrDocumentNotFound, doc.ID)
	}
	return doc, nil
}

func (s *Server) processDocument(c echo.Context) error {
	doc, err := s.ownedDocument(c)
	if err != nil {
		return err
	}
	n, err := s.cfg.Pipeline.Process(c.Request().Context(), doc.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProcessResult{DocumentID: doc.ID, Chunks: n, Status: string(model.StatusReady)})
}

type processRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) processDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	var req processRequest
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids are required")
	}
	for _, id := range req.IDs {
		doc, err := s.cfg.Documents.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		if doc.OwnerID != owner(c) {
			return fmt.Errorf("%w: %s", ingest.ErrDocumentNotFound, id)
		}
	}

	results := s.cfg.Pipeline.ProcessMany(ctx, req.IDs)
	out := make([]ProcessResult, len(results))
	for i, r := range results {
		out[i] = toProcessResult(r)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteDocument(c echo.Context) error {
	doc, err := s.ownedDocument(c)
	if err != nil {
		return err
	}
	if err := s.cfg.Pipeline.Delete(c.Request().Context(), doc.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
