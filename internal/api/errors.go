package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bull/docchat/internal/chat"
	"github.com/bull/docchat/internal/embedding"
	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/lease"
	"github.com/bull/docchat/internal/persistence"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrInvalidRequest), errors.Is(err, ingest.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrConversationNotFound),
		errors.Is(err, ingest.ErrDocumentNotFound),
		errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lease.ErrHeld):
		return http.StatusConflict
	case errors.Is(err, embedding.ErrEmbeddingService), errors.Is(err, generation.ErrGenerationService):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
		if code == http.StatusInternalServerError {
			msg = http.StatusText(code)
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{Error: msg})
}
