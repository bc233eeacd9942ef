package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/contact"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/draft"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/editor"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/page"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/upload"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
)

// writeError maps package errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrNotImage),
		errors.Is(err, contact.ErrInvalidMessage),
		errors.Is(err, draft.ErrNotList),
		errors.Is(err, editor.ErrUploadNotSupported):
		status = http.StatusBadRequest
	case errors.Is(err, page.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, page.ErrUnknownSection),
		errors.Is(err, draft.ErrItemNotFound),
		errors.Is(err, editor.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, upload.ErrUploadFailed):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
