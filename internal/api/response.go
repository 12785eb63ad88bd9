// internal/api/response.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/verseforge/storyboardmv/internal/errors"
)

// APIResponse is the uniform JSON envelope for every endpoint.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func respondAccepted(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusAccepted, APIResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// respondError maps the application error taxonomy onto HTTP status codes.
// Collaborator-side failures surface as 502 so callers can distinguish them
// from engine bugs.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	errType := ""

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		errType = string(appErr.Type)
		switch appErr.Type {
		case apperrors.ErrorTypeValidation:
			status = http.StatusBadRequest
		case apperrors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrorTypeCanceled:
			status = http.StatusConflict
		case apperrors.ErrorTypeTimeout:
			status = http.StatusGatewayTimeout
		case apperrors.ErrorTypeCollaborator,
			apperrors.ErrorTypeEmptyResponse,
			apperrors.ErrorTypeRefusalDetected,
			apperrors.ErrorTypeTruncatedOutput,
			apperrors.ErrorTypeParseFailure,
			apperrors.ErrorTypeStalledProgress:
			status = http.StatusBadGateway
		}
	}

	c.JSON(status, APIResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorType: errType,
		Timestamp: time.Now(),
	})
}
