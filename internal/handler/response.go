package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "categorization model is not loaded"
	case errors.Is(err, domain.ErrInvalidCategory):
		return http.StatusUnprocessableEntity, "INVALID_CATEGORY", err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error()
	case errors.Is(err, domain.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE", err.Error()
	case errors.Is(err, domain.ErrEmptyImage):
		return http.StatusBadRequest, "EMPTY_IMAGE", "image payload is empty"
	case errors.Is(err, domain.ErrUnsupportedImageFormat):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE_FORMAT", "unsupported image format; allowed: jpeg, png, webp, heic, heif"
	case errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "image exceeds maximum allowed size"
	case errors.Is(err, domain.ErrExtractionTimeout):
		return http.StatusGatewayTimeout, "EXTRACTION_TIMEOUT", "receipt extraction timed out"
	case errors.Is(err, domain.ErrExtractionService):
		return http.StatusBadGateway, "EXTRACTION_SERVICE_ERROR", "receipt extraction service failed"
	case errors.Is(err, domain.ErrNoContentExtracted):
		return http.StatusUnprocessableEntity, "NO_CONTENT_EXTRACTED", "no merchant or total could be read from the receipt"
	case errors.Is(err, domain.ErrInference):
		return http.StatusInternalServerError, "INFERENCE_ERROR", "categorization failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED", "feature is not configured"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		log.Printf("[%s] internal error: %v", middleware.GetRequestID(c), err)
	}
	RespondError(c, status, code, msg)
}

// requireUser extracts the authenticated user id. Returns false after writing a 401.
func requireUser(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return "", false
	}
	return userID, true
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
