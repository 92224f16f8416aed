package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/service"
)

// ReceiptFormField is the multipart field carrying the image.
const ReceiptFormField = "receipt"

// ReceiptResponse wraps an extraction. Retryable is set on failures the caller may resubmit.
type ReceiptResponse struct {
	*domain.ReceiptExtraction
	Retryable bool `json:"retryable"`
}

// ReceiptHandler serves receipt extraction.
type ReceiptHandler struct {
	svc      service.CategorizationService
	maxBytes int64
}

// NewReceiptHandler creates a ReceiptHandler. maxBytes bounds the accepted image.
func NewReceiptHandler(svc service.CategorizationService, maxBytes int64) *ReceiptHandler {
	return &ReceiptHandler{svc: svc, maxBytes: maxBytes}
}

// Extract handles POST /api/v1/receipts/extract
//
// The image is sent either as multipart field "receipt" or as the raw request body with
// the format given by the "format" query parameter or the Content-Type header.
func (h *ReceiptHandler) Extract(c *gin.Context) {
	image, format, ok := readReceiptImage(c, h.maxBytes)
	if !ok {
		return
	}

	ext, err := h.svc.ExtractReceipt(c.Request.Context(), image, format)
	if err != nil && isImageRejection(err) {
		HandleError(c, err)
		return
	}
	RespondOK(c, ReceiptResponse{ReceiptExtraction: ext, Retryable: domain.IsRetryableExtraction(err)})
}

// readReceiptImage reads the image and its declared format. Returns false after writing
// an error response.
func readReceiptImage(c *gin.Context, maxBytes int64) ([]byte, string, bool) {
	limit := maxBytes + 1
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)
		file, header, err := c.Request.FormFile(ReceiptFormField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				HandleError(c, domain.ErrImageTooLarge)
				return nil, "", false
			}
			RespondError(c, http.StatusBadRequest, "MISSING_FILE", "receipt field is required")
			return nil, "", false
		}
		defer func() { _ = file.Close() }()

		data, err := io.ReadAll(io.LimitReader(file, limit))
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "reading receipt upload failed")
			return nil, "", false
		}
		format := c.PostForm("format")
		if ct := header.Header.Get("Content-Type"); format == "" && strings.HasPrefix(ct, "image/") {
			format = ct
		}
		if format == "" {
			format = filepath.Ext(header.Filename)
		}
		return data, format, true
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "reading request body failed")
		return nil, "", false
	}
	format := c.Query("format")
	if format == "" && strings.HasPrefix(c.ContentType(), "image/") {
		format = c.ContentType()
	}
	return data, format, true
}

// isImageRejection reports errors caused by the submitted image rather than the extraction.
func isImageRejection(err error) bool {
	return errors.Is(err, domain.ErrEmptyImage) ||
		errors.Is(err, domain.ErrUnsupportedImageFormat) ||
		errors.Is(err, domain.ErrImageTooLarge)
}
