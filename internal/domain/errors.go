package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration          = errors.New("configuration error")
	ErrModelUnavailable       = errors.New("categorization model unavailable")
	ErrInference              = errors.New("inference failed")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidCategory        = errors.New("category is not in the taxonomy")
	ErrBatchTooLarge          = errors.New("batch exceeds maximum allowed size")
	ErrEmptyImage             = errors.New("image payload is empty")
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	ErrImageTooLarge          = errors.New("image exceeds maximum allowed size")
	ErrExtractionTimeout      = errors.New("receipt extraction timed out")
	ErrExtractionService      = errors.New("receipt extraction service error")
	ErrNoContentExtracted     = errors.New("no receipt content extracted")
	ErrValidationMismatch     = errors.New("extracted totals do not reconcile")
	ErrNotFound               = errors.New("resource not found")
	ErrUnauthorized           = errors.New("unauthorized")
)

// InferenceError wraps a per-call model failure. It matches ErrInference with errors.Is.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInference.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}

// IsRetryableExtraction reports whether a failed extraction may be resubmitted by the caller.
func IsRetryableExtraction(err error) bool {
	return errors.Is(err, ErrExtractionTimeout) || errors.Is(err, ErrExtractionService)
}
