// Package receipt turns receipt images into validated expense extractions.
package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/taxonomy"
	"ledgerlens/internal/validator"
	"ledgerlens/internal/vision"
)

// DefaultTimeout bounds one vision call when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// Categorizer assigns a taxonomy category to text. It is used when the vision model's own
// category is missing or outside the taxonomy.
type Categorizer interface {
	Categorize(ctx context.Context, in domain.CategorizationInput) (*domain.CategorizationResult, error)
}

// Extractor runs the receipt state machine:
// submitted, image validated, vision invoked, response parsed, validated, then
// success, partial or failed.
type Extractor struct {
	vision        port.VisionService
	registry      *taxonomy.Registry
	engine        *validator.Engine
	categorizer   Categorizer
	storage       port.ObjectStorage
	bucket        string
	maxImageBytes int64
	timeout       time.Duration
	now           func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCategorizer sets the text categorizer used for receipts without a usable category.
func WithCategorizer(c Categorizer) Option {
	return func(e *Extractor) { e.categorizer = c }
}

// WithArchive stores every validated image in object storage under receipts/.
func WithArchive(storage port.ObjectStorage, bucket string) Option {
	return func(e *Extractor) {
		e.storage = storage
		e.bucket = bucket
	}
}

// WithMaxImageBytes overrides DefaultMaxImageBytes.
func WithMaxImageBytes(n int64) Option {
	return func(e *Extractor) { e.maxImageBytes = n }
}

// WithTimeout overrides DefaultTimeout for the vision call.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithClock overrides the processed_at clock.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor creates an Extractor. A nil vision service makes every extraction fail
// with ErrExtractionService.
func NewExtractor(vs port.VisionService, registry *taxonomy.Registry, engine *validator.Engine, opts ...Option) *Extractor {
	e := &Extractor{
		vision:        vs,
		registry:      registry,
		engine:        engine,
		maxImageBytes: DefaultMaxImageBytes,
		timeout:       DefaultTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether a vision service is configured.
func (e *Extractor) Available() bool {
	return e.vision != nil
}

// Ping probes the vision service when it supports it.
func (e *Extractor) Ping(ctx context.Context) error {
	if e.vision == nil {
		return fmt.Errorf("%w: no vision service configured", domain.ErrExtractionService)
	}
	p, ok := e.vision.(port.Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Extract processes one receipt image. It always returns an extraction. When the
// extraction failed the error names the cause and the extraction carries the reason.
func (e *Extractor) Extract(ctx context.Context, image []byte, format string) (*domain.ReceiptExtraction, error) {
	_, contentType, err := ValidateImage(image, format, e.maxImageBytes)
	if err != nil {
		return e.fail(err), err
	}
	if e.vision == nil {
		err := fmt.Errorf("%w: no vision service configured", domain.ErrExtractionService)
		return e.fail(err), err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.vision.Extract(callCtx, port.VisionInput{
		ImageBytes:  image,
		ContentType: contentType,
		Prompt:      vision.BuildReceiptPrompt(e.registry.Categories()),
	})
	if err != nil {
		err = classifyVisionError(callCtx, err)
		log.Printf("receipt.Extractor: vision call failed: %v", err)
		return e.fail(err), err
	}

	fields, recovered := parseResponse(out.Text)
	if recovered {
		log.Printf("receipt.Extractor: %s response needed repair (%d bytes)", out.Provider, len(out.Text))
	}
	n := &normalizer{registry: e.registry}
	ext := n.normalize(fields)
	ext.ModelUsed = out.ModelUsed
	ext.ProcessedAt = e.now().UTC()

	if strings.TrimSpace(ext.MerchantName) == "" && !ext.TotalAmount.Valid {
		err := domain.ErrNoContentExtracted
		failed := e.fail(err)
		failed.ModelUsed = out.ModelUsed
		return failed, err
	}

	// Only images that yielded a receipt are kept.
	ext.ReceiptKey = e.archive(ctx, image, contentType)

	e.assignCategories(ctx, ext)

	rep := e.engine.Validate(ctx, ext)
	ext.Discrepancies = append(n.discrepancies, rep.Discrepancies...)
	ext.ExtractionStatus = domain.ExtractionStatusSuccess
	if rep.HasError {
		ext.ExtractionStatus = domain.ExtractionStatusPartial
	}
	if recovered {
		ext.ExtractionStatus = domain.ExtractionStatusPartial
		ext.Notes = strings.TrimSpace(ext.Notes + " Recovered from an incomplete model response.")
	}

	if c, ok := selfReportedConfidence(fields); ok {
		ext.ConfidenceScore = c
	} else {
		ext.ConfidenceScore = derivedConfidence(ext)
	}

	log.Printf("receipt.Extractor: extracted %q total=%s status=%s confidence=%.2f discrepancies=%d",
		ext.MerchantName, ext.TotalAmount.Decimal.StringFixed(2), ext.ExtractionStatus, ext.ConfidenceScore, len(ext.Discrepancies))
	return ext, nil
}

func (e *Extractor) fail(err error) *domain.ReceiptExtraction {
	return &domain.ReceiptExtraction{
		Category:         e.registry.Fallback(),
		Items:            []domain.LineItem{},
		ExtractionStatus: domain.ExtractionStatusFailed,
		FailureReason:    failureReason(err),
		ProcessedAt:      e.now().UTC(),
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyImage):
		return "The uploaded image is empty."
	case errors.Is(err, domain.ErrImageTooLarge):
		return "The uploaded image is too large."
	case errors.Is(err, domain.ErrUnsupportedImageFormat):
		return "The image format is not supported. Use JPEG, PNG, WEBP, HEIC or HEIF."
	case errors.Is(err, domain.ErrExtractionTimeout):
		return "The receipt reader took too long to respond. Please try again."
	case errors.Is(err, domain.ErrNoContentExtracted):
		return "No receipt details could be read from the image."
	case errors.Is(err, domain.ErrExtractionService):
		return "The receipt reader is unavailable. Please try again."
	default:
		return err.Error()
	}
}

// classifyVisionError maps a vision failure onto the extraction error sentinels.
func classifyVisionError(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrUnsupportedImageFormat) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrExtractionTimeout, err)
	}
	if errors.Is(err, domain.ErrExtractionService) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrExtractionService, err)
}

// assignCategories resolves the receipt category and fills item categories.
func (e *Extractor) assignCategories(ctx context.Context, ext *domain.ReceiptExtraction) {
	if ext.Category == "" {
		ext.Category = e.receiptCategory(ctx, ext)
	}
	for i := range ext.Items {
		if ext.Items[i].Category != "" {
			continue
		}
		if c, ok := keywordCategory(e.registry, ext.Items[i].Name); ok {
			ext.Items[i].Category = c
		} else {
			ext.Items[i].Category = ext.Category
		}
	}
}

func (e *Extractor) receiptCategory(ctx context.Context, ext *domain.ReceiptExtraction) domain.Category {
	names := make([]string, 0, len(ext.Items))
	for i := range ext.Items {
		names = append(names, ext.Items[i].Name)
	}
	description := strings.Join(names, ", ")

	if e.categorizer != nil {
		in := domain.CategorizationInput{MerchantName: ext.MerchantName, Description: description}
		if ext.TotalAmount.Valid {
			total := ext.TotalAmount.Decimal
			in.Amount = &total
		}
		res, err := e.categorizer.Categorize(ctx, in)
		switch {
		case err != nil:
			log.Printf("receipt.Extractor: categorizer failed: %v", err)
		case !res.Fallback && !res.LowConfidence:
			return res.Category
		}
	}
	if c, ok := keywordCategory(e.registry, ext.MerchantName+" "+description); ok {
		return c
	}
	return e.registry.Fallback()
}

// archive uploads the image and returns its key. Failures are logged and yield "".
func (e *Extractor) archive(ctx context.Context, image []byte, contentType string) string {
	if e.storage == nil {
		return ""
	}
	ext := strings.TrimPrefix(contentType, "image/")
	if ext == "jpeg" {
		ext = "jpg"
	}
	key := fmt.Sprintf("receipts/%s/%s.%s", e.now().UTC().Format("2006/01/02"), uuid.New().String(), ext)
	if _, err := e.storage.Upload(ctx, port.UploadInput{
		Bucket:      e.bucket,
		Key:         key,
		Body:        bytes.NewReader(image),
		ContentType: contentType,
		Size:        int64(len(image)),
	}); err != nil {
		log.Printf("receipt.Extractor: archiving %s failed: %v", key, err)
		return ""
	}
	return key
}
