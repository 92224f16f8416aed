package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/taxonomy"
)

const (
	DefaultBatchConcurrency = 8
	DefaultMaxBatchSize     = 500

	healthProbeTimeout = 2 * time.Second
	healthCacheTTL     = 30 * time.Second
)

// ReceiptExtractor turns an image into a validated extraction.
type ReceiptExtractor interface {
	Extract(ctx context.Context, image []byte, format string) (*domain.ReceiptExtraction, error)
	Available() bool
	Ping(ctx context.Context) error
}

// CategorizationService is the entry point used by the HTTP layer.
type CategorizationService interface {
	Categorize(ctx context.Context, in domain.CategorizationInput) (*domain.CategorizationResult, error)
	CategorizeBatch(ctx context.Context, inputs []domain.CategorizationInput) ([]domain.CategorizationResult, error)
	SubmitCorrection(ctx context.Context, in domain.CategorizationInput, category string) (*domain.Correction, error)
	ExtractReceipt(ctx context.Context, image []byte, format string) (*domain.ReceiptExtraction, error)
	ListCategories() []domain.Category
	Health(ctx context.Context) domain.Health
}

// BatchOptions bounds batch categorization.
type BatchOptions struct {
	Concurrency  int
	MaxBatchSize int
}

type categorizationService struct {
	registry    *taxonomy.Registry
	categorizer *Categorizer
	corrections port.CorrectionStore
	extractor   ReceiptExtractor
	batch       BatchOptions

	probes  singleflight.Group
	mu      sync.Mutex
	probed  time.Time
	cached  probeResult
	nowFunc func() time.Time
}

type probeResult struct {
	visionReachable  bool
	storeOK          bool
	correctionsCount int
}

// NewCategorizationService creates a CategorizationService. extractor may be nil when no
// vision provider is configured.
func NewCategorizationService(
	registry *taxonomy.Registry,
	categorizer *Categorizer,
	corrections port.CorrectionStore,
	extractor ReceiptExtractor,
	batch BatchOptions,
) CategorizationService {
	if batch.Concurrency <= 0 {
		batch.Concurrency = DefaultBatchConcurrency
	}
	if batch.MaxBatchSize <= 0 {
		batch.MaxBatchSize = DefaultMaxBatchSize
	}
	return &categorizationService{
		registry:    registry,
		categorizer: categorizer,
		corrections: corrections,
		extractor:   extractor,
		batch:       batch,
		nowFunc:     time.Now,
	}
}

func (s *categorizationService) Categorize(ctx context.Context, in domain.CategorizationInput) (*domain.CategorizationResult, error) {
	return s.categorizer.Categorize(ctx, in)
}

// CategorizeBatch classifies every input independently. Output order matches input
// order; an item that cannot be classified gets the fallback result with Error set.
func (s *categorizationService) CategorizeBatch(ctx context.Context, inputs []domain.CategorizationInput) ([]domain.CategorizationResult, error) {
	if len(inputs) > s.batch.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d items, limit %d", domain.ErrBatchTooLarge, len(inputs), s.batch.MaxBatchSize)
	}
	if !s.categorizer.Loaded() {
		return nil, domain.ErrModelUnavailable
	}

	results := make([]domain.CategorizationResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batch.Concurrency)
	for i := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.categorizer.Categorize(gctx, inputs[i])
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil {
				fb := s.categorizer.ranker.Fallback()
				fb.Error = err.Error()
				results[i] = fb
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SubmitCorrection appends a correction. The category must match a taxonomy label exactly.
func (s *categorizationService) SubmitCorrection(ctx context.Context, in domain.CategorizationInput, category string) (*domain.Correction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	if !s.registry.Contains(category) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	c := &domain.Correction{
		OriginalInput:   in,
		CorrectCategory: domain.Category(category),
	}
	if err := s.corrections.Record(ctx, c); err != nil {
		return nil, err
	}
	log.Printf("service.CategorizationService: recorded correction %s -> %s", c.ID, c.CorrectCategory)
	return c, nil
}

func (s *categorizationService) ExtractReceipt(ctx context.Context, image []byte, format string) (*domain.ReceiptExtraction, error) {
	if s.extractor == nil || !s.extractor.Available() {
		err := fmt.Errorf("%w: receipt extraction is not configured", domain.ErrExtractionService)
		return &domain.ReceiptExtraction{
			Category:         s.registry.Fallback(),
			Items:            []domain.LineItem{},
			ExtractionStatus: domain.ExtractionStatusFailed,
			FailureReason:    "external service error: receipt extraction is not configured",
			ProcessedAt:      s.nowFunc().UTC(),
		}, err
	}
	return s.extractor.Extract(ctx, image, format)
}

func (s *categorizationService) ListCategories() []domain.Category {
	return s.registry.Categories()
}

// Health reports readiness. External probes are bounded and their result is cached.
func (s *categorizationService) Health(ctx context.Context) domain.Health {
	probe := s.probe(ctx)
	h := domain.Health{
		Status:                 domain.HealthStatusOK,
		ModelLoaded:            s.categorizer.Loaded(),
		ModelName:              s.categorizer.ModelName(),
		VisionServiceReachable: probe.visionReachable,
		CorrectionStoreOK:      probe.storeOK,
		CorrectionsCount:       probe.correctionsCount,
		CategoriesCount:        s.registry.Len(),
	}
	if !h.ModelLoaded || !h.CorrectionStoreOK || h.CategoriesCount == 0 {
		h.Status = domain.HealthStatusDegraded
	}
	return h
}

func (s *categorizationService) probe(ctx context.Context) probeResult {
	s.mu.Lock()
	if !s.probed.IsZero() && s.nowFunc().Sub(s.probed) < healthCacheTTL {
		res := s.cached
		s.mu.Unlock()
		return res
	}
	s.mu.Unlock()

	v, _, _ := s.probes.Do("health", func() (interface{}, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), healthProbeTimeout)
		defer cancel()

		var res probeResult
		if s.extractor != nil && s.extractor.Available() {
			if err := s.extractor.Ping(pctx); err != nil {
				log.Printf("service.CategorizationService: vision probe failed: %v", err)
			} else {
				res.visionReachable = true
			}
		}
		if n, err := s.corrections.Count(pctx); err != nil {
			log.Printf("service.CategorizationService: correction store probe failed: %v", err)
		} else {
			res.storeOK = true
			res.correctionsCount = n
		}

		s.mu.Lock()
		s.cached = res
		s.probed = s.nowFunc()
		s.mu.Unlock()
		return res, nil
	})
	return v.(probeResult)
}
