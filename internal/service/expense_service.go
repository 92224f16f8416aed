package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/taxonomy"
)

// DateLayout is the canonical expense date format.
const DateLayout = "2006-01-02"

// CreateExpenseInput is the DTO for manual expense creation. An empty Category asks the
// classifier to pick one.
type CreateExpenseInput struct {
	MerchantName string          `json:"merchant_name"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Category     string          `json:"category"`
	ExpenseDate  string          `json:"expense_date"`
}

// UpdateExpenseInput is the DTO for partial expense updates.
type UpdateExpenseInput struct {
	MerchantName *string          `json:"merchant_name"`
	Description  *string          `json:"description"`
	Amount       *decimal.Decimal `json:"amount"`
	Currency     *string          `json:"currency"`
	Category     *string          `json:"category"`
	ExpenseDate  *string          `json:"expense_date"`
}

// ExpenseSummary is the per-category spending breakdown for a period.
type ExpenseSummary struct {
	Categories []domain.CategoryTotal `json:"categories"`
	Total      decimal.Decimal        `json:"total"`
	Count      int                    `json:"count"`
}

// ExpenseService manages persisted expenses for one user at a time.
type ExpenseService interface {
	Create(ctx context.Context, userID string, input CreateExpenseInput) (*domain.Expense, error)
	CreateFromReceipt(ctx context.Context, userID string, image []byte, format string) (*domain.Expense, *domain.ReceiptExtraction, error)
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Expense, error)
	Update(ctx context.Context, userID string, id uuid.UUID, input UpdateExpenseInput) (*domain.Expense, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, int, error)
	Summary(ctx context.Context, filter domain.ExpenseFilter) (*ExpenseSummary, error)
	ReceiptURL(ctx context.Context, userID string, id uuid.UUID) (string, error)
}

// ReceiptStore locates archived receipt images.
type ReceiptStore struct {
	Storage       port.ObjectStorage
	Bucket        string
	ExpirySeconds int64
}

type expenseService struct {
	repo        port.ExpenseRepository
	registry    *taxonomy.Registry
	categorizer *Categorizer
	extractor   ReceiptExtractor
	corrections port.CorrectionStore
	receipts    *ReceiptStore
	now         func() time.Time
}

// NewExpenseService creates an ExpenseService. corrections and receipts may be nil.
func NewExpenseService(
	repo port.ExpenseRepository,
	registry *taxonomy.Registry,
	categorizer *Categorizer,
	extractor ReceiptExtractor,
	corrections port.CorrectionStore,
	receipts *ReceiptStore,
) ExpenseService {
	return &expenseService{
		repo:        repo,
		registry:    registry,
		categorizer: categorizer,
		extractor:   extractor,
		corrections: corrections,
		receipts:    receipts,
		now:         time.Now,
	}
}

func (s *expenseService) Create(ctx context.Context, userID string, input CreateExpenseInput) (*domain.Expense, error) {
	date, err := s.parseDate(input.ExpenseDate)
	if err != nil {
		return nil, err
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidInput)
	}

	e := &domain.Expense{
		UserID:       userID,
		Source:       domain.ExpenseSourceManual,
		MerchantName: strings.TrimSpace(input.MerchantName),
		Description:  strings.TrimSpace(input.Description),
		Amount:       input.Amount,
		Currency:     strings.ToUpper(strings.TrimSpace(input.Currency)),
		ExpenseDate:  date,
	}

	if category := strings.TrimSpace(input.Category); category != "" {
		if !s.registry.Contains(category) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
		}
		e.Category = domain.Category(category)
	} else {
		amount := input.Amount
		res, err := s.categorizer.Categorize(ctx, domain.CategorizationInput{
			Description:  e.Description,
			MerchantName: e.MerchantName,
			Amount:       &amount,
		})
		if err != nil {
			return nil, err
		}
		e.Category = res.Category
		e.Source = domain.ExpenseSourceAICategorized
		confidence := res.Confidence
		e.Confidence = &confidence
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("creating expense: %w", err)
	}
	return e, nil
}

// CreateFromReceipt extracts a receipt and stores it as a scanner expense. Failed
// extractions are returned without persisting anything.
func (s *expenseService) CreateFromReceipt(ctx context.Context, userID string, image []byte, format string) (*domain.Expense, *domain.ReceiptExtraction, error) {
	if s.extractor == nil || !s.extractor.Available() {
		return nil, nil, fmt.Errorf("%w: receipt extraction is not configured", domain.ErrExtractionService)
	}
	ext, err := s.extractor.Extract(ctx, image, format)
	if err != nil {
		return nil, ext, err
	}

	raw, err := json.Marshal(ext)
	if err != nil {
		return nil, ext, fmt.Errorf("encoding extraction: %w", err)
	}
	e := &domain.Expense{
		UserID:       userID,
		Source:       domain.ExpenseSourceScanner,
		MerchantName: ext.MerchantName,
		Description:  receiptDescription(ext),
		Currency:     ext.Currency,
		Category:     ext.Category,
		ExpenseDate:  s.today(),
		Extraction:   raw,
		ReceiptKey:   ext.ReceiptKey,
	}
	if ext.TotalAmount.Valid {
		e.Amount = ext.TotalAmount.Decimal
	}
	if ext.Date != nil {
		if d, err := time.Parse(DateLayout, *ext.Date); err == nil {
			e.ExpenseDate = d
		}
	}
	confidence := ext.ConfidenceScore
	e.Confidence = &confidence

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, ext, fmt.Errorf("creating expense: %w", err)
	}
	return e, ext, nil
}

func (s *expenseService) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Expense, error) {
	return s.repo.GetByID(ctx, userID, id)
}

// Update applies the provided fields. Changing the category of a classified expense
// records a correction.
func (s *expenseService) Update(ctx context.Context, userID string, id uuid.UUID, input UpdateExpenseInput) (*domain.Expense, error) {
	e, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	before := *e

	if input.MerchantName != nil {
		e.MerchantName = strings.TrimSpace(*input.MerchantName)
	}
	if input.Description != nil {
		e.Description = strings.TrimSpace(*input.Description)
	}
	if input.Amount != nil {
		if input.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidInput)
		}
		e.Amount = *input.Amount
	}
	if input.Currency != nil {
		e.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}
	if input.ExpenseDate != nil {
		d, err := s.parseDate(*input.ExpenseDate)
		if err != nil {
			return nil, err
		}
		e.ExpenseDate = d
	}

	recategorized := false
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if !s.registry.Contains(category) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
		}
		if domain.Category(category) != e.Category {
			recategorized = before.Source != domain.ExpenseSourceManual
			e.Category = domain.Category(category)
			e.Source = domain.ExpenseSourceManual
			e.Confidence = nil
		}
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}

	if recategorized && s.corrections != nil {
		amount := before.Amount
		c := &domain.Correction{
			OriginalInput: domain.CategorizationInput{
				Description:  before.Description,
				MerchantName: before.MerchantName,
				Amount:       &amount,
			},
			CorrectCategory: e.Category,
		}
		if c.OriginalInput.Validate() == nil {
			if err := s.corrections.Record(ctx, c); err != nil {
				log.Printf("service.ExpenseService: recording correction for %s failed: %v", e.ID, err)
			}
		}
	}
	return e, nil
}

func (s *expenseService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, userID, id)
}

func (s *expenseService) List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, int, error) {
	if err := validateRange(filter); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter)
}

func (s *expenseService) Summary(ctx context.Context, filter domain.ExpenseFilter) (*ExpenseSummary, error) {
	if err := validateRange(filter); err != nil {
		return nil, err
	}
	totals, err := s.repo.SummaryByCategory(ctx, filter)
	if err != nil {
		return nil, err
	}
	sum := &ExpenseSummary{Categories: totals, Total: decimal.Zero}
	if sum.Categories == nil {
		sum.Categories = []domain.CategoryTotal{}
	}
	for _, t := range totals {
		sum.Total = sum.Total.Add(t.Total)
		sum.Count += t.Count
	}
	return sum, nil
}

// ReceiptURL returns a presigned link to the archived receipt image.
func (s *expenseService) ReceiptURL(ctx context.Context, userID string, id uuid.UUID) (string, error) {
	e, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if e.ReceiptKey == "" || s.receipts == nil || s.receipts.Storage == nil {
		return "", domain.ErrNotFound
	}
	return s.receipts.Storage.GetPresignedURL(ctx, s.receipts.Bucket, e.ReceiptKey, s.receipts.ExpirySeconds)
}

func (s *expenseService) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.today(), nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: expense_date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	return d, nil
}

func (s *expenseService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateRange(filter domain.ExpenseFilter) error {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return fmt.Errorf("%w: from is after to", domain.ErrInvalidInput)
	}
	return nil
}

func receiptDescription(ext *domain.ReceiptExtraction) string {
	names := make([]string, 0, len(ext.Items))
	for i := range ext.Items {
		names = append(names, ext.Items[i].Name)
	}
	desc := []rune(strings.Join(names, ", "))
	if len(desc) > 500 {
		desc = desc[:500]
	}
	return string(desc)
}
