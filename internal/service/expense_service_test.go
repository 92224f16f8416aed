package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/service"
	"ledgerlens/mocks"
)

type expenseFixture struct {
	svc         service.ExpenseService
	repo        *mocks.MockExpenseRepo
	extractor   *mocks.MockReceiptExtractor
	corrections *mocks.MockCorrectionStore
	storage     *mocks.MockObjectStorage
}

func newExpenseFixture(t *testing.T) *expenseFixture {
	t.Helper()
	reg := loadRegistry(t)
	f := &expenseFixture{
		repo:        new(mocks.MockExpenseRepo),
		extractor:   new(mocks.MockReceiptExtractor),
		corrections: new(mocks.MockCorrectionStore),
		storage:     new(mocks.MockObjectStorage),
	}
	f.svc = service.NewExpenseService(f.repo, reg, keywordCategorizer(t, reg), f.extractor, f.corrections,
		&service.ReceiptStore{Storage: f.storage, Bucket: "receipts", ExpirySeconds: 600})
	return f
}

func TestExpenseService_CreateManualCategory(t *testing.T) {
	f := newExpenseFixture(t)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Expense")).Return(nil)

	e, err := f.svc.Create(context.Background(), "user-1", service.CreateExpenseInput{
		Description: "team lunch",
		Amount:      decimal.RequireFromString("42.10"),
		Currency:    "usd",
		Category:    "Business",
		ExpenseDate: "2024-03-05",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseSourceManual, e.Source)
	assert.Equal(t, domain.Category("Business"), e.Category)
	assert.Equal(t, "USD", e.Currency)
	assert.Nil(t, e.Confidence)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), e.ExpenseDate)
}

func TestExpenseService_CreateClassifies(t *testing.T) {
	f := newExpenseFixture(t)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Expense")).Return(nil)

	e, err := f.svc.Create(context.Background(), "user-1", service.CreateExpenseInput{
		MerchantName: "Uber",
		Description:  "ride to office",
		Amount:       decimal.RequireFromString("18"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseSourceAICategorized, e.Source)
	assert.Equal(t, domain.Category("Transportation"), e.Category)
	require.NotNil(t, e.Confidence)
	assert.Greater(t, *e.Confidence, 0.0)
}

func TestExpenseService_CreateRejects(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "u", service.CreateExpenseInput{Description: "x", Category: "Pets"})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)

	_, err = f.svc.Create(ctx, "u", service.CreateExpenseInput{Description: "x", ExpenseDate: "05/03/2024"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Create(ctx, "u", service.CreateExpenseInput{Description: "x", Amount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Create(ctx, "u", service.CreateExpenseInput{Amount: decimal.NewFromInt(3)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExpenseService_CreateFromReceipt(t *testing.T) {
	f := newExpenseFixture(t)
	date := "2024-01-15"
	ext := &domain.ReceiptExtraction{
		MerchantName:     "Corner Cafe",
		Date:             &date,
		Currency:         "USD",
		TotalAmount:      decimal.NewNullDecimal(decimal.RequireFromString("14.53")),
		Category:         "Food & Dining",
		Items:            []domain.LineItem{{Name: "Latte"}, {Name: "Bagel"}},
		ConfidenceScore:  0.93,
		ExtractionStatus: domain.ExtractionStatusSuccess,
		ReceiptKey:       "receipts/2024/01/15/abc.jpg",
	}
	f.extractor.On("Available").Return(true)
	f.extractor.On("Extract", mock.Anything, []byte("img"), "jpeg").Return(ext, nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Expense")).Return(nil)

	e, got, err := f.svc.CreateFromReceipt(context.Background(), "user-9", []byte("img"), "jpeg")
	require.NoError(t, err)
	assert.Same(t, ext, got)
	assert.Equal(t, domain.ExpenseSourceScanner, e.Source)
	assert.True(t, decimal.RequireFromString("14.53").Equal(e.Amount))
	assert.Equal(t, "Latte, Bagel", e.Description)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), e.ExpenseDate)
	assert.Equal(t, ext.ReceiptKey, e.ReceiptKey)

	var stored domain.ReceiptExtraction
	require.NoError(t, json.Unmarshal(e.Extraction, &stored))
	assert.Equal(t, "Corner Cafe", stored.MerchantName)
}

func TestExpenseService_CreateFromReceiptFailedNotPersisted(t *testing.T) {
	f := newExpenseFixture(t)
	failed := &domain.ReceiptExtraction{ExtractionStatus: domain.ExtractionStatusFailed, FailureReason: "timeout"}
	f.extractor.On("Available").Return(true)
	f.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(failed, domain.ErrExtractionTimeout)

	e, ext, err := f.svc.CreateFromReceipt(context.Background(), "u", []byte("img"), "png")
	assert.ErrorIs(t, err, domain.ErrExtractionTimeout)
	assert.Nil(t, e)
	assert.Same(t, failed, ext)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExpenseService_UpdateRecategorizeRecordsCorrection(t *testing.T) {
	f := newExpenseFixture(t)
	id := uuid.New()
	conf := 0.4
	existing := &domain.Expense{
		ID: id, UserID: "u", Source: domain.ExpenseSourceAICategorized,
		Description: "Netflix subscription", Amount: decimal.RequireFromString("15.99"),
		Category: "Other", Confidence: &conf,
	}
	f.repo.On("GetByID", mock.Anything, "u", id).Return(existing, nil)
	f.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Expense")).Return(nil)
	f.corrections.On("Record", mock.Anything, mock.MatchedBy(func(c *domain.Correction) bool {
		return c.CorrectCategory == "Entertainment" && c.OriginalInput.Description == "Netflix subscription"
	})).Return(nil)

	cat := "Entertainment"
	e, err := f.svc.Update(context.Background(), "u", id, service.UpdateExpenseInput{Category: &cat})
	require.NoError(t, err)
	assert.Equal(t, domain.Category("Entertainment"), e.Category)
	assert.Equal(t, domain.ExpenseSourceManual, e.Source)
	assert.Nil(t, e.Confidence)
	f.corrections.AssertExpectations(t)
}

func TestExpenseService_UpdateManualNoCorrection(t *testing.T) {
	f := newExpenseFixture(t)
	id := uuid.New()
	existing := &domain.Expense{ID: id, UserID: "u", Source: domain.ExpenseSourceManual, Description: "books", Category: "Other"}
	f.repo.On("GetByID", mock.Anything, "u", id).Return(existing, nil)
	f.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	cat := "Education"
	amt := decimal.RequireFromString("30")
	_, err := f.svc.Update(context.Background(), "u", id, service.UpdateExpenseInput{Category: &cat, Amount: &amt})
	require.NoError(t, err)
	f.corrections.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestExpenseService_UpdateInvalidCategory(t *testing.T) {
	f := newExpenseFixture(t)
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, "u", id).Return(&domain.Expense{ID: id, UserID: "u", Category: "Other"}, nil)

	cat := "Pets"
	_, err := f.svc.Update(context.Background(), "u", id, service.UpdateExpenseInput{Category: &cat})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestExpenseService_UpdateNotFound(t *testing.T) {
	f := newExpenseFixture(t)
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, "u", id).Return(nil, domain.ErrNotFound)

	_, err := f.svc.Update(context.Background(), "u", id, service.UpdateExpenseInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpenseService_Delete(t *testing.T) {
	f := newExpenseFixture(t)
	id := uuid.New()
	f.repo.On("SoftDelete", mock.Anything, "u", id).Return(nil)
	assert.NoError(t, f.svc.Delete(context.Background(), "u", id))
	f.repo.AssertExpectations(t)
}

func TestExpenseService_Summary(t *testing.T) {
	f := newExpenseFixture(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	filter := domain.ExpenseFilter{UserID: "u", From: &from, To: &to}
	f.repo.On("SummaryByCategory", mock.Anything, filter).Return([]domain.CategoryTotal{
		{Category: "Groceries", Total: decimal.RequireFromString("120.40"), Count: 3},
		{Category: "Transportation", Total: decimal.RequireFromString("30.10"), Count: 2},
	}, nil)

	sum, err := f.svc.Summary(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("150.50").Equal(sum.Total))
	assert.Equal(t, 5, sum.Count)
	assert.Len(t, sum.Categories, 2)
}

func TestExpenseService_RangeValidation(t *testing.T) {
	f := newExpenseFixture(t)
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := f.svc.List(context.Background(), domain.ExpenseFilter{UserID: "u", From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExpenseService_ReceiptURL(t *testing.T) {
	f := newExpenseFixture(t)
	withKey, withoutKey := uuid.New(), uuid.New()
	f.repo.On("GetByID", mock.Anything, "u", withKey).Return(&domain.Expense{ID: withKey, ReceiptKey: "receipts/a.jpg"}, nil)
	f.repo.On("GetByID", mock.Anything, "u", withoutKey).Return(&domain.Expense{ID: withoutKey}, nil)
	f.storage.On("GetPresignedURL", mock.Anything, "receipts", "receipts/a.jpg", int64(600)).Return("https://signed", nil)

	url, err := f.svc.ReceiptURL(context.Background(), "u", withKey)
	require.NoError(t, err)
	assert.Equal(t, "https://signed", url)

	_, err = f.svc.ReceiptURL(context.Background(), "u", withoutKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
