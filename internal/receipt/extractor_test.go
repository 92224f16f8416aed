package receipt_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/receipt"
	"ledgerlens/internal/taxonomy"
	"ledgerlens/internal/validator"
	"ledgerlens/mocks"
)

var (
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
	pngBytes  = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, make([]byte, 64)...)
	fixedNow  = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
)

func newRegistry(t *testing.T) *taxonomy.Registry {
	t.Helper()
	r, err := taxonomy.New([]string{"Food & Dining", "Groceries", "Transportation", "Shopping", "Other"}, "Other")
	require.NoError(t, err)
	return r
}

func newExtractor(t *testing.T, vs port.VisionService, opts ...receipt.Option) *receipt.Extractor {
	t.Helper()
	opts = append([]receipt.Option{receipt.WithClock(func() time.Time { return fixedNow })}, opts...)
	return receipt.NewExtractor(vs, newRegistry(t), validator.NewEngine(validator.NewBuiltinRegistry()), opts...)
}

func cafeReceipt(total string) string {
	return fmt.Sprintf("```json\n"+`{
  "merchant_name": "Corner Cafe",
  "merchant_address": "1 Main St",
  "date": "2024-01-15",
  "time": "12:30",
  "currency": "USD",
  "total_amount": %s,
  "category": "Food & Dining",
  "payment_method": "Card",
  "receipt_number": "A-17",
  "items": [
    {"name": "Latte", "quantity": 1, "unit_price": 5.45, "total_price": 5.45},
    {"name": "Sandwich", "quantity": 1, "unit_price": 8.00, "total_price": 8.00}
  ],
  "tax_details": {"tax_amount": 1.08, "tax_rate": 8.0, "tax_type": "Sales"}
}`+"\n```", total)
}

func visionReturns(text string) *mocks.MockVisionService {
	vs := new(mocks.MockVisionService)
	vs.On("Extract", mock.Anything, mock.MatchedBy(func(in port.VisionInput) bool {
		return in.ContentType == "image/jpeg" && len(in.Prompt) > 0
	})).Return(&port.VisionOutput{Text: text, ModelUsed: "gemini-2.0-flash", Provider: "gemini"}, nil)
	return vs
}

func TestExtract_ReconcilingReceiptSucceeds(t *testing.T) {
	ext, err := newExtractor(t, visionReturns(cafeReceipt("14.53"))).Extract(context.Background(), jpegBytes, "jpg")

	require.NoError(t, err)
	assert.Equal(t, domain.ExtractionStatusSuccess, ext.ExtractionStatus)
	assert.Equal(t, "14.53", ext.TotalAmount.Decimal.StringFixed(2))
	assert.Equal(t, domain.Category("Food & Dining"), ext.Category)
	assert.Equal(t, domain.Category("Food & Dining"), ext.Items[0].Category)
	assert.Equal(t, "gemini-2.0-flash", ext.ModelUsed)
	assert.Equal(t, 1.0, ext.ConfidenceScore)
	assert.Equal(t, fixedNow, ext.ProcessedAt)
	assert.Empty(t, ext.Discrepancies)
}

func TestExtract_MismatchedTotalIsPartial(t *testing.T) {
	ext, err := newExtractor(t, visionReturns(cafeReceipt("20.00"))).Extract(context.Background(), jpegBytes, "")

	require.NoError(t, err)
	assert.Equal(t, domain.ExtractionStatusPartial, ext.ExtractionStatus)
	assert.Equal(t, "20.00", ext.TotalAmount.Decimal.StringFixed(2))
	assert.Equal(t, "Corner Cafe", ext.MerchantName)
	assert.Len(t, ext.Items, 2)
	require.NotEmpty(t, ext.Discrepancies)
	assert.Equal(t, "math.total_reconciles", ext.Discrepancies[0].RuleKey)
	assert.Less(t, ext.ConfidenceScore, 1.0)
}

func TestExtract_DerivedTaxDoesNotReconcile(t *testing.T) {
	text := `{"merchant_name": "Corner Cafe", "total_amount": 200.00, "subtotal_amount": 13.45,
		"items": [{"name": "Latte", "total_price": 5.45}, {"name": "Sandwich", "total_price": 8.00}]}`
	ext, err := newExtractor(t, visionReturns(text)).Extract(context.Background(), jpegBytes, "")

	require.NoError(t, err)
	require.NotNil(t, ext.TaxDetails)
	assert.True(t, ext.TaxDetails.Derived)
	assert.Equal(t, "186.55", ext.TaxDetails.Amount.Decimal.StringFixed(2))
	assert.Equal(t, domain.ExtractionStatusPartial, ext.ExtractionStatus)
	keys := []string{}
	for _, d := range ext.Discrepancies {
		keys = append(keys, d.RuleKey)
	}
	assert.Contains(t, keys, "math.total_reconciles")
}

func TestExtract_SelfReportedConfidenceWins(t *testing.T) {
	text := `{"merchant_name": "Cafe", "total_amount": 5, "subtotal_amount": 5, "confidence_score": 0.42}`
	ext, err := newExtractor(t, visionReturns(text)).Extract(context.Background(), jpegBytes, "")

	require.NoError(t, err)
	assert.Equal(t, 0.42, ext.ConfidenceScore)
}

func TestExtract_ImageValidationFailsBeforeVisionCall(t *testing.T) {
	tests := []struct {
		name   string
		image  []byte
		format string
		opts   []receipt.Option
		want   error
	}{
		{"empty", nil, "jpeg", nil, domain.ErrEmptyImage},
		{"not an image", []byte("%PDF-1.7 not a receipt image at all"), "", nil, domain.ErrUnsupportedImageFormat},
		{"unknown declared format", jpegBytes, "gif", nil, domain.ErrUnsupportedImageFormat},
		{"declared format disagrees", pngBytes, "jpeg", nil, domain.ErrUnsupportedImageFormat},
		{"too large", jpegBytes, "jpeg", []receipt.Option{receipt.WithMaxImageBytes(10)}, domain.ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := new(mocks.MockVisionService)
			ext, err := newExtractor(t, vs, tt.opts...).Extract(context.Background(), tt.image, tt.format)

			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, domain.ExtractionStatusFailed, ext.ExtractionStatus)
			assert.NotEmpty(t, ext.FailureReason)
			assert.False(t, domain.IsRetryableExtraction(err))
			vs.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
		})
	}
}

func TestExtract_VisionTimeout(t *testing.T) {
	vs := new(mocks.MockVisionService)
	vs.On("Extract", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, &url.Error{Op: "Post", URL: "https://vision", Err: context.DeadlineExceeded})

	ext, err := newExtractor(t, vs, receipt.WithTimeout(20*time.Millisecond)).Extract(context.Background(), jpegBytes, "")

	assert.ErrorIs(t, err, domain.ErrExtractionTimeout)
	assert.True(t, domain.IsRetryableExtraction(err))
	assert.Equal(t, domain.ExtractionStatusFailed, ext.ExtractionStatus)
}

func TestExtract_VisionServiceError(t *testing.T) {
	vs := new(mocks.MockVisionService)
	vs.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	ext, err := newExtractor(t, vs).Extract(context.Background(), jpegBytes, "")

	assert.ErrorIs(t, err, domain.ErrExtractionService)
	assert.True(t, domain.IsRetryableExtraction(err))
	assert.Equal(t, domain.ExtractionStatusFailed, ext.ExtractionStatus)
	vs.AssertNumberOfCalls(t, "Extract", 1)
}

func TestExtract_NoVisionConfigured(t *testing.T) {
	ext, err := newExtractor(t, nil).Extract(context.Background(), jpegBytes, "")
	assert.ErrorIs(t, err, domain.ErrExtractionService)
	assert.Equal(t, domain.ExtractionStatusFailed, ext.ExtractionStatus)
}

func TestExtract_NoContent(t *testing.T) {
	ext, err := newExtractor(t, visionReturns(`{"notes": "blurry"}`)).Extract(context.Background(), jpegBytes, "")

	assert.ErrorIs(t, err, domain.ErrNoContentExtracted)
	assert.Equal(t, domain.ExtractionStatusFailed, ext.ExtractionStatus)
	assert.Equal(t, "gemini-2.0-flash", ext.ModelUsed)
}

func TestExtract_TruncatedResponseIsPartial(t *testing.T) {
	text := `{"merchant_name": "Corner Cafe", "total_amount": 14.53, "items": [{"name": "Latte", "total_price": 5.45}, {"name": "Sandw`
	ext, err := newExtractor(t, visionReturns(text)).Extract(context.Background(), jpegBytes, "")

	require.NoError(t, err)
	assert.Equal(t, domain.ExtractionStatusPartial, ext.ExtractionStatus)
	assert.Len(t, ext.Items, 1)
}

type stubCategorizer struct {
	result *domain.CategorizationResult
	calls  int
}

func (s *stubCategorizer) Categorize(_ context.Context, in domain.CategorizationInput) (*domain.CategorizationResult, error) {
	s.calls++
	return s.result, nil
}

func TestExtract_CategoryResolution(t *testing.T) {
	t.Run("unknown vision category uses categorizer", func(t *testing.T) {
		cat := &stubCategorizer{result: &domain.CategorizationResult{Category: "Groceries", Confidence: 0.8}}
		text := `{"merchant_name": "FreshCo", "total_amount": 3, "subtotal_amount": 3, "category": "Produce"}`

		ext, err := newExtractor(t, visionReturns(text), receipt.WithCategorizer(cat)).Extract(context.Background(), jpegBytes, "")

		require.NoError(t, err)
		assert.Equal(t, domain.Category("Groceries"), ext.Category)
		assert.Equal(t, 1, cat.calls)
	})

	t.Run("low confidence categorizer falls back to keywords", func(t *testing.T) {
		cat := &stubCategorizer{result: &domain.CategorizationResult{Category: "Shopping", Confidence: 0.1, LowConfidence: true}}
		text := `{"merchant_name": "Shell Fuel Station", "total_amount": 40, "subtotal_amount": 40}`

		ext, err := newExtractor(t, visionReturns(text), receipt.WithCategorizer(cat)).Extract(context.Background(), jpegBytes, "")

		require.NoError(t, err)
		assert.Equal(t, domain.Category("Transportation"), ext.Category)
	})

	t.Run("nothing matches uses registry fallback", func(t *testing.T) {
		text := `{"merchant_name": "Zyx Ltd", "total_amount": 40, "subtotal_amount": 40}`

		ext, err := newExtractor(t, visionReturns(text)).Extract(context.Background(), jpegBytes, "")

		require.NoError(t, err)
		assert.Equal(t, domain.Category("Other"), ext.Category)
	})
}

func TestExtract_ArchivesImage(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	store.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "receipts-bucket" && in.ContentType == "image/jpeg" && in.Size == int64(len(jpegBytes))
	})).Return(&port.UploadOutput{Location: "s3://receipts-bucket/x"}, nil)

	ext, err := newExtractor(t, visionReturns(cafeReceipt("14.53")), receipt.WithArchive(store, "receipts-bucket")).
		Extract(context.Background(), jpegBytes, "")

	require.NoError(t, err)
	assert.Regexp(t, `^receipts/2024/02/01/[0-9a-f-]{36}\.jpg$`, ext.ReceiptKey)
	store.AssertExpectations(t)
}

func TestExtract_FailedExtractionNotArchived(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	failing := new(mocks.MockVisionService)
	failing.On("Extract", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: status 500", domain.ErrExtractionService))

	ext, err := newExtractor(t, failing, receipt.WithArchive(store, "b")).Extract(context.Background(), jpegBytes, "")
	assert.ErrorIs(t, err, domain.ErrExtractionService)
	assert.Empty(t, ext.ReceiptKey)

	ext, err = newExtractor(t, visionReturns(`{"notes": "blurry"}`), receipt.WithArchive(store, "b")).
		Extract(context.Background(), jpegBytes, "")
	assert.ErrorIs(t, err, domain.ErrNoContentExtracted)
	assert.Empty(t, ext.ReceiptKey)

	ext, err = newExtractor(t, new(mocks.MockVisionService), receipt.WithArchive(store, "b")).
		Extract(context.Background(), nil, "jpeg")
	assert.ErrorIs(t, err, domain.ErrEmptyImage)
	assert.Empty(t, ext.ReceiptKey)

	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestExtract_ArchiveFailureIsNotFatal(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	store.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	ext, err := newExtractor(t, visionReturns(cafeReceipt("14.53")), receipt.WithArchive(store, "b")).
		Extract(context.Background(), jpegBytes, "")

	require.NoError(t, err)
	assert.Empty(t, ext.ReceiptKey)
	assert.Equal(t, domain.ExtractionStatusSuccess, ext.ExtractionStatus)
}

func TestValidateImage_HEIFFamily(t *testing.T) {
	heic := append([]byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c', 0, 0, 0, 0, 'm', 'i', 'f', '1', 'h', 'e', 'i', 'c'}, make([]byte, 64)...)
	format, ct, err := receipt.ValidateImage(heic, "heif", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ImageFormatHEIC, format)
	assert.Equal(t, "image/heic", ct)
}
