package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is a label from the taxonomy registry.
type Category string

// CategorizationInput is a single expense to categorize.
type CategorizationInput struct {
	Description  string           `json:"description"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	MerchantName string           `json:"merchant_name,omitempty"`
}

// Validate checks that the input carries something to classify.
func (in CategorizationInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" && strings.TrimSpace(in.MerchantName) == "" {
		return fmt.Errorf("%w: description or merchant_name is required", ErrInvalidInput)
	}
	return nil
}

// Alternative is one ranked candidate category.
type Alternative struct {
	Category Category `json:"category"`
	Score    float64  `json:"score"`
}

// CategorizationResult is the ranked outcome of classifying one input.
// Category always equals Alternatives[0].Category.
type CategorizationResult struct {
	Category      Category      `json:"category"`
	Confidence    float64       `json:"confidence"`
	Alternatives  []Alternative `json:"alternatives"`
	LowConfidence bool          `json:"low_confidence"`
	Fallback      bool          `json:"fallback,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// TaxDetails holds the tax breakdown printed on a receipt.
type TaxDetails struct {
	Amount  decimal.NullDecimal `json:"amount"`
	Rate    decimal.NullDecimal `json:"rate"`
	Type    string              `json:"type,omitempty"`
	Derived bool                `json:"derived,omitempty"`
}

// LineItem is one purchased item on a receipt.
type LineItem struct {
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Category   Category        `json:"category"`
}

// Discrepancy describes a validation rule that did not hold for an extraction.
type Discrepancy struct {
	RuleKey   string             `json:"rule_key"`
	FieldPath string             `json:"field_path"`
	Expected  string             `json:"expected,omitempty"`
	Actual    string             `json:"actual,omitempty"`
	Message   string             `json:"message"`
	Severity  ValidationSeverity `json:"severity"`
}

// ReceiptExtraction is the structured expense extracted from a receipt image.
type ReceiptExtraction struct {
	MerchantName     string              `json:"merchant_name"`
	MerchantAddress  string              `json:"merchant_address,omitempty"`
	Date             *string             `json:"date"`
	Time             *string             `json:"time"`
	Currency         string              `json:"currency"`
	TotalAmount      decimal.NullDecimal `json:"total_amount"`
	SubtotalAmount   decimal.NullDecimal `json:"subtotal_amount"`
	TaxDetails       *TaxDetails         `json:"tax_details,omitempty"`
	PaymentMethod    string              `json:"payment_method,omitempty"`
	Category         Category            `json:"category"`
	Items            []LineItem          `json:"items"`
	ConfidenceScore  float64             `json:"confidence_score"`
	ExtractionStatus ExtractionStatus    `json:"extraction_status"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	Discrepancies    []Discrepancy       `json:"discrepancies,omitempty"`
	ReceiptNumber    string              `json:"receipt_number,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	ModelUsed        string              `json:"model_used,omitempty"`
	ReceiptKey       string              `json:"receipt_key,omitempty"`
	ProcessedAt      time.Time           `json:"processed_at"`
}

// TaxAmount returns the tax amount, or zero when none was extracted.
func (r *ReceiptExtraction) TaxAmount() decimal.Decimal {
	if r.TaxDetails == nil || !r.TaxDetails.Amount.Valid {
		return decimal.Zero
	}
	return r.TaxDetails.Amount.Decimal
}

// reportedTax is TaxAmount without a derived value. A tax computed as total minus
// subtotal would make the sum check pass by construction.
func (r *ReceiptExtraction) reportedTax() decimal.Decimal {
	if r.TaxDetails != nil && r.TaxDetails.Derived {
		return decimal.Zero
	}
	return r.TaxAmount()
}

// ItemsTotal sums the line item totals.
func (r *ReceiptExtraction) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range r.Items {
		sum = sum.Add(r.Items[i].TotalPrice)
	}
	return sum
}

// MinSumTolerance is the smallest allowed deviation between the reported total and
// the reconstructed total.
var MinSumTolerance = decimal.New(1, -2)

// SumTolerance returns the allowed deviation for a reported total: 1% of it, at least MinSumTolerance.
func SumTolerance(total decimal.Decimal) decimal.Decimal {
	tol := total.Abs().Div(decimal.NewFromInt(100))
	if tol.LessThan(MinSumTolerance) {
		return MinSumTolerance
	}
	return tol
}

// ExpectedTotal reconstructs the total as items plus reported tax, or subtotal plus reported
// tax when no items were extracted. ok is false when neither items nor a subtotal are present.
func (r *ReceiptExtraction) ExpectedTotal() (decimal.Decimal, bool) {
	switch {
	case len(r.Items) > 0:
		return r.ItemsTotal().Add(r.reportedTax()), true
	case r.SubtotalAmount.Valid:
		return r.SubtotalAmount.Decimal.Add(r.reportedTax()), true
	default:
		return decimal.Zero, false
	}
}

// SumDeviation returns the relative deviation of the reconstructed total from the
// reported total. ok is false when the invariant cannot be evaluated.
func (r *ReceiptExtraction) SumDeviation() (float64, bool) {
	if !r.TotalAmount.Valid {
		return 0, false
	}
	expected, ok := r.ExpectedTotal()
	if !ok {
		return 0, false
	}
	diff := expected.Sub(r.TotalAmount.Decimal).Abs()
	if r.TotalAmount.Decimal.IsZero() {
		if diff.IsZero() {
			return 0, true
		}
		return 1, true
	}
	dev, _ := diff.Div(r.TotalAmount.Decimal.Abs()).Float64()
	return dev, true
}

// Reconciles reports whether the total matches the reconstructed total within SumTolerance.
func (r *ReceiptExtraction) Reconciles() bool {
	if !r.TotalAmount.Valid {
		return false
	}
	expected, ok := r.ExpectedTotal()
	if !ok {
		return false
	}
	return expected.Sub(r.TotalAmount.Decimal).Abs().LessThanOrEqual(SumTolerance(r.TotalAmount.Decimal))
}

// Correction is a user-supplied ground-truth label for a previously categorized input.
// Corrections are append-only.
type Correction struct {
	ID              uuid.UUID           `json:"id"`
	OriginalInput   CategorizationInput `json:"original_input"`
	CorrectCategory Category            `json:"correct_category"`
	SubmittedAt     time.Time           `json:"submitted_at"`
}

// Expense is a persisted expense document.
type Expense struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Source       ExpenseSource   `db:"source" json:"source"`
	MerchantName string          `db:"merchant_name" json:"merchant_name"`
	Description  string          `db:"description" json:"description"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Currency     string          `db:"currency" json:"currency"`
	Category     Category        `db:"category" json:"category"`
	Confidence   *float64        `db:"confidence" json:"confidence,omitempty"`
	ExpenseDate  time.Time       `db:"expense_date" json:"expense_date"`
	Extraction   json.RawMessage `db:"extraction" json:"extraction,omitempty"`
	ReceiptKey   string          `db:"receipt_key" json:"receipt_key,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// ExpenseFilter narrows expense listings to a user and an inclusive date range.
type ExpenseFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}

// CategoryTotal aggregates spending for one category.
type CategoryTotal struct {
	Category Category        `db:"category" json:"category"`
	Total    decimal.Decimal `db:"total" json:"total"`
	Count    int             `db:"count" json:"count"`
}

// Health reports the readiness of the categorization engine.
type Health struct {
	Status                 HealthStatus `json:"status"`
	ModelLoaded            bool         `json:"model_loaded"`
	VisionServiceReachable bool         `json:"vision_service_reachable"`
	CorrectionStoreOK      bool         `json:"correction_store_ok"`
	CorrectionsCount       int          `json:"corrections_count"`
	CategoriesCount        int          `json:"categories_count"`
	ModelName              string       `json:"model_name,omitempty"`
}
