package receipt_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/validator/receipt"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func failed(results []receipt.ValidationResult) []receipt.ValidationResult {
	var out []receipt.ValidationResult
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func findValidator(key string) *receipt.BuiltinValidator {
	for _, v := range receipt.AllBuiltinValidators() {
		if v.RuleKey() == key {
			return v
		}
	}
	return nil
}

func TestRequired_TotalAmountMissing(t *testing.T) {
	v := findValidator("required.total_amount")
	res := v.Validate(context.Background(), &domain.ReceiptExtraction{})
	assert.Len(t, failed(res), 1)
	assert.Equal(t, domain.ValidationSeverityError, v.Severity())
}

func TestLogical_NegativeAmounts(t *testing.T) {
	v := findValidator("logic.non_negative_amounts")
	data := &domain.ReceiptExtraction{
		TotalAmount: nd("-5.00"),
		Items:       []domain.LineItem{{Name: "Refund", Quantity: dec("1"), UnitPrice: dec("2"), TotalPrice: dec("-2")}},
	}
	res := failed(v.Validate(context.Background(), data))
	paths := []string{res[0].FieldPath, res[1].FieldPath}
	assert.ElementsMatch(t, []string{"total_amount", "items[0].total_price"}, paths)
}

func TestLogical_ItemQuantity(t *testing.T) {
	v := findValidator("logic.item_quantity_positive")
	data := &domain.ReceiptExtraction{Items: []domain.LineItem{
		{Name: "a", Quantity: dec("0.5")},
		{Name: "b", Quantity: dec("0")},
	}}
	res := failed(v.Validate(context.Background(), data))
	if assert.Len(t, res, 1) {
		assert.Equal(t, "items[1].quantity", res[0].FieldPath)
	}
}

func TestLogical_TaxWithinTotal(t *testing.T) {
	v := findValidator("logic.tax_within_total")
	data := &domain.ReceiptExtraction{TotalAmount: nd("10"), TaxDetails: &domain.TaxDetails{Amount: nd("12")}}
	assert.Len(t, failed(v.Validate(context.Background(), data)), 1)
}

func TestLogical_FutureDate(t *testing.T) {
	v := findValidator("logic.date_not_future")
	future := time.Now().UTC().AddDate(0, 1, 0).Format(receipt.DateLayout)
	assert.Len(t, failed(v.Validate(context.Background(), &domain.ReceiptExtraction{Date: &future})), 1)

	past := "2023-06-01"
	assert.Empty(t, failed(v.Validate(context.Background(), &domain.ReceiptExtraction{Date: &past})))
}

func TestFormat_Time(t *testing.T) {
	v := findValidator("format.time")
	bad := "25:61"
	good := "14:30"
	assert.Len(t, failed(v.Validate(context.Background(), &domain.ReceiptExtraction{Time: &bad})), 1)
	assert.Empty(t, failed(v.Validate(context.Background(), &domain.ReceiptExtraction{Time: &good})))
}

func TestMath_ItemTotalPrice(t *testing.T) {
	v := findValidator("math.item.total_price")
	data := &domain.ReceiptExtraction{Items: []domain.LineItem{
		{Name: "ok", Quantity: dec("2"), UnitPrice: dec("1.50"), TotalPrice: dec("3.00")},
		{Name: "off", Quantity: dec("3"), UnitPrice: dec("1.00"), TotalPrice: dec("5.00")},
	}}
	res := failed(v.Validate(context.Background(), data))
	if assert.Len(t, res, 1) {
		assert.Equal(t, "items[1].total_price", res[0].FieldPath)
		assert.Equal(t, "3.00", res[0].ExpectedValue)
	}
	assert.Equal(t, domain.ValidationSeverityWarning, v.Severity())
}

func TestMath_TotalReconcilesIsCritical(t *testing.T) {
	v := findValidator("math.total_reconciles")
	assert.True(t, v.ReconciliationCritical())
	assert.Equal(t, domain.ValidationSeverityError, v.Severity())
}
