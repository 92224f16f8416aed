package validator_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/validator"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func strPtr(s string) *string { return &s }

func reconcilingReceipt(total string) *domain.ReceiptExtraction {
	return &domain.ReceiptExtraction{
		MerchantName: "Corner Cafe",
		Date:         strPtr("2024-01-15"),
		Currency:     "USD",
		TotalAmount:  nd(total),
		TaxDetails:   &domain.TaxDetails{Amount: nd("1.08")},
		Items: []domain.LineItem{
			{Name: "Latte", Quantity: dec("1"), UnitPrice: dec("5.45"), TotalPrice: dec("5.45")},
			{Name: "Sandwich", Quantity: dec("1"), UnitPrice: dec("8.00"), TotalPrice: dec("8.00")},
		},
	}
}

func TestEngine_ReconcilingReceiptPasses(t *testing.T) {
	engine := validator.NewEngine(validator.NewBuiltinRegistry())

	rep := engine.Validate(context.Background(), reconcilingReceipt("14.53"))

	assert.False(t, rep.HasError)
	assert.False(t, rep.ReconciliationFailed)
	assert.Empty(t, rep.Discrepancies)
}

func TestEngine_TotalMismatchFlagged(t *testing.T) {
	engine := validator.NewEngine(validator.NewBuiltinRegistry())

	rep := engine.Validate(context.Background(), reconcilingReceipt("20.00"))

	assert.True(t, rep.HasError)
	assert.True(t, rep.ReconciliationFailed)
	if assert.Len(t, rep.Discrepancies, 1) {
		d := rep.Discrepancies[0]
		assert.Equal(t, "math.total_reconciles", d.RuleKey)
		assert.Equal(t, "14.53", d.Expected)
		assert.Equal(t, "20.00", d.Actual)
		assert.Equal(t, domain.ValidationSeverityError, d.Severity)
	}
}

func TestEngine_WithinTolerance(t *testing.T) {
	engine := validator.NewEngine(validator.NewBuiltinRegistry())

	// 1% of 14.60 is 0.146, the deviation is 0.07.
	rep := engine.Validate(context.Background(), reconcilingReceipt("14.60"))
	assert.False(t, rep.ReconciliationFailed)
}

func TestEngine_WarningsDoNotSetError(t *testing.T) {
	engine := validator.NewEngine(validator.NewBuiltinRegistry())
	r := reconcilingReceipt("14.53")
	r.Currency = "XYZ"
	r.Date = nil

	rep := engine.Validate(context.Background(), r)

	assert.False(t, rep.HasError)
	keys := make([]string, 0, len(rep.Discrepancies))
	for _, d := range rep.Discrepancies {
		assert.Equal(t, domain.ValidationSeverityWarning, d.Severity)
		keys = append(keys, d.RuleKey)
	}
	assert.ElementsMatch(t, []string{"required.date", "format.currency"}, keys)
}

func TestEngine_NoItemsNoSubtotalCannotReconcile(t *testing.T) {
	engine := validator.NewEngine(validator.NewBuiltinRegistry())
	r := reconcilingReceipt("14.53")
	r.Items = nil

	rep := engine.Validate(context.Background(), r)

	assert.True(t, rep.ReconciliationFailed)
}

func TestEngine_SubtotalUsedWithoutItems(t *testing.T) {
	engine := validator.NewEngine(validator.NewBuiltinRegistry())
	r := reconcilingReceipt("14.53")
	r.Items = nil
	r.SubtotalAmount = nd("13.45")

	rep := engine.Validate(context.Background(), r)

	assert.False(t, rep.HasError)
}

func TestEngine_DerivedTaxIgnoredBySumCheck(t *testing.T) {
	engine := validator.NewEngine(validator.NewBuiltinRegistry())
	r := reconcilingReceipt("200.00")
	r.SubtotalAmount = nd("13.45")
	r.TaxDetails = &domain.TaxDetails{Amount: nd("186.55"), Derived: true}

	rep := engine.Validate(context.Background(), r)

	assert.True(t, rep.ReconciliationFailed)
	assert.False(t, r.Reconciles())
}

func TestRegistry_OrderAndReplace(t *testing.T) {
	reg := validator.NewBuiltinRegistry()
	all := reg.All()
	assert.Equal(t, "required.total_amount", all[0].RuleKey())
	assert.NotNil(t, reg.Get("math.total_reconciles"))
	assert.Nil(t, reg.Get("missing"))

	n := len(all)
	reg.Register(reg.Get("format.date"))
	assert.Len(t, reg.All(), n)
}
