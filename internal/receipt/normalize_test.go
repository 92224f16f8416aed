package receipt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/taxonomy"
)

func testRegistry(t *testing.T) *taxonomy.Registry {
	t.Helper()
	r, err := taxonomy.New([]string{
		"Food & Dining", "Groceries", "Transportation", "Shopping", "Healthcare", "Other",
	}, "Other")
	require.NoError(t, err)
	return r
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       interface{}
		want     string
		currency string
		ok       bool
	}{
		{json.Number("14.53"), "14.53", "", true},
		{"$14.53", "14.53", "USD", true},
		{"₹1,234.50", "1234.5", "INR", true},
		{"1.234,50", "1234.5", "", true},
		{"12,50", "12.5", "", true},
		{"1,234", "1234", "", true},
		{"(5.00)", "-5", "", true},
		{"14.53 EUR", "14.53", "EUR", true},
		{"Rs. 200", "200", "INR", true},
		{"", "0", "", false},
		{"n/a", "0", "", false},
		{nil, "0", "", false},
	}
	for _, tt := range tests {
		d, cur, ok := parseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, "input %v", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, d.String(), "input %v", tt.in)
		}
		assert.Equal(t, tt.currency, cur, "input %v", tt.in)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-15", "2024-01-15", true},
		{"15/01/2024", "2024-01-15", true},
		{"01/15/2024", "2024-01-15", true},
		{"15-01-2024", "2024-01-15", true},
		{"20240115", "2024-01-15", true},
		{"Jan 15, 2024", "2024-01-15", true},
		{"15 January 2024", "2024-01-15", true},
		{"yesterday", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			require.NotNil(t, got, tt.in)
			assert.Equal(t, tt.want, *got, tt.in)
		} else {
			assert.Nil(t, got, tt.in)
		}
	}
}

func TestNormalizeTime(t *testing.T) {
	got, ok := normalizeTime("2:30 PM")
	require.True(t, ok)
	assert.Equal(t, "14:30", *got)

	got, ok = normalizeTime("09:05:59")
	require.True(t, ok)
	assert.Equal(t, "09:05", *got)

	got, ok = normalizeTime("noon-ish")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestNormalizeCurrency(t *testing.T) {
	for in, want := range map[string]string{"$": "USD", "₹": "INR", "€": "EUR", "£": "GBP", "usd": "USD", " inr ": "INR"} {
		got, ok := normalizeCurrency(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	got, ok := normalizeCurrency("dollars")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestKeywordCategory(t *testing.T) {
	reg := testRegistry(t)

	c, ok := keywordCategory(reg, "City Supermarket")
	assert.True(t, ok)
	assert.Equal(t, domain.Category("Groceries"), c)

	c, ok = keywordCategory(reg, "Shell petrol pump")
	assert.True(t, ok)
	assert.Equal(t, domain.Category("Transportation"), c)

	// "Travel" is not in this registry.
	_, ok = keywordCategory(reg, "Grand hotel")
	assert.False(t, ok)

	// Whole words only: "barcode" is not a bar.
	_, ok = keywordCategory(reg, "barcode scanner")
	assert.False(t, ok)
}

func TestNormalizer_ItemsAndDerivedTotals(t *testing.T) {
	n := &normalizer{registry: testRegistry(t)}
	fields, err := decodeObject(`{
		"merchant_name": "Corner Cafe",
		"total_amount": "$14.53",
		"subtotal_amount": 13.45,
		"currency": null,
		"date": "15/01/2024",
		"category": "food & dining",
		"items": [
			{"name": "Latte", "quantity": 1, "unit_price": 5.45},
			{"name": "", "total_price": 3},
			{"name": "Sandwich", "quantity": 0, "total_price": "8.00", "category": "Unknown"}
		]
	}`)
	require.NoError(t, err)

	ext := n.normalize(fields)

	assert.Equal(t, "USD", ext.Currency)
	assert.Equal(t, "2024-01-15", *ext.Date)
	assert.Equal(t, domain.Category("Food & Dining"), ext.Category)
	require.Len(t, ext.Items, 2)
	assert.Equal(t, "5.45", ext.Items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "1", ext.Items[1].Quantity.String())
	assert.Equal(t, "8.00", ext.Items[1].UnitPrice.StringFixed(2))
	assert.Empty(t, ext.Items[1].Category)

	require.NotNil(t, ext.TaxDetails)
	assert.True(t, ext.TaxDetails.Derived)
	assert.Equal(t, "1.08", ext.TaxDetails.Amount.Decimal.StringFixed(2))

	require.Len(t, n.discrepancies, 1)
	assert.Equal(t, "normalize.quantity", n.discrepancies[0].RuleKey)
}

func TestNormalizer_UnparseableDateAndCurrency(t *testing.T) {
	n := &normalizer{registry: testRegistry(t)}
	ext := n.normalize(map[string]interface{}{
		"merchant_name": "Shop",
		"date":          "sometime last week",
		"currency":      "zorkmids",
		"total_amount":  json.Number("10"),
	})

	assert.Nil(t, ext.Date)
	assert.Empty(t, ext.Currency)
	keys := []string{}
	for _, d := range n.discrepancies {
		assert.Equal(t, domain.ValidationSeverityWarning, d.Severity)
		keys = append(keys, d.RuleKey)
	}
	assert.ElementsMatch(t, []string{"normalize.date", "normalize.currency"}, keys)
}

func TestDerivedConfidence(t *testing.T) {
	n := &normalizer{registry: testRegistry(t)}
	full := n.normalize(map[string]interface{}{
		"merchant_name":    "Cafe",
		"merchant_address": "1 Main St",
		"date":             "2024-01-15",
		"payment_method":   "Card",
		"receipt_number":   "R-1",
		"total_amount":     json.Number("14.53"),
		"tax_details":      map[string]interface{}{"tax_amount": json.Number("1.08")},
		"items": []interface{}{
			map[string]interface{}{"name": "Lunch", "quantity": json.Number("1"), "total_price": json.Number("13.45")},
		},
	})
	assert.Equal(t, 1.0, derivedConfidence(full))

	sparse := n.normalize(map[string]interface{}{"merchant_name": "Cafe", "total_amount": json.Number("10")})
	// Six optional fields missing and the sum cannot be checked.
	assert.InDelta(t, 0.3, derivedConfidence(sparse), 1e-9)
}

func TestSelfReportedConfidence(t *testing.T) {
	c, ok := selfReportedConfidence(map[string]interface{}{"confidence_score": json.Number("0.92")})
	assert.True(t, ok)
	assert.Equal(t, 0.92, c)

	c, ok = selfReportedConfidence(map[string]interface{}{"confidence_score": json.Number("7")})
	assert.True(t, ok)
	assert.Equal(t, 1.0, c)

	c, ok = selfReportedConfidence(map[string]interface{}{"confidence_score": "85"})
	assert.True(t, ok)
	assert.InDelta(t, 0.85, c, 1e-9)

	_, ok = selfReportedConfidence(map[string]interface{}{})
	assert.False(t, ok)
}
