package receipt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/taxonomy"
	rules "ledgerlens/internal/validator/receipt"
)

// Day-first layouts are tried before month-first ones.
var dateLayouts = []string{
	rules.DateLayout,
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	"20060102",
	"02/01/06",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM", "3:04 pm", "3:04pm"}

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"₹", "INR"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"$", "USD"},
}

var amountJunk = regexp.MustCompile(`[^0-9.,\-()]`)

// parseAmount reads a monetary value from a JSON number or a loosely formatted string such
// as "$1,234.50", "1.234,50", "(5.00)" or "14.53 USD". currency is a code inferred from a
// symbol or trailing code in the string, when any.
func parseAmount(v interface{}) (amount decimal.Decimal, currency string, ok bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, "", err == nil
	case float64:
		return decimal.NewFromFloat(t), "", true
	case int:
		return decimal.NewFromInt(int64(t)), "", true
	case string:
		return parseAmountString(t)
	default:
		return decimal.Zero, "", false
	}
}

func parseAmountString(raw string) (decimal.Decimal, string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, "", false
	}
	var currency string
	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.symbol) {
			currency = cs.code
			s = strings.ReplaceAll(s, cs.symbol, "")
			break
		}
	}
	if currency == "" {
		for _, f := range strings.Fields(strings.ToUpper(s)) {
			if rules.KnownCurrencies[f] {
				currency = f
				break
			}
		}
	}

	s = amountJunk.ReplaceAllString(s, "")
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,50
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, currency, false
	}
	if negative {
		d = d.Neg()
	}
	return d, currency, true
}

// normalizeDate converts a date in any known layout to YYYY-MM-DD. Unparseable dates yield nil.
func normalizeDate(raw string) (*string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			out := t.Format(rules.DateLayout)
			return &out, true
		}
	}
	return nil, false
}

// normalizeTime converts a time to 24-hour HH:MM. Unparseable times yield nil.
func normalizeTime(raw string) (*string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			out := t.Format("15:04")
			return &out, true
		}
	}
	return nil, false
}

// normalizeCurrency maps symbols and lower-case codes to an ISO 4217 code. Unknown values
// yield an empty code and ok=false.
func normalizeCurrency(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", true
	}
	for _, cs := range currencySymbols {
		if s == cs.symbol {
			return cs.code, true
		}
	}
	code := strings.ToUpper(s)
	if rules.KnownCurrencies[code] {
		return code, true
	}
	return "", false
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// keywordCategories maps merchant and item words to taxonomy labels. More specific
// keywords come first.
var keywordCategories = []struct {
	keyword  string
	category string
}{
	{"fast food", "Food & Dining"},
	{"restaurant", "Food & Dining"},
	{"cafe", "Food & Dining"},
	{"coffee", "Food & Dining"},
	{"bakery", "Food & Dining"},
	{"pizza", "Food & Dining"},
	{"bar", "Food & Dining"},
	{"supermarket", "Groceries"},
	{"grocery", "Groceries"},
	{"market", "Groceries"},
	{"petrol", "Transportation"},
	{"fuel", "Transportation"},
	{"gas", "Transportation"},
	{"taxi", "Transportation"},
	{"uber", "Transportation"},
	{"parking", "Transportation"},
	{"pharmacy", "Healthcare"},
	{"hospital", "Healthcare"},
	{"clinic", "Healthcare"},
	{"doctor", "Healthcare"},
	{"medical", "Healthcare"},
	{"cinema", "Entertainment"},
	{"movie", "Entertainment"},
	{"theater", "Entertainment"},
	{"game", "Entertainment"},
	{"hotel", "Travel"},
	{"airline", "Travel"},
	{"flight", "Travel"},
	{"booking", "Travel"},
	{"utilities", "Bills & Utilities"},
	{"electric", "Bills & Utilities"},
	{"water", "Bills & Utilities"},
	{"internet", "Bills & Utilities"},
	{"phone", "Bills & Utilities"},
	{"shopping", "Shopping"},
	{"mall", "Shopping"},
	{"retail", "Shopping"},
	{"store", "Shopping"},
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// keywordCategory returns the first registry category whose keyword appears as whole
// words in text.
func keywordCategory(registry *taxonomy.Registry, text string) (domain.Category, bool) {
	words := " " + strings.Join(wordPattern.FindAllString(strings.ToLower(text), -1), " ") + " "
	for _, kc := range keywordCategories {
		if strings.Contains(words, " "+kc.keyword+" ") {
			if c, ok := registry.Lookup(kc.category); ok {
				return c, true
			}
		}
	}
	return "", false
}

// normalizer converts the untrusted field map into a ReceiptExtraction and records the
// discrepancies it finds on the way.
type normalizer struct {
	registry      *taxonomy.Registry
	discrepancies []domain.Discrepancy
}

func (n *normalizer) warn(ruleKey, fieldPath, actual, message string) {
	n.discrepancies = append(n.discrepancies, domain.Discrepancy{
		RuleKey:   ruleKey,
		FieldPath: fieldPath,
		Actual:    actual,
		Message:   message,
		Severity:  domain.ValidationSeverityWarning,
	})
}

func (n *normalizer) amount(fields map[string]interface{}, key, fieldPath string) (decimal.NullDecimal, string) {
	v, present := fields[key]
	if !present || v == nil {
		return decimal.NullDecimal{}, ""
	}
	d, cur, ok := parseAmount(v)
	if !ok {
		if s := stringValue(v); s != "" {
			n.warn("normalize.amount", fieldPath, s, fmt.Sprintf("%s could not be read as an amount", fieldPath))
		}
		return decimal.NullDecimal{}, cur
	}
	return decimal.NewNullDecimal(d), cur
}

func (n *normalizer) normalize(fields map[string]interface{}) *domain.ReceiptExtraction {
	ext := &domain.ReceiptExtraction{
		MerchantName:    stringValue(fields["merchant_name"]),
		MerchantAddress: stringValue(fields["merchant_address"]),
		PaymentMethod:   stringValue(fields["payment_method"]),
		ReceiptNumber:   stringValue(fields["receipt_number"]),
		Notes:           stringValue(fields["notes"]),
		Items:           []domain.LineItem{},
	}

	var symbolCurrency string
	ext.TotalAmount, symbolCurrency = n.amount(fields, "total_amount", "total_amount")
	ext.SubtotalAmount, _ = n.amount(fields, "subtotal_amount", "subtotal_amount")

	if raw := stringValue(fields["date"]); raw != "" {
		d, ok := normalizeDate(raw)
		if !ok {
			n.warn("normalize.date", "date", raw, "date could not be parsed and was dropped")
		}
		ext.Date = d
	}
	if raw := stringValue(fields["time"]); raw != "" {
		t, ok := normalizeTime(raw)
		if !ok {
			n.warn("normalize.time", "time", raw, "time could not be parsed and was dropped")
		}
		ext.Time = t
	}

	rawCurrency := stringValue(fields["currency"])
	cur, ok := normalizeCurrency(rawCurrency)
	if !ok {
		n.warn("normalize.currency", "currency", rawCurrency, "currency is not a known ISO 4217 code")
	}
	if cur == "" {
		cur = symbolCurrency
	}
	ext.Currency = cur

	if td, isMap := fields["tax_details"].(map[string]interface{}); isMap {
		tax := &domain.TaxDetails{Type: stringValue(td["tax_type"])}
		tax.Amount, _ = n.amount(td, "tax_amount", "tax_details.amount")
		tax.Rate, _ = n.amount(td, "tax_rate", "tax_details.rate")
		if tax.Amount.Valid || tax.Rate.Valid || tax.Type != "" {
			ext.TaxDetails = tax
		}
	}

	if rawItems, isList := fields["items"].([]interface{}); isList {
		for i, ri := range rawItems {
			m, isMap := ri.(map[string]interface{})
			if !isMap {
				continue
			}
			if item, ok := n.item(i, m); ok {
				ext.Items = append(ext.Items, item)
			}
		}
	}

	n.deriveTotals(ext)

	if raw := stringValue(fields["category"]); raw != "" {
		if c, ok := n.registry.Lookup(raw); ok {
			ext.Category = c
		}
	}
	return ext
}

func (n *normalizer) item(i int, m map[string]interface{}) (domain.LineItem, bool) {
	name := stringValue(m["name"])
	if name == "" {
		return domain.LineItem{}, false
	}
	item := domain.LineItem{Name: name, Quantity: decimal.NewFromInt(1)}

	if q, _, ok := parseAmount(m["quantity"]); ok {
		if q.IsPositive() {
			item.Quantity = q
		} else {
			n.warn("normalize.quantity", fmt.Sprintf("items[%d].quantity", i), q.String(), "non-positive quantity replaced with 1")
		}
	}
	if up, _, ok := parseAmount(m["unit_price"]); ok {
		item.UnitPrice = up
	}
	tp, _, ok := parseAmount(m["total_price"])
	switch {
	case ok && !tp.IsZero():
		item.TotalPrice = tp
	case !item.UnitPrice.IsZero():
		item.TotalPrice = item.UnitPrice.Mul(item.Quantity)
	}
	if item.UnitPrice.IsZero() && !item.TotalPrice.IsZero() && item.Quantity.IsPositive() {
		item.UnitPrice = item.TotalPrice.Div(item.Quantity).Round(2)
	}

	if raw := stringValue(m["category"]); raw != "" {
		if c, ok := n.registry.Lookup(raw); ok {
			item.Category = c
		}
	}
	return item, true
}

// deriveTotals fills the subtotal from items and the tax from a reported subtotal. A derived
// tax is for display only; ExpectedTotal ignores it.
func (n *normalizer) deriveTotals(ext *domain.ReceiptExtraction) {
	subtotalReported := ext.SubtotalAmount.Valid
	if !subtotalReported && len(ext.Items) > 0 {
		ext.SubtotalAmount = decimal.NewNullDecimal(ext.ItemsTotal())
	}
	hasTax := ext.TaxDetails != nil && ext.TaxDetails.Amount.Valid
	if hasTax || !subtotalReported || len(ext.Items) == 0 || !ext.TotalAmount.Valid {
		return
	}
	diff := ext.TotalAmount.Decimal.Sub(ext.SubtotalAmount.Decimal)
	if diff.IsNegative() {
		return
	}
	if ext.TaxDetails == nil {
		ext.TaxDetails = &domain.TaxDetails{}
	}
	ext.TaxDetails.Amount = decimal.NewNullDecimal(diff)
	ext.TaxDetails.Derived = true
}
