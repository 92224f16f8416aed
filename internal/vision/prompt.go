package vision

import (
	"strings"

	"ledgerlens/internal/domain"
)

// BuildReceiptPrompt returns the receipt extraction instruction. The category
// list is embedded so the model picks labels from the active taxonomy.
func BuildReceiptPrompt(categories []domain.Category) string {
	labels := make([]string, len(categories))
	for i, c := range categories {
		labels[i] = `"` + string(c) + `"`
	}

	return `You are a receipt data extraction assistant. Analyze the provided receipt or bill image and extract the expense details.

Return ONLY a JSON object with no markdown formatting, no code fences and no explanation. Use this exact structure:

{
  "confidence_score": 0.9,
  "total_amount": 150.00,
  "subtotal_amount": 127.12,
  "currency": "INR",
  "merchant_name": "Store Name",
  "merchant_address": "Address if visible",
  "date": "2024-01-15",
  "time": "14:30",
  "category": "Food & Dining",
  "payment_method": "Card",
  "items": [
    {
      "name": "Item name",
      "quantity": 1,
      "unit_price": 50.00,
      "total_price": 50.00,
      "category": "Food & Dining"
    }
  ],
  "tax_details": {
    "tax_amount": 22.88,
    "tax_rate": 18.0,
    "tax_type": "GST"
  },
  "receipt_number": "INV123",
  "notes": ""
}

RULES:
1. Amounts are plain numbers with no currency symbols or thousands separators.
2. subtotal_amount is the sum of item prices before tax.
3. Extract the tax amount separately. subtotal_amount + tax_amount must equal total_amount.
4. currency is a 3-letter ISO 4217 code.
5. date uses YYYY-MM-DD and time uses HH:MM. Use null when not visible.
6. category and every item category must be one of: ` + strings.Join(labels, ", ") + `.
7. Use null for any field that is not visible or unclear.
8. For receipts with more than 10 items, include the 5 most expensive items and keep the totals exact.
9. confidence_score is your confidence in the whole extraction, between 0.0 and 1.0.`
}
