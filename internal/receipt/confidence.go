package receipt

import (
	"encoding/json"
	"math"
	"strings"

	"ledgerlens/internal/domain"
)

// missingFieldPenalty is subtracted per missing optional field when the model does not
// report its own confidence.
const missingFieldPenalty = 0.1

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// selfReportedConfidence reads confidence_score from the model output.
func selfReportedConfidence(fields map[string]interface{}) (float64, bool) {
	v, ok := fields["confidence_score"]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return clamp01(f), true
	case string:
		d, _, ok := parseAmountString(t)
		if !ok {
			return 0, false
		}
		f, _ := d.Float64()
		if f > 1 && f <= 100 {
			f /= 100
		}
		return clamp01(f), true
	default:
		return 0, false
	}
}

// derivedConfidence starts at 1, loses missingFieldPenalty per missing optional field and
// the relative deviation of the sum check. A receipt whose sum cannot be checked loses a
// further missingFieldPenalty.
func derivedConfidence(ext *domain.ReceiptExtraction) float64 {
	score := 1.0
	missing := []bool{
		strings.TrimSpace(ext.MerchantAddress) == "",
		ext.Date == nil,
		ext.TaxDetails == nil || !ext.TaxDetails.Amount.Valid || ext.TaxDetails.Derived,
		len(ext.Items) == 0,
		strings.TrimSpace(ext.PaymentMethod) == "",
		strings.TrimSpace(ext.ReceiptNumber) == "",
	}
	for _, m := range missing {
		if m {
			score -= missingFieldPenalty
		}
	}
	if dev, ok := ext.SumDeviation(); ok {
		score -= dev
	} else {
		score -= missingFieldPenalty
	}
	return clamp01(math.Round(score*100) / 100)
}
