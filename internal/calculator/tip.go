package calculator

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/mmynk/receiptsplit/internal/money"
)

// Matches "20% tip", "18 percent gratuity", "tip of 15%", "tip: 20 %".
var tipPercentPattern = regexp.MustCompile(
	`(?i)(\d+(?:\.\d+)?)\s*(?:%|percent)\s*(?:tip|gratuity)` +
		`|(?:tip|gratuity)\s*(?:of|at|is|=|:)?\s*(\d+(?:\.\d+)?)\s*(?:%|percent)`,
)

// TipPercentFromText extracts the first tip percentage stated in text.
func TipPercentFromText(text string) (decimal.Decimal, bool) {
	m := tipPercentPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return pct, true
}

// ResolveTip applies the tip precedence: an explicit receipt tip wins, then a
// stated percentage of subtotal, otherwise zero.
func ResolveTip(agg ReceiptAggregate, subtotal decimal.Decimal) (decimal.Decimal, TipSource) {
	if agg.Tip != nil {
		return money.Round(*agg.Tip), TipFromReceipt
	}
	if agg.TipPercent != nil {
		return money.Percent(subtotal, *agg.TipPercent), TipFromInstruction
	}
	return decimal.Zero, TipNone
}
