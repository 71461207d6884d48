package models

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/receiptsplit/internal/calculator"
)

// Receipt represents one shared bill and the amounts people owe on it.
type Receipt struct {
	// ID is the unique identifier for the receipt (UUID format).
	ID string `json:"id"`

	// Name is the display name (e.g., "Dinner at Nopa").
	Name string `json:"name"`

	// Date is the calendar date of the bill in YYYY-MM-DD form.
	Date string `json:"date"`

	// ImageURL is the public URL of the uploaded receipt image, if any.
	ImageURL string `json:"image_url,omitempty"`

	// Notes is free text. Split explanations are appended here.
	Notes string `json:"notes,omitempty"`

	// Items are the bill items, in insertion order.
	Items []BillItem `json:"bill_items,omitempty"`

	// PublicLinkID is set once a share link has been generated.
	PublicLinkID string `json:"public_link_id,omitempty"`

	// CreatedAt is the Unix timestamp when the receipt was created.
	CreatedAt int64 `json:"created_at"`
}

// Total sums every bill item.
func (r *Receipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// Summary aggregates the bill items for display.
func (r *Receipt) Summary() calculator.ReceiptSummary {
	items := make([]calculator.ItemForSummary, len(r.Items))
	for i, item := range r.Items {
		items[i] = calculator.ItemForSummary{PersonName: item.PersonName, Amount: item.Amount, Paid: item.Paid}
	}
	return calculator.Summarize(items)
}

// BillItem is an amount owed by one person.
type BillItem struct {
	// ID is the unique identifier for the item (UUID format).
	ID string `json:"id"`

	// ReceiptID is the receipt this item belongs to.
	ReceiptID string `json:"receipt_id"`

	// PersonName is who owes the amount.
	PersonName string `json:"person_name"`

	// Amount is the total owed, tax and tip included.
	Amount decimal.Decimal `json:"amount"`

	// Paid is toggled once the person has settled up.
	Paid bool `json:"paid"`

	// Breakdown is present when the item came from a computed split.
	Breakdown *Breakdown `json:"breakdown,omitempty"`

	// CreatedAt is the Unix timestamp when the item was inserted.
	CreatedAt int64 `json:"created_at"`
}

// Breakdown records how a BillItem amount was reached.
type Breakdown struct {
	Items       []calculator.LineItem   `json:"items"`
	Subtotal    decimal.Decimal         `json:"subtotal"`
	TaxShare    decimal.Decimal         `json:"tax_share"`
	FeeShare    decimal.Decimal         `json:"fee_share"`
	TipShare    decimal.Decimal         `json:"tip_share"`
	SharedItems []calculator.SharedItem `json:"shared_items,omitempty"`
}

// BreakdownOf converts a computed per-person breakdown into its stored form.
// It returns nil for people whose result carried no breakdown.
func BreakdownOf(p calculator.PersonBreakdown) *Breakdown {
	if p.Unitemized {
		return nil
	}
	b := &Breakdown{
		Items:    append([]calculator.LineItem{}, p.Items...),
		Subtotal: p.Subtotal,
		TaxShare: p.TaxShare,
		FeeShare: p.FeeShare,
		TipShare: p.TipShare,
	}
	for _, s := range p.SharedItems {
		s.SplitWith = append([]string(nil), s.SplitWith...)
		b.SharedItems = append(b.SharedItems, s)
	}
	return b
}

// PublicLink grants read-only access to one receipt without logging in.
type PublicLink struct {
	// ID is the opaque link identifier used in the share URL.
	ID string `json:"id"`

	// ReceiptID is the receipt the link exposes.
	ReceiptID string `json:"receipt_id"`

	// CreatedAt is the Unix timestamp when the link was generated.
	CreatedAt int64 `json:"created_at"`
}

// SplitLine is one person's entry in a computed split as it crosses the wire:
// the analyze endpoint response, the model output and split imports.
type SplitLine struct {
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Breakdown *Breakdown      `json:"breakdown,omitempty"`
}

// SplitLines flattens a result into wire lines, one per person.
func SplitLines(result *calculator.BillSplitResult) []SplitLine {
	lines := make([]SplitLine, len(result.People))
	for i, p := range result.People {
		lines[i] = SplitLine{Name: p.Name, Amount: p.Total, Breakdown: BreakdownOf(p)}
	}
	return lines
}

// ResultFromLines rebuilds a result from wire lines. Lines without a
// breakdown become unitemized people carrying only their total.
func ResultFromLines(lines []SplitLine, explanation string) *calculator.BillSplitResult {
	result := &calculator.BillSplitResult{
		People:      make([]calculator.PersonBreakdown, len(lines)),
		Explanation: explanation,
	}
	for i, line := range lines {
		p := calculator.PersonBreakdown{Name: line.Name, Total: line.Amount}
		if b := line.Breakdown; b != nil {
			p.Items = append([]calculator.LineItem{}, b.Items...)
			p.SharedItems = append([]calculator.SharedItem{}, b.SharedItems...)
			p.Subtotal = b.Subtotal
			p.TaxShare = b.TaxShare
			p.FeeShare = b.FeeShare
			p.TipShare = b.TipShare
		} else {
			p.Unitemized = true
		}
		result.People[i] = p
	}
	return result
}
