package calculator

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/receiptsplit/internal/money"
)

// LineItem is a priced entry owned by exactly one person.
type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// NewLineItem rounds the amount to cents and rejects negatives.
func NewLineItem(description string, amount decimal.Decimal) (LineItem, error) {
	if amount.IsNegative() {
		return LineItem{}, &AllocationError{Kind: ErrNegativeAmount, Item: description}
	}
	return LineItem{Description: description, Amount: money.Round(amount)}, nil
}

// SharedItem is divided evenly among the people in SplitWith.
//
// On allocation input Amount is the full item price. Inside a PersonBreakdown
// it is that person's share and Price, when known, is the full item price.
type SharedItem struct {
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	SplitWith   []string         `json:"split_with"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

// FullPrice returns Price when recorded and Amount otherwise.
func (s SharedItem) FullPrice() decimal.Decimal {
	if s.Price != nil {
		return *s.Price
	}
	return s.Amount
}

// duplicates reports whether an exclusive item is the same order as this
// shared item: same description and same full price.
func (s SharedItem) duplicates(it LineItem) bool {
	return sameItem(it.Description, it.Amount, s.Description, s.FullPrice())
}

// NewSharedItem rounds the amount to cents, removes repeated names from
// splitWith and rejects negatives or an empty split.
func NewSharedItem(description string, amount decimal.Decimal, splitWith ...string) (SharedItem, error) {
	if amount.IsNegative() {
		return SharedItem{}, &AllocationError{Kind: ErrNegativeAmount, Item: description}
	}
	members := uniqueNames(splitWith)
	if len(members) == 0 {
		return SharedItem{}, &AllocationError{Kind: ErrEmptySplit, Item: description}
	}
	return SharedItem{Description: description, Amount: money.Round(amount), SplitWith: members}, nil
}

// Fee is a named surcharge distributed like tax.
type Fee struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// NewFee rounds the amount to cents and rejects negatives.
func NewFee(name string, amount decimal.Decimal) (Fee, error) {
	if amount.IsNegative() {
		return Fee{}, &AllocationError{Kind: ErrNegativeAmount, Item: name}
	}
	return Fee{Name: name, Amount: money.Round(amount)}, nil
}

// ReceiptAggregate holds the receipt-level figures that are allocated
// proportionally.
//
// Tip is set when the receipt itself shows a tip line. TipPercent is used only
// when Tip is nil; it usually comes from the free-text instruction.
type ReceiptAggregate struct {
	Subtotal   decimal.Decimal  `json:"subtotal"`
	Tax        decimal.Decimal  `json:"tax"`
	Fees       []Fee            `json:"fees,omitempty"`
	Tip        *decimal.Decimal `json:"tip,omitempty"`
	TipPercent *decimal.Decimal `json:"tip_percent,omitempty"`
}

// NewReceiptAggregate builds an aggregate, rounding and checking each figure.
func NewReceiptAggregate(subtotal, tax decimal.Decimal, fees []Fee, tip *decimal.Decimal) (ReceiptAggregate, error) {
	agg := ReceiptAggregate{Subtotal: subtotal, Tax: tax, Fees: fees, Tip: tip}
	if err := agg.check(); err != nil {
		return ReceiptAggregate{}, err
	}
	return agg.normalized(), nil
}

// FeeTotal sums every fee entry.
func (a ReceiptAggregate) FeeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, f := range a.Fees {
		total = total.Add(f.Amount)
	}
	return total
}

// WithInstruction fills TipPercent from a tip percentage stated in text,
// unless the aggregate already carries a tip or a percentage.
func (a ReceiptAggregate) WithInstruction(text string) ReceiptAggregate {
	if a.Tip != nil || a.TipPercent != nil {
		return a
	}
	if pct, ok := TipPercentFromText(text); ok {
		a.TipPercent = &pct
	}
	return a
}

func (a ReceiptAggregate) check() error {
	if a.Subtotal.IsNegative() {
		return &AllocationError{Kind: ErrNegativeAmount, Item: "subtotal"}
	}
	if a.Tax.IsNegative() {
		return &AllocationError{Kind: ErrNegativeAmount, Item: "tax"}
	}
	for _, f := range a.Fees {
		if f.Amount.IsNegative() {
			return &AllocationError{Kind: ErrNegativeAmount, Item: f.Name}
		}
	}
	if a.Tip != nil && a.Tip.IsNegative() {
		return &AllocationError{Kind: ErrNegativeAmount, Item: "tip"}
	}
	if a.TipPercent != nil && a.TipPercent.IsNegative() {
		return &AllocationError{Kind: ErrNegativeAmount, Item: "tip percent"}
	}
	return nil
}

func (a ReceiptAggregate) normalized() ReceiptAggregate {
	out := ReceiptAggregate{
		Subtotal:   money.Round(a.Subtotal),
		Tax:        money.Round(a.Tax),
		TipPercent: a.TipPercent,
	}
	if len(a.Fees) > 0 {
		out.Fees = make([]Fee, len(a.Fees))
		for i, f := range a.Fees {
			out.Fees[i] = Fee{Name: f.Name, Amount: money.Round(f.Amount)}
		}
	}
	if a.Tip != nil {
		tip := money.Round(*a.Tip)
		out.Tip = &tip
	}
	return out
}

// PersonAssignment lists the items a person ordered alone. Shared
// memberships are expressed through SharedItem.SplitWith.
type PersonAssignment struct {
	Name  string     `json:"name"`
	Items []LineItem `json:"items"`
}

// PersonBreakdown is one person's computed share of the receipt.
//
// Unitemized marks a person for whom only the total is known, which happens
// when the model omits the breakdown.
type PersonBreakdown struct {
	Name        string          `json:"name"`
	Items       []LineItem      `json:"items"`
	SharedItems []SharedItem    `json:"shared_items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxShare    decimal.Decimal `json:"tax_share"`
	FeeShare    decimal.Decimal `json:"fee_share"`
	TipShare    decimal.Decimal `json:"tip_share"`
	Total       decimal.Decimal `json:"total"`
	Unitemized  bool            `json:"unitemized,omitempty"`
}

// ComponentTotal is subtotal plus every proportional share.
func (p PersonBreakdown) ComponentTotal() decimal.Decimal {
	return money.Sum(p.Subtotal, p.TaxShare, p.FeeShare, p.TipShare)
}

// ItemsTotal sums exclusive items and shared-item shares.
func (p PersonBreakdown) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.Amount)
	}
	for _, s := range p.SharedItems {
		total = total.Add(s.Amount)
	}
	return total
}

// TipSource records where the allocated tip came from.
type TipSource string

const (
	TipFromReceipt     TipSource = "receipt"
	TipFromInstruction TipSource = "instruction"
	TipNone            TipSource = "none"
)

// BillSplitResult is the per-person outcome of one split.
type BillSplitResult struct {
	People      []PersonBreakdown `json:"people"`
	Explanation string            `json:"explanation"`
	Receipt     *ReceiptAggregate `json:"receipt,omitempty"`
	TipSource   TipSource         `json:"tip_source,omitempty"`
	Warnings    []ValidationIssue `json:"warnings,omitempty"`
}

// Total sums every person's total.
func (r *BillSplitResult) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.People {
		total = total.Add(p.Total)
	}
	return total
}

// Person looks up a breakdown by name.
func (r *BillSplitResult) Person(name string) (PersonBreakdown, bool) {
	for _, p := range r.People {
		if p.Name == name {
			return p, true
		}
	}
	return PersonBreakdown{}, false
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func sameItem(desc string, amount decimal.Decimal, otherDesc string, otherAmount decimal.Decimal) bool {
	return strings.EqualFold(strings.TrimSpace(desc), strings.TrimSpace(otherDesc)) && amount.Equal(otherAmount)
}
