package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/receiptsplit/internal/money"
)

// ItemForSummary is the minimal view of a stored bill item needed for
// receipt totals.
type ItemForSummary struct {
	PersonName string
	Amount     decimal.Decimal
	Paid       bool
}

// PersonBalance aggregates every row stored under one name.
type PersonBalance struct {
	Name        string
	Owed        decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
}

// ReceiptSummary is what the receipt and public bill pages show above the
// item list.
type ReceiptSummary struct {
	Total       decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
	ItemCount   int
	PaidCount   int
	People      []PersonBalance
}

// Summarize totals the stored items of a receipt. Rows that share a name are
// separate items but are combined in People, in first-seen order.
func Summarize(items []ItemForSummary) ReceiptSummary {
	summary := ReceiptSummary{ItemCount: len(items)}

	balances := make(map[string]*PersonBalance)
	var order []string

	for _, item := range items {
		summary.Total = summary.Total.Add(item.Amount)

		bal, exists := balances[item.PersonName]
		if !exists {
			bal = &PersonBalance{Name: item.PersonName}
			balances[item.PersonName] = bal
			order = append(order, item.PersonName)
		}
		bal.Owed = bal.Owed.Add(item.Amount)

		if item.Paid {
			summary.Paid = summary.Paid.Add(item.Amount)
			summary.PaidCount++
			bal.Paid = bal.Paid.Add(item.Amount)
		}
	}

	summary.Outstanding = summary.Total.Sub(summary.Paid)
	for _, name := range order {
		bal := balances[name]
		bal.Outstanding = bal.Owed.Sub(bal.Paid)
		summary.People = append(summary.People, *bal)
	}
	return summary
}

// Settled reports whether every item has been marked paid.
func (s ReceiptSummary) Settled() bool {
	return s.ItemCount > 0 && s.PaidCount == s.ItemCount
}

// Description renders the one-line share text,
// e.g. "Dinner - $122.00 split between 2 people on Jan 2, 2026".
func (s ReceiptSummary) Description(title, date string) string {
	return fmt.Sprintf("%s - %s split between %d %s on %s",
		title, money.Format(s.Total), len(s.People), plural(len(s.People), "person", "people"), date)
}
