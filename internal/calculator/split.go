package calculator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/receiptsplit/internal/money"
)

// Allocate computes each person's subtotal and proportional shares of tax,
// fees and tip.
//
// Algorithm:
//   - person subtotal = exclusive items + an even share of each shared item
//     they belong to. Shared items are divided in whole cents; leftover cents
//     go one each to the members in SplitWith order.
//   - receipt subtotal = sum of person subtotals
//   - share = round(person subtotal / receipt subtotal × amount, 2), computed
//     separately for tax, for each fee entry (summed into FeeShare) and for tip
//   - total = subtotal + taxShare + feeShare + tipShare, from rounded parts
//
// People with no exclusive items and no shared memberships are left out of
// the result.
func Allocate(people []PersonAssignment, shared []SharedItem, agg ReceiptAggregate) (*BillSplitResult, error) {
	if err := agg.check(); err != nil {
		return nil, err
	}
	agg = agg.normalized()

	index := make(map[string]int, len(people))
	exclusive := make([][]LineItem, len(people))
	for i, p := range people {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, &AllocationError{Kind: ErrEmptyName}
		}
		if _, dup := index[name]; dup {
			return nil, &AllocationError{Kind: ErrDuplicatePerson, Person: name}
		}
		index[name] = i

		items := make([]LineItem, 0, len(p.Items))
		for _, it := range p.Items {
			item, err := NewLineItem(it.Description, it.Amount)
			if err != nil {
				return nil, &AllocationError{Kind: ErrNegativeAmount, Person: name, Item: it.Description}
			}
			items = append(items, item)
		}
		exclusive[i] = items
	}

	shares := make([][]SharedItem, len(people))
	for _, s := range shared {
		item, err := NewSharedItem(s.Description, s.Amount, s.SplitWith...)
		if err != nil {
			return nil, err
		}
		for _, member := range item.SplitWith {
			if _, ok := index[member]; !ok {
				return nil, &AllocationError{Kind: ErrUnknownPerson, Person: member, Item: item.Description}
			}
		}

		parts := splitEvenly(item.Amount, len(item.SplitWith))
		for k, member := range item.SplitWith {
			idx := index[member]
			price := item.Amount
			share := SharedItem{
				Description: item.Description,
				Amount:      parts[k],
				SplitWith:   append([]string(nil), item.SplitWith...),
				Price:       &price,
			}
			for _, own := range exclusive[idx] {
				if share.duplicates(own) {
					return nil, &AllocationError{Kind: ErrDuplicateItem, Person: member, Item: item.Description}
				}
			}
			shares[idx] = append(shares[idx], share)
		}
	}

	result := &BillSplitResult{}
	receiptSubtotal := decimal.Zero
	for i, p := range people {
		if len(exclusive[i]) == 0 && len(shares[i]) == 0 {
			continue
		}
		breakdown := PersonBreakdown{
			Name:        strings.TrimSpace(p.Name),
			Items:       exclusive[i],
			SharedItems: shares[i],
		}
		if breakdown.SharedItems == nil {
			breakdown.SharedItems = []SharedItem{}
		}
		breakdown.Subtotal = breakdown.ItemsTotal()
		receiptSubtotal = receiptSubtotal.Add(breakdown.Subtotal)
		result.People = append(result.People, breakdown)
	}

	tip, source := ResolveTip(agg, receiptSubtotal)
	result.TipSource = source

	if receiptSubtotal.IsZero() {
		if !agg.Tax.IsZero() || !agg.FeeTotal().IsZero() || !tip.IsZero() {
			return nil, &AllocationError{Kind: ErrNothingToAllocate}
		}
	}

	for i := range result.People {
		p := &result.People[i]
		p.TaxShare = proportionalShare(p.Subtotal, receiptSubtotal, agg.Tax)
		p.FeeShare = decimal.Zero
		for _, fee := range agg.Fees {
			p.FeeShare = p.FeeShare.Add(proportionalShare(p.Subtotal, receiptSubtotal, fee.Amount))
		}
		p.TipShare = proportionalShare(p.Subtotal, receiptSubtotal, tip)
		p.Total = p.ComponentTotal()
	}

	receipt := agg
	receipt.Tip = &tip
	if receipt.Subtotal.IsZero() {
		receipt.Subtotal = receiptSubtotal
	}
	result.Receipt = &receipt
	result.Explanation = explain(result, receiptSubtotal)

	return result, nil
}

// splitEvenly divides amount into n parts that sum exactly to amount.
func splitEvenly(amount decimal.Decimal, n int) []decimal.Decimal {
	cents := money.Cents(amount)
	base := cents / int64(n)
	rem := cents % int64(n)

	parts := make([]decimal.Decimal, n)
	for i := range parts {
		c := base
		if int64(i) < rem {
			c++
		}
		parts[i] = money.FromCents(c)
	}
	return parts
}

func proportionalShare(subtotal, receiptSubtotal, amount decimal.Decimal) decimal.Decimal {
	if receiptSubtotal.IsZero() || amount.IsZero() {
		return decimal.Zero
	}
	return money.Round(subtotal.Mul(amount).Div(receiptSubtotal))
}

func explain(result *BillSplitResult, receiptSubtotal decimal.Decimal) string {
	var b strings.Builder
	agg := result.Receipt

	fmt.Fprintf(&b, "Subtotal %s split across %d %s.", money.Format(receiptSubtotal), len(result.People), plural(len(result.People), "person", "people"))

	var parts []string
	if !agg.Tax.IsZero() {
		parts = append(parts, "tax "+money.Format(agg.Tax))
	}
	for _, f := range agg.Fees {
		parts = append(parts, fmt.Sprintf("%s %s", strings.ToLower(feeLabel(f)), money.Format(f.Amount)))
	}
	switch result.TipSource {
	case TipFromReceipt:
		parts = append(parts, fmt.Sprintf("tip %s (from receipt)", money.Format(*agg.Tip)))
	case TipFromInstruction:
		parts = append(parts, fmt.Sprintf("tip %s (%s%% of subtotal)", money.Format(*agg.Tip), agg.TipPercent.String()))
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, " %s allocated in proportion to each subtotal.", capitalize(strings.Join(parts, ", ")))
	}

	for _, p := range result.People {
		fmt.Fprintf(&b, "\n%s: subtotal %s", p.Name, money.Format(p.Subtotal))
		if !p.TaxShare.IsZero() {
			fmt.Fprintf(&b, " + tax %s", money.Format(p.TaxShare))
		}
		if !p.FeeShare.IsZero() {
			fmt.Fprintf(&b, " + fees %s", money.Format(p.FeeShare))
		}
		if !p.TipShare.IsZero() {
			fmt.Fprintf(&b, " + tip %s", money.Format(p.TipShare))
		}
		fmt.Fprintf(&b, " = %s", money.Format(p.Total))
	}
	return b.String()
}

func feeLabel(f Fee) string {
	if strings.TrimSpace(f.Name) == "" {
		return "Fee"
	}
	return f.Name
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
