package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/receiptsplit/internal/money"
)

// Severity separates hard structural failures from conservation warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueCode identifies the check that produced an issue.
type IssueCode string

const (
	CodeNegativeAmount   IssueCode = "negative_amount"
	CodeUnknownReference IssueCode = "unknown_reference"
	CodeDuplicateItem    IssueCode = "duplicate_item"
	CodeMissingBreakdown IssueCode = "missing_breakdown"
	CodeBreakdownTotal   IssueCode = "breakdown_total_mismatch"
	CodeSubtotalItems    IssueCode = "subtotal_items_mismatch"
	CodeUnassignedItems  IssueCode = "unassigned_items"
	CodeSubtotalExcess   IssueCode = "subtotal_mismatch"
	CodeTaxMismatch      IssueCode = "tax_mismatch"
	CodeFeeMismatch      IssueCode = "fee_mismatch"
	CodeTipMismatch      IssueCode = "tip_mismatch"
	CodeTotalMismatch    IssueCode = "total_mismatch"
)

// ValidationIssue describes one failed check.
type ValidationIssue struct {
	Severity Severity  `json:"severity"`
	Code     IssueCode `json:"code"`
	Person   string    `json:"person,omitempty"`
	Message  string    `json:"message"`
}

func (i ValidationIssue) Error() string {
	if i.Person != "" {
		return fmt.Sprintf("%s [%s]: %s", i.Code, i.Person, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// ValidationReport collects the outcome of Validate.
type ValidationReport struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// OK reports whether no hard error was found.
func (r ValidationReport) OK() bool {
	return len(r.Errors) == 0
}

// Err joins the hard errors, or returns nil.
func (r ValidationReport) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Issues returns errors followed by warnings.
func (r ValidationReport) Issues() []ValidationIssue {
	out := make([]ValidationIssue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

func (r *ValidationReport) fail(code IssueCode, person, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationIssue{Severity: SeverityError, Code: code, Person: person, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationReport) warn(code IssueCode, person, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationIssue{Severity: SeverityWarning, Code: code, Person: person, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a result against the receipt it was computed for.
//
// Negative amounts, references to people missing from the result and items
// listed both exclusively and as shared are errors. Conservation mismatches
// are warnings: the aggregate sums are compared with a tolerance of one cent
// per person, and each person's total with a tolerance of one cent.
func Validate(result *BillSplitResult, agg ReceiptAggregate) ValidationReport {
	var report ValidationReport
	if result == nil {
		report.fail(CodeTotalMismatch, "", "no result to validate")
		return report
	}

	names := make(map[string]bool, len(result.People))
	for _, p := range result.People {
		names[p.Name] = true
	}

	itemized := true
	for _, p := range result.People {
		checkStructure(&report, p, names)

		if p.Unitemized {
			itemized = false
			report.warn(CodeMissingBreakdown, p.Name, "no breakdown given, only a total of %s", money.Format(p.Total))
			continue
		}
		if !money.Within(p.ItemsTotal(), p.Subtotal, money.Cent) {
			report.warn(CodeSubtotalItems, p.Name, "items add up to %s but subtotal is %s",
				money.Format(p.ItemsTotal()), money.Format(p.Subtotal))
		}
		if !money.Within(p.ComponentTotal(), p.Total, money.Cent) {
			report.warn(CodeBreakdownTotal, p.Name, "subtotal, tax, fees and tip add up to %s but total is %s",
				money.Format(p.ComponentTotal()), money.Format(p.Total))
		}
	}

	tol := money.Tolerance(len(result.People))
	var subtotal, tax, fees, tip, total decimal.Decimal
	for _, p := range result.People {
		subtotal = subtotal.Add(p.Subtotal)
		tax = tax.Add(p.TaxShare)
		fees = fees.Add(p.FeeShare)
		tip = tip.Add(p.TipShare)
		total = total.Add(p.Total)
	}

	if !itemized {
		receiptSubtotal := agg.Subtotal
		if receiptSubtotal.IsZero() {
			receiptSubtotal = subtotal
		}
		expectedTip, _ := ResolveTip(agg, receiptSubtotal)
		expected := money.Sum(receiptSubtotal, agg.Tax, agg.FeeTotal(), expectedTip)
		if !money.Within(total, expected, tol) {
			report.warn(CodeTotalMismatch, "", "people owe %s in total but the receipt comes to %s",
				money.Format(total), money.Format(expected))
		}
		return report
	}

	if !agg.Subtotal.IsZero() {
		diff := agg.Subtotal.Sub(subtotal)
		switch {
		case diff.GreaterThan(tol):
			report.warn(CodeUnassignedItems, "", "%s of the %s receipt subtotal is not assigned to anyone",
				money.Format(diff), money.Format(agg.Subtotal))
		case diff.Neg().GreaterThan(tol):
			report.warn(CodeSubtotalExcess, "", "assigned subtotals add up to %s, more than the receipt subtotal %s",
				money.Format(subtotal), money.Format(agg.Subtotal))
		}
	}
	if !money.Within(tax, agg.Tax, tol) {
		report.warn(CodeTaxMismatch, "", "tax shares add up to %s, receipt tax is %s", money.Format(tax), money.Format(agg.Tax))
	}
	if !money.Within(fees, agg.FeeTotal(), tol) {
		report.warn(CodeFeeMismatch, "", "fee shares add up to %s, receipt fees are %s", money.Format(fees), money.Format(agg.FeeTotal()))
	}
	// A stated percentage applies to what was assigned, as in Allocate.
	expectedTip, _ := ResolveTip(agg, subtotal)
	if !money.Within(tip, expectedTip, tol) {
		report.warn(CodeTipMismatch, "", "tip shares add up to %s, expected tip is %s", money.Format(tip), money.Format(expectedTip))
	}

	return report
}

func checkStructure(report *ValidationReport, p PersonBreakdown, names map[string]bool) {
	for _, amt := range []decimal.Decimal{p.Subtotal, p.TaxShare, p.FeeShare, p.TipShare, p.Total} {
		if amt.IsNegative() {
			report.fail(CodeNegativeAmount, p.Name, "negative amount %s", amt.String())
			break
		}
	}
	for _, it := range p.Items {
		if it.Amount.IsNegative() {
			report.fail(CodeNegativeAmount, p.Name, "item %q has negative amount %s", it.Description, it.Amount.String())
		}
	}
	for _, s := range p.SharedItems {
		if s.Amount.IsNegative() {
			report.fail(CodeNegativeAmount, p.Name, "shared item %q has negative amount %s", s.Description, s.Amount.String())
		}
		for _, member := range s.SplitWith {
			if !names[member] {
				report.fail(CodeUnknownReference, p.Name, "shared item %q is split with unknown person %q", s.Description, member)
			}
		}
		for _, it := range p.Items {
			if s.duplicates(it) {
				report.fail(CodeDuplicateItem, p.Name, "item %q (%s) is listed both exclusively and as shared",
					it.Description, money.Format(it.Amount))
			}
		}
	}
}

// ImpliedAggregate reconstructs receipt figures from a result that arrived
// without them, such as model output. When any person is unitemized only the
// grand total is known, so it is reported as the subtotal.
func ImpliedAggregate(result *BillSplitResult) ReceiptAggregate {
	var agg ReceiptAggregate
	var fees, tip decimal.Decimal
	for _, p := range result.People {
		if p.Unitemized {
			none := decimal.Zero
			return ReceiptAggregate{Subtotal: result.Total(), Tip: &none}
		}
		agg.Subtotal = agg.Subtotal.Add(p.Subtotal)
		agg.Tax = agg.Tax.Add(p.TaxShare)
		fees = fees.Add(p.FeeShare)
		tip = tip.Add(p.TipShare)
	}
	if !fees.IsZero() {
		agg.Fees = []Fee{{Name: "Fees", Amount: fees}}
	}
	agg.Tip = &tip
	return agg
}
