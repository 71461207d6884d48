// Package reconcile turns a computed split into bill item rows for a
// receipt.
//
// Reconciliation never merges: a person already present on the receipt gets
// a second, separate row. Inserts are independent, so a failure part way
// through leaves the earlier rows in place.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/models"
)

// NotesMarker separates appended split explanations from earlier notes.
const NotesMarker = "--- AI Analysis ---"

// Options controls a reconciliation.
type Options struct {
	// ReceiptID is stamped on every planned item.
	ReceiptID string

	// AppendExplanation adds the result explanation to the notes.
	AppendExplanation bool

	// ExistingNotes are the receipt notes the explanation is appended to.
	ExistingNotes string
}

// Plan is what a reconciliation would write.
type Plan struct {
	// ToInsert holds one fresh item per person in the result.
	ToInsert []*models.BillItem

	// Notes is the new notes text, or nil when the notes stay unchanged.
	Notes *string

	// DuplicateNames lists people who already had an item on the receipt.
	// They are inserted anyway.
	DuplicateNames []string
}

// Reconcile maps each person of result into a new bill item carrying the
// person's total and breakdown. existing is only consulted to report
// duplicate names.
func Reconcile(result *calculator.BillSplitResult, existing []models.BillItem, opts Options) Plan {
	var plan Plan
	if result == nil {
		return plan
	}

	present := make(map[string]bool, len(existing))
	for _, item := range existing {
		present[item.PersonName] = true
	}

	for _, p := range result.People {
		plan.ToInsert = append(plan.ToInsert, &models.BillItem{
			ReceiptID:  opts.ReceiptID,
			PersonName: p.Name,
			Amount:     p.Total,
			Breakdown:  models.BreakdownOf(p),
		})
		if present[p.Name] {
			plan.DuplicateNames = append(plan.DuplicateNames, p.Name)
		}
	}

	if opts.AppendExplanation && strings.TrimSpace(result.Explanation) != "" {
		notes := AppendNotes(opts.ExistingNotes, result.Explanation)
		plan.Notes = &notes
	}
	return plan
}

// AppendNotes adds explanation below the existing notes under NotesMarker.
// Existing notes are kept as they are.
func AppendNotes(existing, explanation string) string {
	if existing == "" {
		return NotesMarker + "\n" + explanation
	}
	return existing + "\n\n" + NotesMarker + "\n" + explanation
}

// ItemWriter persists bill items and receipt notes.
type ItemWriter interface {
	AddBillItem(ctx context.Context, item *models.BillItem) error
	SetNotes(ctx context.Context, receiptID, notes string) error
}

// InsertError reports one item that could not be written.
type InsertError struct {
	PersonName string
	Err        error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("failed to add item for %s: %v", e.PersonName, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

// Outcome reports what Apply wrote.
type Outcome struct {
	Inserted     []*models.BillItem
	NotesUpdated bool
}

// Reconciler writes plans through an ItemWriter.
type Reconciler struct {
	writer ItemWriter
	logger *slog.Logger
}

// NewReconciler creates a Reconciler. A nil logger uses slog.Default.
func NewReconciler(writer ItemWriter, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{writer: writer, logger: logger}
}

// Apply inserts every planned item, then updates the notes. Each insert
// stands alone: failures are collected and the remaining items are still
// attempted. The returned error joins every failure.
func (r *Reconciler) Apply(ctx context.Context, receiptID string, plan Plan) (Outcome, error) {
	var (
		out  Outcome
		errs []error
	)

	for _, item := range plan.ToInsert {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.writer.AddBillItem(ctx, item); err != nil {
			r.logger.Warn("failed to add bill item", "receipt_id", receiptID, "person", item.PersonName, "error", err)
			errs = append(errs, &InsertError{PersonName: item.PersonName, Err: err})
			continue
		}
		out.Inserted = append(out.Inserted, item)
	}

	if plan.Notes != nil {
		if err := r.writer.SetNotes(ctx, receiptID, *plan.Notes); err != nil {
			r.logger.Warn("failed to update notes", "receipt_id", receiptID, "error", err)
			errs = append(errs, fmt.Errorf("failed to update notes: %w", err))
		} else {
			out.NotesUpdated = true
		}
	}

	if len(plan.DuplicateNames) > 0 {
		r.logger.Info("split added rows for people already on receipt",
			"receipt_id", receiptID, "names", plan.DuplicateNames)
	}
	return out, errors.Join(errs...)
}
