package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/storage"
)

// AddBillItem inserts one bill item for an existing receipt.
func (s *SQLiteStore) AddBillItem(ctx context.Context, item *models.BillItem) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM receipts WHERE id = ?", item.ReceiptID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("receipt %s: %w", item.ReceiptID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up receipt: %w", err)
	}

	breakdown, err := storage.MarshalBreakdown(item.Breakdown)
	if err != nil {
		return err
	}
	storage.PrepareBillItem(item)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bill_items (id, receipt_id, person_name, amount, paid, breakdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ReceiptID, item.PersonName, item.Amount.StringFixed(2), item.Paid, breakdown, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill item: %w", err)
	}
	return nil
}

// DeleteBillItem removes one bill item.
func (s *SQLiteStore) DeleteBillItem(ctx context.Context, itemID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bill_items WHERE id = ?", itemID)
	if err != nil {
		return fmt.Errorf("failed to delete bill item: %w", err)
	}
	return expectRow(res, "bill item", itemID)
}

// SetBillItemPaid sets the paid flag of one bill item.
func (s *SQLiteStore) SetBillItemPaid(ctx context.Context, itemID string, paid bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE bill_items SET paid = ? WHERE id = ?", paid, itemID)
	if err != nil {
		return fmt.Errorf("failed to update bill item: %w", err)
	}
	return expectRow(res, "bill item", itemID)
}

// listItems loads bill items grouped by receipt ID, in insertion order.
func (s *SQLiteStore) listItems(ctx context.Context, where string, args ...any) (map[string][]models.BillItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, person_name, amount, paid, breakdown, created_at
		FROM bill_items `+where+`
		ORDER BY created_at, rowid`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get bill items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]models.BillItem)
	for rows.Next() {
		var (
			item      models.BillItem
			breakdown sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.PersonName, &item.Amount, &item.Paid, &breakdown, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill item: %w", err)
		}
		if item.Breakdown, err = storage.UnmarshalBreakdown(breakdown); err != nil {
			return nil, fmt.Errorf("bill item %s: %w", item.ID, err)
		}
		items[item.ReceiptID] = append(items[item.ReceiptID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bill items: %w", err)
	}
	return items, nil
}
