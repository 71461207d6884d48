package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/storage"
)

// GetOrCreatePublicLink returns the receipt's link, creating one if needed.
// A receipt never has more than one link.
func (s *SQLiteStore) GetOrCreatePublicLink(ctx context.Context, receiptID string) (*models.PublicLink, error) {
	if _, err := s.GetReceipt(ctx, receiptID); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO public_links (id, receipt_id, created_at) VALUES (?, ?, ?)",
		storage.NewLinkID(), receiptID, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create public link: %w", err)
	}

	link := &models.PublicLink{}
	err = s.db.QueryRowContext(ctx,
		"SELECT id, receipt_id, created_at FROM public_links WHERE receipt_id = ?",
		receiptID,
	).Scan(&link.ID, &link.ReceiptID, &link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get public link: %w", err)
	}
	return link, nil
}

// GetReceiptByPublicLink resolves a link ID to the receipt it shares.
func (s *SQLiteStore) GetReceiptByPublicLink(ctx context.Context, linkID string) (*models.Receipt, error) {
	var receiptID string
	err := s.db.QueryRowContext(ctx, "SELECT receipt_id FROM public_links WHERE id = ?", linkID).Scan(&receiptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("public link %s: %w", linkID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get public link: %w", err)
	}
	return s.GetReceipt(ctx, receiptID)
}
