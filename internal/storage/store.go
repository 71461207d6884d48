// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/receiptsplit/internal/models"
)

// ErrNotFound is returned when a receipt, bill item or link does not exist.
var ErrNotFound = errors.New("not found")

// ReceiptUpdate lists the receipt fields to change. Nil fields are left as
// they are.
type ReceiptUpdate struct {
	Name     *string
	Date     *string
	ImageURL *string
	Notes    *string
}

// Store defines the interface for receipt storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	// CreateReceipt persists a new receipt. ID and CreatedAt are filled in
	// when empty.
	CreateReceipt(ctx context.Context, receipt *models.Receipt) error

	// GetReceipt retrieves a receipt with its bill items and public link.
	GetReceipt(ctx context.Context, receiptID string) (*models.Receipt, error)

	// ListReceipts returns every receipt with its items, newest date first.
	ListReceipts(ctx context.Context) ([]*models.Receipt, error)

	// UpdateReceipt applies the non-nil fields of update.
	UpdateReceipt(ctx context.Context, receiptID string, update ReceiptUpdate) error

	// DeleteReceipt removes a receipt together with its items and link.
	DeleteReceipt(ctx context.Context, receiptID string) error

	// AddBillItem inserts one item. Each call is independent; there is no
	// batching transaction.
	AddBillItem(ctx context.Context, item *models.BillItem) error

	// DeleteBillItem removes one item.
	DeleteBillItem(ctx context.Context, itemID string) error

	// SetBillItemPaid sets the paid flag of one item.
	SetBillItemPaid(ctx context.Context, itemID string, paid bool) error

	// GetOrCreatePublicLink returns the receipt's share link, creating it on
	// first use.
	GetOrCreatePublicLink(ctx context.Context, receiptID string) (*models.PublicLink, error)

	// GetReceiptByPublicLink resolves a share link to its receipt.
	GetReceiptByPublicLink(ctx context.Context, linkID string) (*models.Receipt, error)

	// Close releases any resources held by the store.
	Close() error
}
