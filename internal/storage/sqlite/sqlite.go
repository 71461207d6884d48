// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys are a per-connection setting, so pass them in the DSN.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateReceipt persists a new receipt.
func (s *SQLiteStore) CreateReceipt(ctx context.Context, receipt *models.Receipt) error {
	storage.PrepareReceipt(receipt)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO receipts (id, name, date, image_url, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		receipt.ID, receipt.Name, receipt.Date, receipt.ImageURL, receipt.Notes, receipt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// GetReceipt retrieves a receipt by ID, including its items and public link.
func (s *SQLiteStore) GetReceipt(ctx context.Context, receiptID string) (*models.Receipt, error) {
	receipt := &models.Receipt{}
	var linkID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.date, r.image_url, r.notes, r.created_at, l.id
		FROM receipts r
		LEFT JOIN public_links l ON l.receipt_id = r.id
		WHERE r.id = ?`,
		receiptID,
	).Scan(&receipt.ID, &receipt.Name, &receipt.Date, &receipt.ImageURL, &receipt.Notes, &receipt.CreatedAt, &linkID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	receipt.PublicLinkID = linkID.String

	items, err := s.listItems(ctx, "WHERE receipt_id = ?", receiptID)
	if err != nil {
		return nil, err
	}
	receipt.Items = items[receiptID]

	return receipt, nil
}

// ListReceipts returns every receipt with its items, newest date first.
func (s *SQLiteStore) ListReceipts(ctx context.Context) ([]*models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.date, r.image_url, r.notes, r.created_at, l.id
		FROM receipts r
		LEFT JOIN public_links l ON l.receipt_id = r.id
		ORDER BY r.date DESC, r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		receipt := &models.Receipt{}
		var linkID sql.NullString
		if err := rows.Scan(&receipt.ID, &receipt.Name, &receipt.Date, &receipt.ImageURL, &receipt.Notes, &receipt.CreatedAt, &linkID); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipt.PublicLinkID = linkID.String
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}

	items, err := s.listItems(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, r := range receipts {
		r.Items = items[r.ID]
	}

	return receipts, nil
}

// UpdateReceipt applies the non-nil fields of update.
func (s *SQLiteStore) UpdateReceipt(ctx context.Context, receiptID string, update storage.ReceiptUpdate) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value *string) {
		if value != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *value)
		}
	}
	add("name", update.Name)
	add("date", update.Date)
	add("image_url", update.ImageURL)
	add("notes", update.Notes)

	if len(sets) == 0 {
		_, err := s.GetReceipt(ctx, receiptID)
		return err
	}

	args = append(args, receiptID)
	res, err := s.db.ExecContext(ctx,
		"UPDATE receipts SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}
	return expectRow(res, "receipt", receiptID)
}

// DeleteReceipt removes a receipt; items and link go with it.
func (s *SQLiteStore) DeleteReceipt(ctx context.Context, receiptID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM receipts WHERE id = ?", receiptID)
	if err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	return expectRow(res, "receipt", receiptID)
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
