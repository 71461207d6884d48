// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	db *pgxpool.Pool
}

// New connects to dsn, verifies the connection and creates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

const receiptColumns = `r.id, r.name, r.date, r.image_url, r.notes, r.created_at, l.id`

func scanReceipt(row pgx.Row) (*models.Receipt, error) {
	receipt := &models.Receipt{}
	var linkID *string
	if err := row.Scan(&receipt.ID, &receipt.Name, &receipt.Date, &receipt.ImageURL, &receipt.Notes, &receipt.CreatedAt, &linkID); err != nil {
		return nil, err
	}
	if linkID != nil {
		receipt.PublicLinkID = *linkID
	}
	return receipt, nil
}

// CreateReceipt persists a new receipt.
func (s *Store) CreateReceipt(ctx context.Context, receipt *models.Receipt) error {
	storage.PrepareReceipt(receipt)

	_, err := s.db.Exec(ctx, `
		INSERT INTO receipts (id, name, date, image_url, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, receipt.ID, receipt.Name, receipt.Date, receipt.ImageURL, receipt.Notes, receipt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// GetReceipt retrieves a receipt with its items and public link.
func (s *Store) GetReceipt(ctx context.Context, receiptID string) (*models.Receipt, error) {
	receipt, err := scanReceipt(s.db.QueryRow(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts r
		LEFT JOIN public_links l ON l.receipt_id = r.id
		WHERE r.id = $1
	`, receiptID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	items, err := s.listItems(ctx, "WHERE receipt_id = $1", receiptID)
	if err != nil {
		return nil, err
	}
	receipt.Items = items[receiptID]
	return receipt, nil
}

// ListReceipts returns every receipt with its items, newest date first.
func (s *Store) ListReceipts(ctx context.Context) ([]*models.Receipt, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+receiptColumns+`
		FROM receipts r
		LEFT JOIN public_links l ON l.receipt_id = r.id
		ORDER BY r.date DESC, r.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
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
func (s *Store) UpdateReceipt(ctx context.Context, receiptID string, update storage.ReceiptUpdate) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value *string) {
		if value != nil {
			args = append(args, *value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
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
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf("UPDATE receipts SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}
	return expectRow(tag, "receipt", receiptID)
}

// DeleteReceipt removes a receipt; items and link cascade.
func (s *Store) DeleteReceipt(ctx context.Context, receiptID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM receipts WHERE id = $1`, receiptID)
	if err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	return expectRow(tag, "receipt", receiptID)
}

// AddBillItem inserts one bill item for an existing receipt.
func (s *Store) AddBillItem(ctx context.Context, item *models.BillItem) error {
	breakdown, err := storage.MarshalBreakdown(item.Breakdown)
	if err != nil {
		return err
	}
	storage.PrepareBillItem(item)

	_, err = s.db.Exec(ctx, `
		INSERT INTO bill_items (id, receipt_id, person_name, amount, paid, breakdown, created_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6::text::jsonb, $7)
	`, item.ID, item.ReceiptID, item.PersonName, item.Amount.StringFixed(2), item.Paid, breakdown, item.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("receipt %s: %w", item.ReceiptID, storage.ErrNotFound)
		}
		return fmt.Errorf("failed to insert bill item: %w", err)
	}
	return nil
}

// DeleteBillItem removes one bill item.
func (s *Store) DeleteBillItem(ctx context.Context, itemID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM bill_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete bill item: %w", err)
	}
	return expectRow(tag, "bill item", itemID)
}

// SetBillItemPaid sets the paid flag of one bill item.
func (s *Store) SetBillItemPaid(ctx context.Context, itemID string, paid bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE bill_items SET paid = $1 WHERE id = $2`, paid, itemID)
	if err != nil {
		return fmt.Errorf("failed to update bill item: %w", err)
	}
	return expectRow(tag, "bill item", itemID)
}

func (s *Store) listItems(ctx context.Context, where string, args ...any) (map[string][]models.BillItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, receipt_id, person_name, amount::text, paid, breakdown::text, created_at
		FROM bill_items `+where+`
		ORDER BY seq
	`, args...)
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

// GetOrCreatePublicLink returns the receipt's link, creating one if needed.
func (s *Store) GetOrCreatePublicLink(ctx context.Context, receiptID string) (*models.PublicLink, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO public_links (id, receipt_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (receipt_id) DO NOTHING
	`, storage.NewLinkID(), receiptID, time.Now().Unix())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, fmt.Errorf("receipt %s: %w", receiptID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create public link: %w", err)
	}

	link := &models.PublicLink{}
	err = s.db.QueryRow(ctx, `
		SELECT id, receipt_id, created_at FROM public_links WHERE receipt_id = $1
	`, receiptID).Scan(&link.ID, &link.ReceiptID, &link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get public link: %w", err)
	}
	return link, nil
}

// GetReceiptByPublicLink resolves a link ID to the receipt it shares.
func (s *Store) GetReceiptByPublicLink(ctx context.Context, linkID string) (*models.Receipt, error) {
	var receiptID string
	err := s.db.QueryRow(ctx, `SELECT receipt_id FROM public_links WHERE id = $1`, linkID).Scan(&receiptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("public link %s: %w", linkID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get public link: %w", err)
	}
	return s.GetReceipt(ctx, receiptID)
}

func expectRow(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
