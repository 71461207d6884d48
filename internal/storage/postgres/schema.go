package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    date TEXT NOT NULL,
    image_url TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS bill_items (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    receipt_id TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
    person_name TEXT NOT NULL,
    amount NUMERIC(12, 2) NOT NULL,
    paid BOOLEAN NOT NULL DEFAULT FALSE,
    breakdown JSONB,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS public_links (
    id TEXT PRIMARY KEY,
    receipt_id TEXT NOT NULL UNIQUE REFERENCES receipts(id) ON DELETE CASCADE,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bill_items_receipt_id ON bill_items(receipt_id);
CREATE INDEX IF NOT EXISTS idx_receipts_date ON receipts(date);
`

func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
