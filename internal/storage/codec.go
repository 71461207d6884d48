package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/receiptsplit/internal/models"
)

// MarshalBreakdown encodes a breakdown for a JSON column. A nil breakdown is
// stored as NULL.
func MarshalBreakdown(b *models.Breakdown) (sql.NullString, error) {
	if b == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode breakdown: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// UnmarshalBreakdown decodes a JSON column written by MarshalBreakdown or by
// earlier versions of the application.
func UnmarshalBreakdown(s sql.NullString) (*models.Breakdown, error) {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil, nil
	}
	var b models.Breakdown
	if err := json.Unmarshal([]byte(s.String), &b); err != nil {
		return nil, fmt.Errorf("failed to decode breakdown: %w", err)
	}
	return &b, nil
}

// PrepareReceipt fills the generated fields of a new receipt.
func PrepareReceipt(r *models.Receipt) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}
}

// PrepareBillItem fills the generated fields of a new bill item.
func PrepareBillItem(item *models.BillItem) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt == 0 {
		item.CreatedAt = time.Now().Unix()
	}
}

// NewLinkID returns a fresh public link identifier.
func NewLinkID() string {
	return uuid.New().String()
}
