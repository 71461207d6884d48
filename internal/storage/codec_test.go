package storage

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/receiptsplit/internal/models"
)

func TestUnmarshalBreakdown_StoredRows(t *testing.T) {
	// Rows written before fee_share existed omit it.
	legacy := sql.NullString{Valid: true, String: `{
		"items": [{"description": "Burger", "amount": 14.5}],
		"subtotal": 14.5,
		"tax_share": 1.16,
		"tip_share": 2.9,
		"shared_items": [{"description": "Nachos", "amount": 6, "split_with": ["Ann", "Ben"]}]
	}`}

	b, err := UnmarshalBreakdown(legacy)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.Subtotal.Equal(decimal.RequireFromString("14.50")))
	assert.True(t, b.FeeShare.IsZero())
	require.Len(t, b.SharedItems, 1)
	assert.Equal(t, []string{"Ann", "Ben"}, b.SharedItems[0].SplitWith)
}

func TestUnmarshalBreakdown_Empty(t *testing.T) {
	for _, s := range []sql.NullString{{}, {Valid: true, String: "null"}, {Valid: true}} {
		b, err := UnmarshalBreakdown(s)
		assert.NoError(t, err)
		assert.Nil(t, b)
	}

	_, err := UnmarshalBreakdown(sql.NullString{Valid: true, String: "{"})
	assert.Error(t, err)
}

func TestMarshalBreakdown(t *testing.T) {
	s, err := MarshalBreakdown(nil)
	require.NoError(t, err)
	assert.False(t, s.Valid)

	s, err = MarshalBreakdown(&models.Breakdown{Subtotal: decimal.RequireFromString("5")})
	require.NoError(t, err)
	assert.True(t, s.Valid)
	assert.Contains(t, s.String, `"subtotal":5`)
}
