package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNoItems       = errors.New("no items provided")
	ErrInvalidJSON   = errors.New("invalid JSON format")
	ErrNotJSONArray  = errors.New("JSON must be an array")
	ErrInvalidAmount = errors.New("amount must be a non-negative number")
)

var (
	bulkNameKeys   = []string{"name", "person_name", "person"}
	bulkAmountKeys = []string{"amount", "value", "total"}
)

// BulkItem is one row of a bulk import.
type BulkItem struct {
	Name   string
	Amount decimal.Decimal
}

// ParseBulkItems reads an uploaded JSON array of people. Each object names
// the person under name, person_name or person, and the amount under amount,
// value or total, as a number or numeric string. The document may also
// arrive as a JSON string holding the array. Any bad row fails the whole
// import.
func ParseBulkItems(data []byte) ([]BulkItem, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ErrNoItems
	}
	if data[0] == '"' {
		var doc string
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, ErrInvalidJSON
		}
		data = bytes.TrimSpace([]byte(doc))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, ErrInvalidJSON
	}
	rows, ok := doc.([]any)
	if !ok {
		return nil, ErrNotJSONArray
	}
	if len(rows) == 0 {
		return nil, ErrNoItems
	}

	items := make([]BulkItem, 0, len(rows))
	for i, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is not an object", i+1)
		}

		name, _ := firstValue(obj, bulkNameKeys).(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("item %d missing valid name", i+1)
		}

		amount, err := parseAmount(firstValue(obj, bulkAmountKeys))
		if err != nil {
			return nil, fmt.Errorf("item %d missing valid amount: %w", i+1, err)
		}
		items = append(items, BulkItem{Name: name, Amount: amount})
	}
	return items, nil
}

// firstValue returns the value of the first key that is set to something
// other than null or an empty string.
func firstValue(obj map[string]any, keys []string) any {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			return v
		default:
			return v
		}
	}
	return nil
}

func parseAmount(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		s := strings.TrimPrefix(strings.TrimSpace(v), "$")
		d, err = decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	default:
		return decimal.Zero, ErrInvalidAmount
	}
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
