package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBulkItems(t *testing.T) {
	items, err := ParseBulkItems([]byte(`[
		{"name": " Ann ", "amount": 12.50},
		{"person_name": "Ben", "value": "$1,007.25"},
		{"person": "Cy", "total": 0.1},
		{"name": "", "person_name": "Dee", "amount": null, "value": 4}
	]`))
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, "Ann", items[0].Name)
	assert.Equal(t, "12.5", items[0].Amount.String())
	assert.Equal(t, "1007.25", items[1].Amount.String())
	assert.Equal(t, "0.1", items[2].Amount.String())
	assert.Equal(t, "Dee", items[3].Name)
	assert.Equal(t, "4", items[3].Amount.String())
}

func TestParseBulkItems_StringDocument(t *testing.T) {
	items, err := ParseBulkItems([]byte(`"[{\"name\": \"Ann\", \"amount\": 3}]"`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ann", items[0].Name)
}

func TestParseBulkItems_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "empty", data: ``, want: ErrNoItems.Error()},
		{name: "empty array", data: `[]`, want: ErrNoItems.Error()},
		{name: "syntax", data: `[{"name": }]`, want: ErrInvalidJSON.Error()},
		{name: "object", data: `{"name": "Ann"}`, want: ErrNotJSONArray.Error()},
		{name: "not an object", data: `[1]`, want: "item 1 is not an object"},
		{name: "no name", data: `[{"amount": 1}]`, want: "item 1 missing valid name"},
		{name: "numeric name", data: `[{"name": 7, "amount": 1}]`, want: "item 1 missing valid name"},
		{name: "no amount", data: `[{"name": "Ann", "amount": 1}, {"name": "Ben"}]`, want: "item 2 missing valid amount"},
		{name: "bad amount", data: `[{"name": "Ann", "amount": "lots"}]`, want: "item 1 missing valid amount"},
		{name: "negative", data: `[{"name": "Ann", "amount": -2}]`, want: "item 1 missing valid amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBulkItems([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
