package calculator

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func person(name string, items ...LineItem) PersonAssignment {
	return PersonAssignment{Name: name, Items: items}
}

func item(desc, amount string) LineItem {
	return LineItem{Description: desc, Amount: d(amount)}
}

func TestAllocate_ExampleScenario(t *testing.T) {
	// Alice $60, Bob $40, tax $8, tip $15 printed on the receipt, no fees.
	people := []PersonAssignment{
		person("Alice", item("Steak", "60")),
		person("Bob", item("Pasta", "40")),
	}
	agg := ReceiptAggregate{Subtotal: d("100"), Tax: d("8"), Tip: dp("15")}

	result, err := Allocate(people, nil, agg)
	require.NoError(t, err)
	require.Len(t, result.People, 2)

	alice, ok := result.Person("Alice")
	require.True(t, ok)
	assertAmount(t, "60", alice.Subtotal)
	assertAmount(t, "4.80", alice.TaxShare)
	assertAmount(t, "9.00", alice.TipShare)
	assertAmount(t, "0", alice.FeeShare)
	assertAmount(t, "73.80", alice.Total)

	bob, ok := result.Person("Bob")
	require.True(t, ok)
	assertAmount(t, "40", bob.Subtotal)
	assertAmount(t, "3.20", bob.TaxShare)
	assertAmount(t, "6.00", bob.TipShare)
	assertAmount(t, "49.20", bob.Total)

	assertAmount(t, "8.00", alice.TaxShare.Add(bob.TaxShare))
	assertAmount(t, "15.00", alice.TipShare.Add(bob.TipShare))
	assert.Equal(t, TipFromReceipt, result.TipSource)
	assert.Contains(t, result.Explanation, "Alice: subtotal $60.00 + tax $4.80 + tip $9.00 = $73.80")
}

func TestAllocate_SharedItemSplitExactness(t *testing.T) {
	people := []PersonAssignment{person("Alice"), person("Bob"), person("Carol")}
	shared := []SharedItem{{Description: "Nachos", Amount: d("10.00"), SplitWith: []string{"Alice", "Bob", "Carol"}}}

	result, err := Allocate(people, shared, ReceiptAggregate{})
	require.NoError(t, err)
	require.Len(t, result.People, 3)

	want := []string{"3.34", "3.33", "3.33"}
	sum := decimal.Zero
	for i, p := range result.People {
		require.Len(t, p.SharedItems, 1)
		assertAmount(t, want[i], p.SharedItems[0].Amount, p.Name)
		assertAmount(t, want[i], p.Subtotal, p.Name)
		sum = sum.Add(p.SharedItems[0].Amount)
	}
	assertAmount(t, "10.00", sum)

	wantShared := []SharedItem{{Description: "Nachos", Amount: d("3.34"), SplitWith: []string{"Alice", "Bob", "Carol"}, Price: dp("10.00")}}
	if diff := cmp.Diff(wantShared, result.People[0].SharedItems, decimalEqual); diff != "" {
		t.Errorf("Alice shared items mismatch (-want +got):\n%s", diff)
	}
}

func TestAllocate_ResidualCentsFollowSplitWithOrder(t *testing.T) {
	people := []PersonAssignment{person("Alice"), person("Bob"), person("Carol")}
	shared := []SharedItem{{Description: "Wine", Amount: d("20.00"), SplitWith: []string{"Carol", "Bob", "Alice"}}}

	result, err := Allocate(people, shared, ReceiptAggregate{})
	require.NoError(t, err)

	carol, _ := result.Person("Carol")
	bob, _ := result.Person("Bob")
	alice, _ := result.Person("Alice")
	assertAmount(t, "6.67", carol.Subtotal)
	assertAmount(t, "6.67", bob.Subtotal)
	assertAmount(t, "6.66", alice.Subtotal)
}

func TestAllocate_SameNameDifferentOrders(t *testing.T) {
	// Alice's own fries and a shared basket of fries are separate orders even
	// though her share of the basket equals her own order.
	people := []PersonAssignment{person("Alice", item("Fries", "5")), person("Bob")}
	shared := []SharedItem{{Description: "Fries", Amount: d("10"), SplitWith: []string{"Alice", "Bob"}}}
	agg := ReceiptAggregate{Subtotal: d("15"), Tax: d("1.50")}

	result, err := Allocate(people, shared, agg)
	require.NoError(t, err)

	alice, _ := result.Person("Alice")
	require.Len(t, alice.SharedItems, 1)
	assertAmount(t, "5", alice.SharedItems[0].Amount)
	assertAmount(t, "10", alice.SharedItems[0].FullPrice())
	assertAmount(t, "10", alice.Subtotal)

	report := Validate(result, agg)
	assert.True(t, report.OK(), "allocator output must pass validation: %v", report.Errors)
	assert.Empty(t, report.Warnings)
}

func TestAllocate_TipPrecedence(t *testing.T) {
	people := []PersonAssignment{
		person("Alice", item("Burger", "30")),
		person("Bob", item("Salad", "20")),
	}

	t.Run("receipt tip beats instruction percentage", func(t *testing.T) {
		agg := ReceiptAggregate{Subtotal: d("50"), Tip: dp("5.00")}.WithInstruction("Alice had the burger, add a 20% tip")

		result, err := Allocate(people, nil, agg)
		require.NoError(t, err)

		tip := decimal.Zero
		for _, p := range result.People {
			tip = tip.Add(p.TipShare)
		}
		assertAmount(t, "5.00", tip)
		assert.Equal(t, TipFromReceipt, result.TipSource)
	})

	t.Run("instruction percentage applies to receipt subtotal", func(t *testing.T) {
		agg := ReceiptAggregate{Subtotal: d("50")}.WithInstruction("please include a 20% tip")

		result, err := Allocate(people, nil, agg)
		require.NoError(t, err)

		alice, _ := result.Person("Alice")
		bob, _ := result.Person("Bob")
		assertAmount(t, "6.00", alice.TipShare)
		assertAmount(t, "4.00", bob.TipShare)
		assert.Equal(t, TipFromInstruction, result.TipSource)
		assertAmount(t, "10.00", *result.Receipt.Tip)
	})

	t.Run("no tip anywhere", func(t *testing.T) {
		result, err := Allocate(people, nil, ReceiptAggregate{Subtotal: d("50")})
		require.NoError(t, err)

		for _, p := range result.People {
			assertAmount(t, "0", p.TipShare, p.Name)
		}
		assert.Equal(t, TipNone, result.TipSource)
	})
}

func TestAllocate_FeesDistributedLikeTax(t *testing.T) {
	people := []PersonAssignment{
		person("Alice", item("Steak", "60")),
		person("Bob", item("Pasta", "40")),
	}
	agg := ReceiptAggregate{
		Subtotal: d("100"),
		Fees: []Fee{
			{Name: "Service charge", Amount: d("3.00")},
			{Name: "Economic recovery fee", Amount: d("1.50")},
		},
	}

	result, err := Allocate(people, nil, agg)
	require.NoError(t, err)

	alice, _ := result.Person("Alice")
	bob, _ := result.Person("Bob")
	assertAmount(t, "2.70", alice.FeeShare)
	assertAmount(t, "1.80", bob.FeeShare)
	assertAmount(t, "62.70", alice.Total)
	assertAmount(t, "41.80", bob.Total)
}

func TestAllocate_MixedExclusiveAndShared(t *testing.T) {
	people := []PersonAssignment{
		person("Alice", item("Pizza", "18")),
		person("Bob", item("Beer", "7")),
	}
	shared := []SharedItem{{Description: "Fries", Amount: d("5"), SplitWith: []string{"Alice", "Bob"}}}
	agg := ReceiptAggregate{Subtotal: d("30"), Tax: d("2.70"), Tip: dp("6")}

	result, err := Allocate(people, shared, agg)
	require.NoError(t, err)

	alice, _ := result.Person("Alice")
	bob, _ := result.Person("Bob")
	assertAmount(t, "20.50", alice.Subtotal)
	assertAmount(t, "9.50", bob.Subtotal)
	// 20.50 / 30 × 2.70 = 1.845 → 1.85 (half-up)
	assertAmount(t, "1.85", alice.TaxShare)
	// 9.50 / 30 × 2.70 = 0.855 → 0.86
	assertAmount(t, "0.86", bob.TaxShare)
	assertAmount(t, "4.10", alice.TipShare)
	assertAmount(t, "1.90", bob.TipShare)

	for _, p := range result.People {
		assertAmount(t, p.ComponentTotal().String(), p.Total, p.Name)
	}
}

func TestAllocate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		people  []PersonAssignment
		shared  []SharedItem
		agg     ReceiptAggregate
		wantErr error
	}{
		{
			name:    "duplicate item in exclusive and shared lists",
			people:  []PersonAssignment{person("Alice", item("Fries", "10")), person("Bob")},
			shared:  []SharedItem{{Description: "Fries", Amount: d("10"), SplitWith: []string{"Alice", "Bob"}}},
			wantErr: ErrDuplicateItem,
		},
		{
			name:    "shared item references unknown person",
			people:  []PersonAssignment{person("Alice", item("Soup", "8"))},
			shared:  []SharedItem{{Description: "Bread", Amount: d("4"), SplitWith: []string{"Alice", "Mallory"}}},
			wantErr: ErrUnknownPerson,
		},
		{
			name:    "shared item with nobody to split with",
			people:  []PersonAssignment{person("Alice", item("Soup", "8"))},
			shared:  []SharedItem{{Description: "Bread", Amount: d("4")}},
			wantErr: ErrEmptySplit,
		},
		{
			name:    "negative item amount",
			people:  []PersonAssignment{person("Alice", item("Refund", "-5"))},
			wantErr: ErrNegativeAmount,
		},
		{
			name:    "negative tax",
			people:  []PersonAssignment{person("Alice", item("Soup", "8"))},
			agg:     ReceiptAggregate{Tax: d("-1")},
			wantErr: ErrNegativeAmount,
		},
		{
			name:    "same person twice",
			people:  []PersonAssignment{person("Alice", item("Soup", "8")), person("Alice", item("Tea", "3"))},
			wantErr: ErrDuplicatePerson,
		},
		{
			name:    "blank name",
			people:  []PersonAssignment{person("  ", item("Soup", "8"))},
			wantErr: ErrEmptyName,
		},
		{
			name:    "tax with nothing to allocate against",
			people:  []PersonAssignment{person("Alice")},
			agg:     ReceiptAggregate{Tax: d("2")},
			wantErr: ErrNothingToAllocate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Allocate(tt.people, tt.shared, tt.agg)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)

			var allocErr *AllocationError
			assert.True(t, errors.As(err, &allocErr), "expected *AllocationError, got %T", err)
		})
	}
}

func TestAllocate_OmitsZeroActivityPeople(t *testing.T) {
	people := []PersonAssignment{
		person("Alice", item("Soup", "8")),
		person("Dave"),
	}

	result, err := Allocate(people, nil, ReceiptAggregate{Tax: d("0.80")})
	require.NoError(t, err)
	require.Len(t, result.People, 1)
	assert.Equal(t, "Alice", result.People[0].Name)
	assertAmount(t, "8.80", result.People[0].Total)
}

func TestAllocate_ZeroSubtotalWithoutExtras(t *testing.T) {
	result, err := Allocate([]PersonAssignment{person("Alice", item("Water", "0"))}, nil, ReceiptAggregate{})
	require.NoError(t, err)
	require.Len(t, result.People, 1)
	assertAmount(t, "0", result.People[0].Total)
}

func TestAllocate_Conservation(t *testing.T) {
	people := []PersonAssignment{
		person("Alice", item("A", "10")),
		person("Bob", item("B", "10")),
		person("Carol", item("C", "10")),
	}
	agg := ReceiptAggregate{Subtotal: d("30"), Tax: d("10"), Tip: dp("5")}

	result, err := Allocate(people, nil, agg)
	require.NoError(t, err)

	// 3.33 × 3 = 9.99: independent rounding loses a cent, inside the slack.
	expected := d("45")
	slack := d("0.01").Mul(decimal.NewFromInt(int64(len(result.People))))
	assert.True(t, result.Total().Sub(expected).Abs().LessThanOrEqual(slack),
		"total %s not within %s of %s", result.Total(), slack, expected)

	report := Validate(result, *result.Receipt)
	assert.True(t, report.OK())
	assert.Empty(t, report.Warnings)
}

func TestAllocate_DoesNotAliasInput(t *testing.T) {
	items := []LineItem{item("Soup", "8.005")}
	people := []PersonAssignment{{Name: "Alice", Items: items}}

	result, err := Allocate(people, nil, ReceiptAggregate{})
	require.NoError(t, err)

	result.People[0].Items[0].Description = "changed"
	assert.Equal(t, "Soup", items[0].Description)
	assertAmount(t, "8.01", result.People[0].Items[0].Amount)
}

func TestConstructors(t *testing.T) {
	li, err := NewLineItem("Tea", d("2.499"))
	require.NoError(t, err)
	assertAmount(t, "2.50", li.Amount)

	_, err = NewLineItem("Tea", d("-1"))
	assert.ErrorIs(t, err, ErrNegativeAmount)

	si, err := NewSharedItem("Bread", d("4"), "Alice", " Bob ", "Alice", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, si.SplitWith)

	_, err = NewSharedItem("Bread", d("4"))
	assert.ErrorIs(t, err, ErrEmptySplit)

	_, err = NewFee("Service", d("-0.01"))
	assert.ErrorIs(t, err, ErrNegativeAmount)

	agg, err := NewReceiptAggregate(d("10.004"), d("0.825"), []Fee{{Name: "Bag", Amount: d("0.105")}}, dp("2.345"))
	require.NoError(t, err)
	assertAmount(t, "10", agg.Subtotal)
	assertAmount(t, "0.83", agg.Tax)
	assertAmount(t, "0.11", agg.FeeTotal())
	assertAmount(t, "2.35", *agg.Tip)

	_, err = NewReceiptAggregate(d("10"), d("1"), nil, dp("-2"))
	assert.ErrorIs(t, err, ErrNegativeAmount)
}
