package cart

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"konterku/engine/internal/domain"
)

func testItem(id string, cost, sale int64, stock int) domain.CatalogItem {
	return domain.CatalogItem{
		ID:        id,
		Name:      "item " + id,
		CostPrice: decimal.NewFromInt(cost),
		SalePrice: decimal.NewFromInt(sale),
		Stock:     stock,
	}
}

func TestAddOrMergeMergesDuplicates(t *testing.T) {
	acc := NewAccumulator()
	item := testItem("X", 1000, 1500, 10)

	if err := acc.AddOrMerge(item, 2); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := acc.AddOrMerge(item, 3); err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	if acc.Len() != 1 {
		t.Fatalf("expected one merged line, got %d", acc.Len())
	}
	line, ok := acc.Line("X")
	if !ok || line.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %+v", line)
	}
}

func TestAddOrMergeEnforcesStockCeiling(t *testing.T) {
	acc := NewAccumulator()
	item := testItem("X", 1000, 1500, 3)

	if err := acc.AddOrMerge(item, 2); err != nil {
		t.Fatalf("add within stock failed: %v", err)
	}

	err := acc.AddOrMerge(item, 2)
	se, ok := domain.IsStockExceeded(err)
	if !ok {
		t.Fatalf("expected StockExceededError, got %v", err)
	}
	if se.Available != 3 {
		t.Fatalf("expected available 3, got %d", se.Available)
	}

	line, _ := acc.Line("X")
	if line.Quantity != 2 {
		t.Fatalf("rejected add must leave quantity unchanged, got %d", line.Quantity)
	}
}

func TestAddOrMergeRejectsNonPositiveQuantity(t *testing.T) {
	acc := NewAccumulator()
	item := testItem("X", 1000, 1500, 3)

	for _, qty := range []int{0, -1} {
		if err := acc.AddOrMerge(item, qty); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
	if !acc.IsEmpty() {
		t.Fatalf("rejected adds must not create lines")
	}
}

func TestUpdateQuantitySetsDirectly(t *testing.T) {
	acc := NewAccumulator()
	item := testItem("X", 1000, 1500, 3)

	if err := acc.AddOrMerge(item, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Update is a set, not a merge: 3 is within stock even though 2+3 is not.
	if err := acc.UpdateQuantity("X", 3); err != nil {
		t.Fatalf("update to stock ceiling failed: %v", err)
	}
	line, _ := acc.Line("X")
	if line.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", line.Quantity)
	}

	err := acc.UpdateQuantity("X", 4)
	if _, ok := domain.IsStockExceeded(err); !ok {
		t.Fatalf("expected StockExceededError, got %v", err)
	}
	line, _ = acc.Line("X")
	if line.Quantity != 3 {
		t.Fatalf("rejected update must keep quantity, got %d", line.Quantity)
	}
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.AddOrMerge(testItem("X", 1000, 1500, 3), 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := acc.UpdateQuantity("X", 0); err != nil {
		t.Fatalf("update to zero failed: %v", err)
	}
	if !acc.IsEmpty() {
		t.Fatalf("expected empty cart after zero update")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.AddOrMerge(testItem("X", 1000, 1500, 3), 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	acc.Remove("X")
	acc.Remove("X")
	acc.Remove("never-there")
	if !acc.IsEmpty() {
		t.Fatalf("expected empty cart after removals")
	}
}

func TestRemoveLeavesOtherLinesIntact(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.AddOrMerge(testItem("A", 1000, 1500, 5), 2); err != nil {
		t.Fatalf("add A failed: %v", err)
	}
	if err := acc.AddOrMerge(testItem("B", 2000, 2500, 5), 1); err != nil {
		t.Fatalf("add B failed: %v", err)
	}

	acc.Remove("A")

	if acc.Len() != 1 {
		t.Fatalf("expected one line left, got %d", acc.Len())
	}
	line, ok := acc.Line("B")
	if !ok || line.Quantity != 1 {
		t.Fatalf("line B must be untouched, got %+v", line)
	}

	totals := acc.Totals(decimal.Zero)
	if !totals.Margin.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected margin 500 from line B, got %s", totals.Margin)
	}
}

func TestTotalsOrderIndependent(t *testing.T) {
	a := testItem("A", 1000, 1500, 10)
	b := testItem("B", 700, 900, 10)

	first := NewAccumulator()
	second := NewAccumulator()
	if err := first.AddOrMerge(a, 2); err != nil {
		t.Fatal(err)
	}
	if err := first.AddOrMerge(b, 3); err != nil {
		t.Fatal(err)
	}
	if err := second.AddOrMerge(b, 3); err != nil {
		t.Fatal(err)
	}
	if err := second.AddOrMerge(a, 2); err != nil {
		t.Fatal(err)
	}

	fee := decimal.NewFromInt(25000)
	t1 := first.Totals(fee)
	t2 := second.Totals(fee)
	if !t1.Margin.Equal(t2.Margin) || !t1.Cost.Equal(t2.Cost) || !t1.Sale.Equal(t2.Sale) {
		t.Fatalf("totals must not depend on add order: %+v vs %+v", t1, t2)
	}

	// margin = (1500-1000)*2 + (900-700)*3 + 25000
	want := decimal.NewFromInt(500*2 + 200*3 + 25000)
	if !t1.Margin.Equal(want) {
		t.Fatalf("expected margin %s, got %s", want, t1.Margin)
	}
}

func TestFlatFeeNotMultipliedByQuantity(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.AddOrMerge(testItem("X", 1000, 1500, 10), 4); err != nil {
		t.Fatal(err)
	}

	fee := decimal.NewFromInt(30000)
	totals := acc.Totals(fee)
	want := decimal.NewFromInt(500*4 + 30000)
	if !totals.Margin.Equal(want) {
		t.Fatalf("expected margin %s, got %s", want, totals.Margin)
	}
}

func TestTotalsEmptyCartIsFlatFeeOnly(t *testing.T) {
	acc := NewAccumulator()

	if got := acc.Totals(decimal.Zero).Margin; !got.Equal(decimal.Zero) {
		t.Fatalf("expected zero margin, got %s", got)
	}
	fee := decimal.NewFromInt(15000)
	if got := acc.Totals(fee).Margin; !got.Equal(fee) {
		t.Fatalf("expected margin equal to flat fee, got %s", got)
	}
}

func TestNegativeMarginIsAllowed(t *testing.T) {
	acc := NewAccumulator()
	// Sale below cost is valid; nothing prevents a loss-making line.
	if err := acc.AddOrMerge(testItem("X", 2000, 1500, 10), 2); err != nil {
		t.Fatal(err)
	}
	totals := acc.Totals(decimal.Zero)
	if !totals.Margin.Equal(decimal.NewFromInt(-1000)) {
		t.Fatalf("expected margin -1000, got %s", totals.Margin)
	}
}

func TestQuantityLifecycle(t *testing.T) {
	acc := NewAccumulator()
	x := testItem("X", 1000, 1500, 3)

	if err := acc.AddOrMerge(x, 2); err != nil {
		t.Fatalf("add 2 failed: %v", err)
	}
	err := acc.AddOrMerge(x, 2)
	if se, ok := domain.IsStockExceeded(err); !ok || se.Available != 3 {
		t.Fatalf("expected StockExceeded(3), got %v", err)
	}
	if line, _ := acc.Line("X"); line.Quantity != 2 {
		t.Fatalf("quantity must stay 2, got %d", line.Quantity)
	}

	if err := acc.UpdateQuantity("X", 3); err != nil {
		t.Fatalf("update to 3 failed: %v", err)
	}
	if line, _ := acc.Line("X"); line.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", line.Quantity)
	}

	if err := acc.UpdateQuantity("X", 0); err != nil {
		t.Fatalf("update to 0 failed: %v", err)
	}
	if !acc.IsEmpty() {
		t.Fatalf("expected line removed")
	}
	if got := acc.Totals(decimal.Zero).Margin; !got.Equal(decimal.Zero) {
		t.Fatalf("empty cart margin must be 0, got %s", got)
	}
}
