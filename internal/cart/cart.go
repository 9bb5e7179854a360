package cart

import (
	"github.com/shopspring/decimal"

	"konterku/engine/internal/domain"
)

// Accumulator holds the in-progress selection for one transaction dialog.
// Lines keep insertion order, with at most one line per item id; a duplicate
// add merges into the existing line instead of appending. Every mutation that
// would push a line past the snapshot's stock figure is rejected whole,
// leaving prior state intact.
//
// The accumulator is owned by a single dialog instance and is not safe for
// concurrent use on its own; the dialog serializes access.
type Accumulator struct {
	lines []domain.CartLine
	index map[string]int
	stock map[string]int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		index: make(map[string]int),
		stock: make(map[string]int),
	}
}

// AddOrMerge adds quantity of item, merging with an existing line for the
// same item id. The candidate total (existing + requested) is validated
// against the item's snapshot stock; on rejection the cart is unmodified.
// Unit prices are copied from the item at add-time and never re-fetched.
func (a *Accumulator) AddOrMerge(item domain.CatalogItem, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	candidate := quantity
	if idx, ok := a.index[item.ID]; ok {
		candidate += a.lines[idx].Quantity
	}
	if candidate > item.Stock {
		return &domain.StockExceededError{ItemID: item.ID, Requested: candidate, Available: item.Stock}
	}

	if idx, ok := a.index[item.ID]; ok {
		a.lines[idx].Quantity = candidate
		a.lines[idx].UnitCostPrice = item.CostPrice
		a.lines[idx].UnitSalePrice = item.SalePrice
	} else {
		a.index[item.ID] = len(a.lines)
		a.lines = append(a.lines, domain.CartLine{
			ItemID:        item.ID,
			Name:          item.Name,
			Quantity:      candidate,
			UnitCostPrice: item.CostPrice,
			UnitSalePrice: item.SalePrice,
		})
	}
	a.stock[item.ID] = item.Stock

	return nil
}

// UpdateQuantity sets a line's quantity directly (not additive). A quantity
// of zero or less removes the line. Raising the quantity past the recorded
// stock ceiling is rejected and the line keeps its previous quantity.
func (a *Accumulator) UpdateQuantity(itemID string, quantity int) error {
	idx, ok := a.index[itemID]
	if !ok {
		return domain.ErrNotFound
	}
	if quantity <= 0 {
		a.removeAt(idx)
		return nil
	}
	if available := a.stock[itemID]; quantity > available {
		return &domain.StockExceededError{ItemID: itemID, Requested: quantity, Available: available}
	}
	a.lines[idx].Quantity = quantity
	return nil
}

// Remove deletes the line for itemID. Removing an absent line is a no-op.
func (a *Accumulator) Remove(itemID string) {
	if idx, ok := a.index[itemID]; ok {
		a.removeAt(idx)
	}
}

func (a *Accumulator) removeAt(idx int) {
	removed := a.lines[idx].ItemID
	a.lines = append(a.lines[:idx], a.lines[idx+1:]...)
	delete(a.index, removed)
	delete(a.stock, removed)
	for i := idx; i < len(a.lines); i++ {
		a.index[a.lines[i].ItemID] = i
	}
}

// Clear empties the cart. Used after a successful submission.
func (a *Accumulator) Clear() {
	a.lines = nil
	a.index = make(map[string]int)
	a.stock = make(map[string]int)
}

func (a *Accumulator) IsEmpty() bool {
	return len(a.lines) == 0
}

func (a *Accumulator) Len() int {
	return len(a.lines)
}

// Line returns the current line for itemID, if present.
func (a *Accumulator) Line(itemID string) (domain.CartLine, bool) {
	idx, ok := a.index[itemID]
	if !ok {
		return domain.CartLine{}, false
	}
	return a.lines[idx], true
}

// Lines returns a copy of the cart lines in insertion order.
func (a *Accumulator) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(a.lines))
	copy(out, a.lines)
	return out
}

// Totals computes cost, sale and margin over the current lines plus an
// optional flat service fee. The fee is added to the margin in full, never
// multiplied by any quantity. Pure with respect to the cart: no caching, so
// the result is always consistent with the lines regardless of add order.
func (a *Accumulator) Totals(flatFee decimal.Decimal) domain.Totals {
	var cost, sale decimal.Decimal
	for _, line := range a.lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		cost = cost.Add(line.UnitCostPrice.Mul(qty))
		sale = sale.Add(line.UnitSalePrice.Mul(qty))
	}
	return domain.Totals{
		Cost:   cost,
		Sale:   sale,
		Margin: sale.Sub(cost).Add(flatFee),
	}
}
