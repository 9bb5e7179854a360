package devbackend

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"konterku/engine/internal/domain"
)

var (
	errUnknownItem       = errors.New("unknown item")
	errInsufficientStock = errors.New("insufficient stock")
	errInvalidLine       = errors.New("invalid transaction line")
)

// stockItem is one master-list row held by the dev backend. LegacyPriceField
// marks rows that are served with the old "price" key instead of
// "sale_price", mirroring the mixed records real deployments still return.
type stockItem struct {
	ID               string
	Name             string
	Barcode          string
	CostPrice        decimal.Decimal
	SalePrice        decimal.Decimal
	Stock            int
	LegacyPriceField bool
}

type storedTransaction struct {
	ID          string
	ReferenceID string
	Resource    string
	Total       decimal.Decimal
	Margin      decimal.Decimal
	CreatedAt   time.Time
}

// store is the in-memory inventory behind the dev server. It plays the
// production backend's role: the authoritative stock arbiter that re-reads
// its own prices and quantities on every transaction.
type store struct {
	mu           sync.Mutex
	catalogs     map[string][]stockItem
	parties      map[string][]domain.PartySelection
	transactions []storedTransaction
	byReference  map[string]int
}

func newSeededStore() *store {
	price := func(v string) decimal.Decimal { return decimal.RequireFromString(v) }

	catalogs := map[string][]stockItem{
		"accessory": {
			{ID: "acc-001", Name: "Tempered Glass 6.1", Barcode: "8991001001", CostPrice: price("8000"), SalePrice: price("15000"), Stock: 40},
			{ID: "acc-002", Name: "Softcase Clear", Barcode: "8991001002", CostPrice: price("6000"), SalePrice: price("12000"), Stock: 25},
			{ID: "acc-003", Name: "Kabel Data Type-C", Barcode: "8991001003", CostPrice: price("11000"), SalePrice: price("20000"), Stock: 18, LegacyPriceField: true},
			{ID: "acc-004", Name: "Charger 33W", CostPrice: price("45000"), SalePrice: price("75000"), Stock: 9},
		},
		"voucher": {
			{ID: "vcr-010", Name: "Voucher Data 5GB", CostPrice: price("24500"), SalePrice: price("27000"), Stock: 50},
			{ID: "vcr-011", Name: "Voucher Data 10GB", CostPrice: price("46000"), SalePrice: price("50000"), Stock: 30},
			{ID: "vcr-012", Name: "Voucher Pulsa 50rb", CostPrice: price("49300"), SalePrice: price("51000"), Stock: 60, LegacyPriceField: true},
		},
		"sparepart": {
			{ID: "sp-101", Name: "LCD A12 Original", Barcode: "8992002001", CostPrice: price("285000"), SalePrice: price("350000"), Stock: 4},
			{ID: "sp-102", Name: "Baterai BN54", Barcode: "8992002002", CostPrice: price("65000"), SalePrice: price("95000"), Stock: 12},
			{ID: "sp-103", Name: "Konektor Cas Micro", CostPrice: price("9000"), SalePrice: price("25000"), Stock: 30},
			{ID: "sp-104", Name: "Flexibel On-Off", CostPrice: price("15000"), SalePrice: price("35000"), Stock: 7, LegacyPriceField: true},
		},
	}

	parties := map[string][]domain.PartySelection{
		domain.PartySourceMember: {
			{ID: "mbr-1", Name: "Budi Santoso", Phone: "081234567801"},
			{ID: "mbr-2", Name: "Siti Rahma", Phone: "081234567802"},
			{ID: "mbr-3", Name: "Andi Wijaya", Phone: "085611112222"},
		},
		domain.PartySourceDownline: {
			{ID: "dln-1", Name: "Konter Cahaya Cell", Phone: "081299990001"},
			{ID: "dln-2", Name: "Konter Berkah Jaya", Phone: "081299990002"},
		},
	}

	return &store{
		catalogs:    catalogs,
		parties:     parties,
		byReference: make(map[string]int),
	}
}

func (s *store) Catalog(resource string) ([]stockItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.catalogs[resource]
	if !ok {
		return nil, false
	}
	out := make([]stockItem, len(items))
	copy(out, items)
	return out, true
}

func (s *store) Parties(source string) ([]domain.PartySelection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parties, ok := s.parties[source]
	if !ok {
		return nil, false
	}
	out := make([]domain.PartySelection, len(parties))
	copy(out, parties)
	return out, true
}

// CreateTransaction validates the payload against live stock, decrements the
// sold quantities and records the transaction. Duplicate reference ids return
// the original confirmation, so a client retry after a dropped response does
// not double-sell.
func (s *store) CreateTransaction(itemResource string, txResource string, payload domain.TransactionPayload) (domain.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.byReference[payload.ReferenceID]; ok && payload.ReferenceID != "" {
		prior := s.transactions[idx]
		return domain.Confirmation{
			TransactionID: prior.ID,
			ReferenceID:   prior.ReferenceID,
			Total:         prior.Total,
			CreatedAt:     prior.CreatedAt,
		}, nil
	}

	catalog, ok := s.catalogs[itemResource]
	if !ok {
		return domain.Confirmation{}, fmt.Errorf("%w: no catalog %s", errUnknownItem, itemResource)
	}

	index := make(map[string]int, len(catalog))
	for i, item := range catalog {
		index[item.ID] = i
	}

	if len(payload.Lines) == 0 {
		return domain.Confirmation{}, fmt.Errorf("%w: no lines", errInvalidLine)
	}

	total := decimal.Zero
	margin := payload.FlatFee
	for _, line := range payload.Lines {
		if line.Quantity <= 0 {
			return domain.Confirmation{}, fmt.Errorf("%w: quantity %d for %s", errInvalidLine, line.Quantity, line.ID)
		}
		idx, ok := index[line.ID]
		if !ok {
			return domain.Confirmation{}, fmt.Errorf("%w: %s", errUnknownItem, line.ID)
		}
		item := catalog[idx]
		if line.Quantity > item.Stock {
			return domain.Confirmation{}, fmt.Errorf("%w: %s has %d left", errInsufficientStock, line.ID, item.Stock)
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		total = total.Add(item.SalePrice.Mul(qty))
		margin = margin.Add(item.SalePrice.Sub(item.CostPrice).Mul(qty))
	}
	total = total.Add(payload.FlatFee)

	for _, line := range payload.Lines {
		catalog[index[line.ID]].Stock -= line.Quantity
	}
	s.catalogs[itemResource] = catalog

	tx := storedTransaction{
		ID:          uuid.NewString(),
		ReferenceID: payload.ReferenceID,
		Resource:    txResource,
		Total:       total,
		Margin:      margin,
		CreatedAt:   time.Now().UTC(),
	}
	s.transactions = append(s.transactions, tx)
	if tx.ReferenceID != "" {
		s.byReference[tx.ReferenceID] = len(s.transactions) - 1
	}

	return domain.Confirmation{
		TransactionID: tx.ID,
		ReferenceID:   tx.ReferenceID,
		Total:         tx.Total,
		CreatedAt:     tx.CreatedAt,
	}, nil
}

func (s *store) DashboardSummary() domain.DashboardSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := domain.DashboardSummary{
		AccessoryCount: len(s.catalogs["accessory"]),
		VoucherCount:   len(s.catalogs["voucher"]),
		SparepartCount: len(s.catalogs["sparepart"]),
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	sales := decimal.Zero
	marginSum := decimal.Zero
	for _, tx := range s.transactions {
		if tx.CreatedAt.Before(today) {
			continue
		}
		if tx.Resource == "service-transaction" {
			summary.OpenServiceCount++
		}
		sales = sales.Add(tx.Total)
		marginSum = marginSum.Add(tx.Margin)
	}
	summary.TodaySales = sales
	summary.TodayMargin = marginSum
	return summary
}
