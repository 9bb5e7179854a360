package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem is a sellable stock-keeping unit from the backend master list.
// Prices are copied into cart lines at add-time and never re-fetched; the
// snapshot holding the item is the client's point-in-time truth for stock.
type CatalogItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode,omitempty"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Stock     int             `json:"stock"`
}

// CartLine is one accumulated selection. At most one line exists per item id;
// duplicate adds merge into the existing line.
type CartLine struct {
	ItemID        string          `json:"item_id"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	UnitCostPrice decimal.Decimal `json:"unit_cost_price"`
	UnitSalePrice decimal.Decimal `json:"unit_sale_price"`
}

// PartySelection is an optional counterparty (loyalty member or wholesale
// downline) attached to a transaction.
type PartySelection struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Totals is the running cost/sale/margin aggregate over a cart, recomputed
// on every mutation rather than cached.
type Totals struct {
	Cost   decimal.Decimal `json:"cost"`
	Sale   decimal.Decimal `json:"sale"`
	Margin decimal.Decimal `json:"margin"`
}

// Metadata is the free-text transaction metadata the dialogs collect.
type Metadata struct {
	BuyerName     string `json:"buyer_name,omitempty"`
	Description   string `json:"description,omitempty"`
	ServiceStatus string `json:"service_status,omitempty"`
}

type TransactionLine struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// TransactionPayload is built once at submission time and sent whole. Margin
// is advisory; the server re-reads authoritative prices and stock.
type TransactionPayload struct {
	ReferenceID   string            `json:"reference_id"`
	Lines         []TransactionLine `json:"lines"`
	Margin        decimal.Decimal   `json:"margin"`
	FlatFee       decimal.Decimal   `json:"flat_fee"`
	PartyID       string            `json:"party_id,omitempty"`
	BuyerName     string            `json:"buyer_name,omitempty"`
	Description   string            `json:"description,omitempty"`
	ServiceStatus string            `json:"service_status,omitempty"`
}

// Confirmation is the server's acknowledgement of an accepted transaction.
type Confirmation struct {
	TransactionID string          `json:"transaction_id"`
	ReferenceID   string          `json:"reference_id"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DashboardSummary carries the precomputed aggregate counters shown on the
// landing screen. Computation is server-side; the client only fetches.
type DashboardSummary struct {
	AccessoryCount   int             `json:"accessory_count"`
	VoucherCount     int             `json:"voucher_count"`
	SparepartCount   int             `json:"sparepart_count"`
	OpenServiceCount int             `json:"open_service_count"`
	TodaySales       decimal.Decimal `json:"today_sales"`
	TodayMargin      decimal.Decimal `json:"today_margin"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Party sources recognised by the lookup endpoints.
const (
	PartySourceNone     = ""
	PartySourceMember   = "member"
	PartySourceDownline = "downline"
)
